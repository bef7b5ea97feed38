package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are automatically exported from their respective files:
// - User, RefreshToken from user.go
// - Interview, InterviewQuestion from interview.go
// - ReminderSettings, Availability, CalendarIntegration from preferences.go

// Database schema overview:
// 1. users - Managed by cookie-based authentication
// 2. interviews - Scheduled interviews with lifecycle status and reminder state
// 3. interview_questions - AI-generated prep questions attached to an interview
// 4. reminder_settings - One row per user, reminder switches and lead times
// 5. availabilities - Seven rows per user, the weekly working-hours template
// 6. calendar_integrations - One row per user, external calendar connection state
