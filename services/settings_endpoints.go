package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/careerloop/backend/models"
	"github.com/careerloop/backend/repository"
)

type SettingsEndpoints struct {
	repo     *repository.GORMRepository
	calendar *CalendarService
}

func NewSettingsEndpoints(repo *repository.GORMRepository, calendar *CalendarService) *SettingsEndpoints {
	return &SettingsEndpoints{
		repo:     repo,
		calendar: calendar,
	}
}

func (e *SettingsEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/reminders", e.GetRemindersHandler)
		r.Put("/reminders", e.UpdateRemindersHandler)
		r.Get("/availability", e.GetAvailabilityHandler)
		r.Put("/availability", e.UpdateAvailabilityHandler)
		r.Get("/calendar", e.GetCalendarHandler)
		r.Post("/calendar", e.ConnectCalendarHandler)
		r.Delete("/calendar", e.DisconnectCalendarHandler)
	})
}

func (e *SettingsEndpoints) GetRemindersHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	settings, err := e.repo.GetReminderSettings(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to get reminder settings", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to get reminder settings", http.StatusInternalServerError)
		return
	}
	if settings == nil {
		settings = models.DefaultReminderSettings(user.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settings)
}

type ReminderSettingsRequest struct {
	Enabled              bool   `json:"enabled"`
	EmailReminders       bool   `json:"email_reminders"`
	ReminderTimes        []int  `json:"reminder_times"`
	TimeZone             string `json:"time_zone"`
	AutoScheduleFollowUp bool   `json:"auto_schedule_follow_up"`
}

func (e *SettingsEndpoints) UpdateRemindersHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req ReminderSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	for _, minutes := range req.ReminderTimes {
		if minutes <= 0 {
			http.Error(w, "Reminder times must be positive minutes", http.StatusBadRequest)
			return
		}
	}

	settings := models.DefaultReminderSettings(user.ID)
	settings.Enabled = req.Enabled
	settings.EmailReminders = req.EmailReminders
	settings.AutoScheduleFollowUp = req.AutoScheduleFollowUp
	if len(req.ReminderTimes) > 0 {
		settings.ReminderTimes = models.IntList(req.ReminderTimes)
	}
	if req.TimeZone != "" {
		settings.TimeZone = req.TimeZone
	}

	if err := e.repo.SaveReminderSettings(r.Context(), settings); err != nil {
		slog.Error("Failed to save reminder settings", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to save reminder settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settings)
}

func (e *SettingsEndpoints) GetAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	availability, err := e.repo.GetAvailability(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to get availability", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to get availability", http.StatusInternalServerError)
		return
	}
	if len(availability) == 0 {
		availability = models.DefaultAvailability(user.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"availability": availability,
	})
}

type AvailabilityDayRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Enabled   bool   `json:"enabled"`
}

type AvailabilityRequest struct {
	Availability []AvailabilityDayRequest `json:"availability"`
}

func validateAvailability(days []AvailabilityDayRequest) error {
	seen := make(map[int]bool, len(days))
	for _, day := range days {
		if day.DayOfWeek < 0 || day.DayOfWeek > 6 {
			return fmt.Errorf("day_of_week must be between 0 and 6, got %d", day.DayOfWeek)
		}
		if seen[day.DayOfWeek] {
			return fmt.Errorf("duplicate entry for day %d", day.DayOfWeek)
		}
		seen[day.DayOfWeek] = true

		start, err := parseClock(day.StartTime)
		if err != nil {
			return fmt.Errorf("invalid start_time for day %d: %w", day.DayOfWeek, err)
		}
		end, err := parseClock(day.EndTime)
		if err != nil {
			return fmt.Errorf("invalid end_time for day %d: %w", day.DayOfWeek, err)
		}
		if day.Enabled && start >= end {
			return fmt.Errorf("start_time must be before end_time for day %d", day.DayOfWeek)
		}
	}
	return nil
}

func (e *SettingsEndpoints) UpdateAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Availability) == 0 {
		http.Error(w, "Availability cannot be empty", http.StatusBadRequest)
		return
	}
	if err := validateAvailability(req.Availability); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	availability := make([]models.Availability, 0, len(req.Availability))
	for _, day := range req.Availability {
		availability = append(availability, models.Availability{
			UserID:    user.ID,
			DayOfWeek: day.DayOfWeek,
			StartTime: day.StartTime,
			EndTime:   day.EndTime,
			Enabled:   day.Enabled,
		})
	}

	if err := e.repo.SaveAvailability(r.Context(), user.ID, availability); err != nil {
		slog.Error("Failed to save availability", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to save availability", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"availability": availability,
	})
}

func (e *SettingsEndpoints) GetCalendarHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if e.calendar == nil {
		http.Error(w, "Calendar sync is not configured", http.StatusServiceUnavailable)
		return
	}

	integration, err := e.calendar.Integration(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to get calendar integration", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to get calendar integration", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(integration)
}

type ConnectCalendarRequest struct {
	Provider string `json:"provider"`
}

func (e *SettingsEndpoints) ConnectCalendarHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if e.calendar == nil {
		http.Error(w, "Calendar sync is not configured", http.StatusServiceUnavailable)
		return
	}

	var req ConnectCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	integration, err := e.calendar.Connect(r.Context(), user.ID, req.Provider)
	if err != nil {
		slog.Error("Failed to connect calendar", "error", err, "user_id", user.ID)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(integration)
}

func (e *SettingsEndpoints) DisconnectCalendarHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if e.calendar == nil {
		http.Error(w, "Calendar sync is not configured", http.StatusServiceUnavailable)
		return
	}

	if err := e.calendar.Disconnect(r.Context(), user.ID); err != nil {
		slog.Error("Failed to disconnect calendar", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to disconnect calendar", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
