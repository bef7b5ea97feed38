package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Calendar providers supported by the integration layer.
const (
	ProviderGoogle  = "google"
	ProviderOutlook = "outlook"
	ProviderApple   = "apple"
	ProviderNone    = "none"
)

// IntList is a JSON-encoded list of integers stored in a text column.
type IntList []int

func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IntList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for IntList: %T", value)
	}
}

// ReminderSettings holds a user's reminder preferences. ReminderTimes are
// minutes-before-interview lead times, e.g. [60, 15].
type ReminderSettings struct {
	ID                   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID               string    `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Enabled              bool      `gorm:"not null;default:true" json:"enabled"`
	EmailReminders       bool      `gorm:"not null;default:true" json:"email_reminders"`
	ReminderTimes        IntList   `gorm:"type:text" json:"reminder_times"`
	TimeZone             string    `gorm:"size:64;default:'UTC'" json:"time_zone"`
	AutoScheduleFollowUp bool      `gorm:"not null;default:false" json:"auto_schedule_follow_up"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DefaultReminderSettings returns the settings a user starts with.
func DefaultReminderSettings(userID string) *ReminderSettings {
	return &ReminderSettings{
		UserID:         userID,
		Enabled:        true,
		EmailReminders: true,
		ReminderTimes:  IntList{60, 15},
		TimeZone:       "UTC",
	}
}

// Availability is one day of the weekly working-hours template. Each user
// owns exactly seven rows, one per day of week (0 = Sunday .. 6 = Saturday).
// A disabled day yields no slots regardless of its start and end times.
type Availability struct {
	ID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index:idx_user_day,unique" json:"user_id"`
	DayOfWeek int       `gorm:"not null;index:idx_user_day,unique;check:day_of_week BETWEEN 0 AND 6" json:"day_of_week"`
	StartTime string    `gorm:"size:5;not null" json:"start_time"` // "HH:mm"
	EndTime   string    `gorm:"size:5;not null" json:"end_time"`   // "HH:mm"
	Enabled   bool      `gorm:"not null;default:false" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultAvailability returns the starting weekly template: weekdays
// 09:00-17:00, weekends disabled.
func DefaultAvailability(userID string) []Availability {
	week := make([]Availability, 0, 7)
	for day := 0; day < 7; day++ {
		week = append(week, Availability{
			UserID:    userID,
			DayOfWeek: day,
			StartTime: "09:00",
			EndTime:   "17:00",
			Enabled:   day >= 1 && day <= 5,
		})
	}
	return week
}

// CalendarIntegration tracks a user's external calendar connection. Tokens
// are opaque credential references owned by the calendar provider; the
// scheduler never inspects them. Provider "none" implies not connected.
type CalendarIntegration struct {
	ID           string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID       string    `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Provider     string    `gorm:"size:50;not null;default:'none';check:provider IN ('google', 'outlook', 'apple', 'none')" json:"provider"`
	Connected    bool      `gorm:"not null;default:false" json:"connected"`
	AccessToken  string    `gorm:"type:text" json:"-"`
	RefreshToken string    `gorm:"type:text" json:"-"`
	LastSync     time.Time `json:"last_sync"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
