package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Interview lifecycle statuses. An interview starts as scheduled and moves
// through in_progress to completed, or gets cancelled at any point.
// Cancellation keeps the row around; only an explicit delete removes it.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Interview types and difficulty levels accepted on creation.
const (
	TypeMock     = "mock"
	TypeReal     = "real"
	TypePractice = "practice"
)

// StringList is a JSON-encoded list of strings stored in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
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
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// JSONMap is an opaque JSON object stored in a text column. Session data for
// an interview is owned by the practice-session subsystem and never inspected
// by the scheduler.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
}

// Interview is the central scheduling entity. ScheduledTime and Duration
// define a half-open interval [ScheduledTime, ScheduledTime+Duration) used
// for conflict detection. ReminderSent is reset to false on every reschedule.
type Interview struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	Type            string     `gorm:"size:50;not null;check:type IN ('mock', 'real', 'practice')" json:"type"`
	Role            string     `gorm:"size:255" json:"role"`
	Company         string     `gorm:"size:255" json:"company"`
	Difficulty      string     `gorm:"size:50;check:difficulty IN ('entry', 'mid', 'senior', 'principal')" json:"difficulty"`
	ScheduledTime   time.Time  `gorm:"not null;index" json:"scheduled_time"`
	Duration        int        `gorm:"not null" json:"duration"` // minutes
	Status          string     `gorm:"size:50;not null;default:'scheduled';index" json:"status"`
	ReminderSent    bool       `gorm:"not null;default:false" json:"reminder_sent"`
	CalendarEventID string     `gorm:"size:255" json:"calendar_event_id,omitempty"`
	Attendees       StringList `gorm:"type:text" json:"attendees"`
	MeetingLink     string     `gorm:"type:text" json:"meeting_link,omitempty"`
	Notes           string     `gorm:"type:text" json:"notes,omitempty"`
	SessionData     JSONMap    `gorm:"type:text" json:"session_data,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Relationships
	Questions []InterviewQuestion `gorm:"foreignKey:InterviewID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

// EndTime returns the exclusive end of the interview's time interval.
func (i *Interview) EndTime() time.Time {
	return i.ScheduledTime.Add(time.Duration(i.Duration) * time.Minute)
}

// Overlaps reports whether the interview's interval intersects the half-open
// interval [start, start+duration). A boundary touch is not an overlap.
func (i *Interview) Overlaps(start time.Time, duration int) bool {
	end := start.Add(time.Duration(duration) * time.Minute)
	return start.Before(i.EndTime()) && end.After(i.ScheduledTime)
}

// InterviewQuestion stores an AI-generated prep question for an interview.
type InterviewQuestion struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	InterviewID string         `gorm:"type:uuid;not null;index" json:"interview_id"`
	Question    string         `gorm:"type:text;not null" json:"question"`
	Category    string         `gorm:"size:50" json:"category,omitempty"` // technical, behavioral, situational
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Interview Interview `gorm:"foreignKey:InterviewID" json:"interview,omitempty"`
}
