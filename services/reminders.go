package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/careerloop/backend/models"
	ws "github.com/careerloop/backend/websocket"
)

// ReminderStore is the preference and user lookup surface the reminder
// engine needs. *repository.GORMRepository satisfies it.
type ReminderStore interface {
	GetReminderSettings(ctx context.Context, userID string) (*models.ReminderSettings, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// ReminderService polls the scheduler for interviews whose reminder is due.
// A reminder is due when the whole minutes until the interview fall inside
// (lead - poll, lead] for one of the user's configured lead times; the window
// width tracks the poll interval so changing the cadence cannot silently skip
// windows. At most one reminder fires per interview per poll, and the
// scheduler's check-and-set on ReminderSent guarantees at most one overall.
type ReminderService struct {
	scheduler *Scheduler
	store     ReminderStore
	mailer    Mailer         // optional
	publisher EventPublisher // optional

	pollInterval time.Duration
	now          func() time.Time
}

func NewReminderService(scheduler *Scheduler, store ReminderStore, pollMinutes int) *ReminderService {
	if pollMinutes <= 0 {
		pollMinutes = 5
	}
	return &ReminderService{
		scheduler:    scheduler,
		store:        store,
		pollInterval: time.Duration(pollMinutes) * time.Minute,
		now:          time.Now,
	}
}

func (r *ReminderService) SetMailer(mailer Mailer)               { r.mailer = mailer }
func (r *ReminderService) SetPublisher(publisher EventPublisher) { r.publisher = publisher }

// Run polls until the context is cancelled.
func (r *ReminderService) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	slog.Info("Reminder service started", "poll_interval", r.pollInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Reminder service stopped")
			return
		case <-ticker.C:
			r.CheckAndSendReminders(ctx)
		}
	}
}

// CheckAndSendReminders runs one poll cycle over all pending interviews.
func (r *ReminderService) CheckAndSendReminders(ctx context.Context) {
	pending := r.scheduler.PendingReminders()
	if len(pending) == 0 {
		return
	}

	now := r.now()
	pollMinutes := int(r.pollInterval.Minutes())
	settingsByUser := make(map[string]*models.ReminderSettings)

	for i := range pending {
		interview := &pending[i]

		settings, cached := settingsByUser[interview.UserID]
		if !cached {
			loaded, err := r.store.GetReminderSettings(ctx, interview.UserID)
			if err != nil {
				slog.Error("Failed to load reminder settings", "error", err, "user_id", interview.UserID)
				continue
			}
			if loaded == nil {
				loaded = models.DefaultReminderSettings(interview.UserID)
			}
			settings = loaded
			settingsByUser[interview.UserID] = settings
		}
		if !settings.Enabled {
			continue
		}

		minutesUntil := int(interview.ScheduledTime.Sub(now).Minutes())
		for _, lead := range settings.ReminderTimes {
			if minutesUntil > lead || minutesUntil <= lead-pollMinutes {
				continue
			}
			if !r.scheduler.MarkReminderSent(ctx, interview.ID) {
				break
			}
			r.fire(ctx, interview, settings, lead, minutesUntil)
			break
		}
	}
}

func (r *ReminderService) fire(ctx context.Context, interview *models.Interview, settings *models.ReminderSettings, lead, minutesUntil int) {
	if settings.EmailReminders && r.mailer != nil {
		user, err := r.store.GetUserByID(ctx, interview.UserID)
		if err != nil || user == nil {
			slog.Error("Failed to resolve reminder recipient", "error", err, "user_id", interview.UserID)
		} else if err := r.mailer.SendReminder(ctx, user.Email, interview, lead); err != nil {
			slog.Error("Failed to send reminder email", "error", err, "interview_id", interview.ID, "to", user.Email)
		}
	}

	if r.publisher != nil {
		r.publisher.Publish(interview.UserID, ws.Event{
			Type:          ws.EventReminder,
			InterviewID:   interview.ID,
			Title:         interview.Title,
			ScheduledTime: interview.ScheduledTime,
			Status:        interview.Status,
		})
	}

	slog.Info("Reminder fired", "interview_id", interview.ID, "user_id", interview.UserID, "lead_minutes", lead, "minutes_until", minutesUntil)
}
