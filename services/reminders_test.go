package services

import (
	"context"
	"testing"
	"time"

	"github.com/careerloop/backend/models"
	ws "github.com/careerloop/backend/websocket"
)

func newTestReminderService(s *Scheduler, store *fakeStore) (*ReminderService, *fakeMailer, *fakePublisher) {
	r := NewReminderService(s, store, 5)
	r.now = s.now
	mailer := &fakeMailer{}
	publisher := &fakePublisher{}
	r.SetMailer(mailer)
	r.SetPublisher(publisher)
	return r, mailer, publisher
}

func settingsWithLeads(leads ...int) *models.ReminderSettings {
	settings := models.DefaultReminderSettings("user-1")
	settings.ReminderTimes = models.IntList(leads)
	return settings
}

func TestCheckAndSendRemindersFiresInsideWindow(t *testing.T) {
	store := newFakeStore()
	store.settings = settingsWithLeads(60, 15)
	store.users["user-1"] = &models.User{ID: "user-1", Email: "user@example.com"}
	s := newTestScheduler(store)
	r, mailer, publisher := newTestReminderService(s, store)
	ctx := context.Background()

	// 58 minutes out: inside the (55, 60] window for the 60-minute lead.
	interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(58*time.Minute), 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.CheckAndSendReminders(ctx)

	if len(mailer.reminders) != 1 || mailer.reminders[0] != "user@example.com" {
		t.Errorf("expected 1 reminder to user@example.com, got %v", mailer.reminders)
	}
	if mailer.lastLead != 60 {
		t.Errorf("expected lead 60, got %d", mailer.lastLead)
	}
	if publisher.count(ws.EventReminder) != 1 {
		t.Errorf("expected 1 reminder event, got %d", publisher.count(ws.EventReminder))
	}
	if !store.interviews[interview.ID].ReminderSent {
		t.Error("reminder flag not persisted")
	}
}

func TestCheckAndSendRemindersFiresAtMostOnce(t *testing.T) {
	store := newFakeStore()
	store.settings = settingsWithLeads(60, 15)
	store.users["user-1"] = &models.User{ID: "user-1", Email: "user@example.com"}
	s := newTestScheduler(store)
	r, mailer, _ := newTestReminderService(s, store)
	ctx := context.Background()

	if _, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(58*time.Minute), 30)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.CheckAndSendReminders(ctx)
	// Same cycle repeated: the flag is already set.
	r.CheckAndSendReminders(ctx)

	// A later cycle at the 15-minute lead must not re-fire either.
	later := baseTime.Add(44 * time.Minute)
	s.now = func() time.Time { return later }
	r.now = s.now
	r.CheckAndSendReminders(ctx)

	if len(mailer.reminders) != 1 {
		t.Errorf("expected exactly 1 reminder, got %d", len(mailer.reminders))
	}
}

func TestCheckAndSendRemindersWindowBounds(t *testing.T) {
	tests := []struct {
		name         string
		minutesUntil time.Duration
		expectFire   bool
	}{
		{"Just outside the lead", 61 * time.Minute, false},
		{"Exactly at the lead", 60 * time.Minute, true},
		{"Inside the window", 56 * time.Minute, true},
		{"At the lower bound", 55 * time.Minute, false},
		{"Well before the lead", 120 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.settings = settingsWithLeads(60)
			store.users["user-1"] = &models.User{ID: "user-1", Email: "user@example.com"}
			s := newTestScheduler(store)
			r, mailer, _ := newTestReminderService(s, store)
			ctx := context.Background()

			if _, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(tt.minutesUntil), 30)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			r.CheckAndSendReminders(ctx)

			fired := len(mailer.reminders) == 1
			if fired != tt.expectFire {
				t.Errorf("fired = %v, expected %v", fired, tt.expectFire)
			}
		})
	}
}

func TestCheckAndSendRemindersDisabled(t *testing.T) {
	store := newFakeStore()
	settings := settingsWithLeads(60)
	settings.Enabled = false
	store.settings = settings
	store.users["user-1"] = &models.User{ID: "user-1", Email: "user@example.com"}
	s := newTestScheduler(store)
	r, mailer, publisher := newTestReminderService(s, store)
	ctx := context.Background()

	if _, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(58*time.Minute), 30)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.CheckAndSendReminders(ctx)

	if len(mailer.reminders) != 0 || len(publisher.events) != 0 {
		t.Error("disabled settings must suppress reminders")
	}
}

func TestCheckAndSendRemindersDefaultSettings(t *testing.T) {
	store := newFakeStore()
	// No stored settings: the defaults (60 and 15 minute leads) apply.
	store.users["user-1"] = &models.User{ID: "user-1", Email: "user@example.com"}
	s := newTestScheduler(store)
	r, mailer, _ := newTestReminderService(s, store)
	ctx := context.Background()

	if _, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(14*time.Minute), 30)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.CheckAndSendReminders(ctx)

	if len(mailer.reminders) != 1 {
		t.Errorf("expected 1 reminder with default settings, got %d", len(mailer.reminders))
	}
	if mailer.lastLead != 15 {
		t.Errorf("expected lead 15, got %d", mailer.lastLead)
	}
}

func TestCheckAndSendRemindersEmailDisabled(t *testing.T) {
	store := newFakeStore()
	settings := settingsWithLeads(60)
	settings.EmailReminders = false
	store.settings = settings
	store.users["user-1"] = &models.User{ID: "user-1", Email: "user@example.com"}
	s := newTestScheduler(store)
	r, mailer, publisher := newTestReminderService(s, store)
	ctx := context.Background()

	if _, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(58*time.Minute), 30)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.CheckAndSendReminders(ctx)

	if len(mailer.reminders) != 0 {
		t.Error("email reminders disabled: no mail expected")
	}
	if publisher.count(ws.EventReminder) != 1 {
		t.Error("websocket reminder should still fire")
	}
}

func TestCheckAndSendRemindersSkipsNonScheduled(t *testing.T) {
	store := newFakeStore()
	store.settings = settingsWithLeads(60)
	store.users["user-1"] = &models.User{ID: "user-1", Email: "user@example.com"}
	s := newTestScheduler(store)
	r, mailer, _ := newTestReminderService(s, store)
	ctx := context.Background()

	interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(58*time.Minute), 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.CancelInterview(ctx, "user-1", interview.ID, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.CheckAndSendReminders(ctx)

	if len(mailer.reminders) != 0 {
		t.Error("cancelled interview must not trigger a reminder")
	}
}

func TestRescheduleReenablesReminder(t *testing.T) {
	store := newFakeStore()
	store.settings = settingsWithLeads(60)
	store.users["user-1"] = &models.User{ID: "user-1", Email: "user@example.com"}
	s := newTestScheduler(store)
	r, mailer, _ := newTestReminderService(s, store)
	ctx := context.Background()

	interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(58*time.Minute), 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.CheckAndSendReminders(ctx)
	if len(mailer.reminders) != 1 {
		t.Fatalf("expected first reminder, got %d", len(mailer.reminders))
	}

	// Moving the interview resets the flag; the reminder fires again for the
	// new time.
	if _, err := s.RescheduleInterview(ctx, "user-1", interview.ID, baseTime.Add(57*time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.CheckAndSendReminders(ctx)

	if len(mailer.reminders) != 2 {
		t.Errorf("expected reminder to re-fire after reschedule, got %d", len(mailer.reminders))
	}
}
