package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/careerloop/backend/models"
	ws "github.com/careerloop/backend/websocket"
)

// fakeStore is an in-memory InterviewStore and ReminderStore for tests.
type fakeStore struct {
	mu           sync.Mutex
	interviews   map[string]models.Interview
	availability []models.Availability
	settings     *models.ReminderSettings
	users        map[string]*models.User
	failUpdate   bool
	failCreate   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		interviews: make(map[string]models.Interview),
		users:      make(map[string]*models.User),
	}
}

func (f *fakeStore) CreateInterview(ctx context.Context, interview *models.Interview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.New("create failed")
	}
	f.interviews[interview.ID] = *interview
	return nil
}

func (f *fakeStore) UpdateInterview(ctx context.Context, interview *models.Interview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return errors.New("update failed")
	}
	f.interviews[interview.ID] = *interview
	return nil
}

func (f *fakeStore) DeleteInterview(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.interviews, id)
	return nil
}

func (f *fakeStore) AllInterviews(ctx context.Context) ([]models.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]models.Interview, 0, len(f.interviews))
	for _, interview := range f.interviews {
		all = append(all, interview)
	}
	return all, nil
}

func (f *fakeStore) GetAvailability(ctx context.Context, userID string) ([]models.Availability, error) {
	return f.availability, nil
}

func (f *fakeStore) GetReminderSettings(ctx context.Context, userID string) (*models.ReminderSettings, error) {
	return f.settings, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return f.users[id], nil
}

type fakeMailer struct {
	mu            sync.Mutex
	reminders     []string
	cancellations []string
	lastLead      int
}

func (f *fakeMailer) SendReminder(ctx context.Context, to string, interview *models.Interview, minutesBefore int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, to)
	f.lastLead = minutesBefore
	return nil
}

func (f *fakeMailer) SendCancellation(ctx context.Context, to string, interview *models.Interview, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancellations = append(f.cancellations, to)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []ws.Event
}

func (f *fakePublisher) Publish(userID string, event ws.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakePublisher) count(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, event := range f.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

// baseTime is a Monday morning; all test interviews are scheduled after it.
var baseTime = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

// newTestScheduler returns a scheduler with a fixed clock and inline side
// effects so tests are deterministic.
func newTestScheduler(store *fakeStore) *Scheduler {
	s := NewScheduler(store)
	s.now = func() time.Time { return baseTime }
	s.spawn = func(task func()) { task() }
	return s
}

func mockRequest(start time.Time, duration int) *ScheduleRequest {
	return &ScheduleRequest{
		Title:         "System design round",
		Type:          models.TypeMock,
		Role:          "Backend Engineer",
		Company:       "Acme",
		ScheduledTime: start,
		Duration:      duration,
	}
}

func TestScheduleInterviewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ScheduleRequest)
	}{
		{"Missing title", func(r *ScheduleRequest) { r.Title = "" }},
		{"Unknown type", func(r *ScheduleRequest) { r.Type = "panel" }},
		{"Unknown difficulty", func(r *ScheduleRequest) { r.Difficulty = "impossible" }},
		{"Zero duration", func(r *ScheduleRequest) { r.Duration = 0 }},
		{"Negative duration", func(r *ScheduleRequest) { r.Duration = -30 }},
		{"Past time", func(r *ScheduleRequest) { r.ScheduledTime = baseTime.Add(-time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(newFakeStore())
			req := mockRequest(baseTime.Add(time.Hour), 60)
			tt.mutate(req)

			if _, err := s.ScheduleInterview(context.Background(), "user-1", req); !errors.Is(err, ErrInvalidInterview) {
				t.Errorf("expected ErrInvalidInterview, got %v", err)
			}
		})
	}
}

func TestScheduleInterviewPersistsAndIndexes(t *testing.T) {
	store := newFakeStore()
	s := newTestScheduler(store)

	interview, err := s.ScheduleInterview(context.Background(), "user-1", mockRequest(baseTime.Add(time.Hour), 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if interview.Status != models.StatusScheduled {
		t.Errorf("expected status scheduled, got %s", interview.Status)
	}
	if interview.ID == "" {
		t.Error("expected generated ID")
	}
	if _, ok := store.interviews[interview.ID]; !ok {
		t.Error("interview not persisted")
	}
	if got, err := s.GetInterview("user-1", interview.ID); err != nil || got.Title != interview.Title {
		t.Errorf("GetInterview() = %v, %v", got, err)
	}
}

func TestScheduleInterviewConflict(t *testing.T) {
	s := newTestScheduler(newFakeStore())
	ctx := context.Background()

	if _, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(time.Hour), 60)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Overlaps the middle of the existing booking.
	if _, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(90*time.Minute), 30)); !errors.Is(err, ErrSlotConflict) {
		t.Errorf("expected ErrSlotConflict, got %v", err)
	}

	// Back-to-back is allowed: starts exactly when the first ends.
	if _, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(2*time.Hour), 30)); err != nil {
		t.Errorf("back-to-back booking should succeed, got %v", err)
	}

	// Another user's overlapping booking is fine.
	if _, err := s.ScheduleInterview(ctx, "user-2", mockRequest(baseTime.Add(90*time.Minute), 30)); err != nil {
		t.Errorf("other user's booking should succeed, got %v", err)
	}
}

func TestScheduleInterviewPersistenceFailure(t *testing.T) {
	store := newFakeStore()
	store.failCreate = true
	s := newTestScheduler(store)

	if _, err := s.ScheduleInterview(context.Background(), "user-1", mockRequest(baseTime.Add(time.Hour), 60)); err == nil {
		t.Fatal("expected error")
	}
	if len(s.PendingReminders()) != 0 {
		t.Error("failed create must not enter the index")
	}
}

func TestRescheduleInterview(t *testing.T) {
	store := newFakeStore()
	s := newTestScheduler(store)
	ctx := context.Background()

	interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(time.Hour), 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.MarkReminderSent(ctx, interview.ID) {
		t.Fatal("MarkReminderSent failed")
	}

	newTime := baseTime.Add(4 * time.Hour)
	updated, err := s.RescheduleInterview(ctx, "user-1", interview.ID, newTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.ScheduledTime.Equal(newTime) {
		t.Errorf("expected %v, got %v", newTime, updated.ScheduledTime)
	}
	if updated.ReminderSent {
		t.Error("reschedule must reset the reminder flag")
	}
	if stored := store.interviews[interview.ID]; stored.ReminderSent || !stored.ScheduledTime.Equal(newTime) {
		t.Error("reschedule not persisted")
	}
}

func TestRescheduleOwnSlotDoesNotConflict(t *testing.T) {
	s := newTestScheduler(newFakeStore())
	ctx := context.Background()

	interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(time.Hour), 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Shift by 15 minutes into its own original window.
	if _, err := s.RescheduleInterview(ctx, "user-1", interview.ID, baseTime.Add(75*time.Minute)); err != nil {
		t.Errorf("rescheduling into its own window should succeed, got %v", err)
	}
}

func TestRescheduleRevivesCancelled(t *testing.T) {
	s := newTestScheduler(newFakeStore())
	ctx := context.Background()

	interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(time.Hour), 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.CancelInterview(ctx, "user-1", interview.ID, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	revived, err := s.RescheduleInterview(ctx, "user-1", interview.ID, baseTime.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revived.Status != models.StatusScheduled {
		t.Errorf("expected scheduled, got %s", revived.Status)
	}
}

func TestRescheduleNotFound(t *testing.T) {
	s := newTestScheduler(newFakeStore())
	if _, err := s.RescheduleInterview(context.Background(), "user-1", "missing", baseTime.Add(time.Hour)); !errors.Is(err, ErrInterviewNotFound) {
		t.Errorf("expected ErrInterviewNotFound, got %v", err)
	}
}

func TestCancelInterview(t *testing.T) {
	store := newFakeStore()
	s := newTestScheduler(store)
	mailer := &fakeMailer{}
	publisher := &fakePublisher{}
	s.SetMailer(mailer)
	s.SetPublisher(publisher)
	ctx := context.Background()

	req := mockRequest(baseTime.Add(time.Hour), 60)
	req.Attendees = []string{"alice@example.com", "bob@example.com"}
	req.Notes = "Bring the rubric"
	interview, err := s.ScheduleInterview(ctx, "user-1", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, err := s.CancelInterview(ctx, "user-1", interview.ID, "candidate withdrew")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != models.StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.Notes != "Bring the rubric\nCancellation reason: candidate withdrew" {
		t.Errorf("unexpected notes: %q", cancelled.Notes)
	}
	if len(mailer.cancellations) != 2 {
		t.Errorf("expected 2 cancellation emails, got %d", len(mailer.cancellations))
	}
	if publisher.count(ws.EventCancelled) != 1 {
		t.Errorf("expected 1 cancelled event, got %d", publisher.count(ws.EventCancelled))
	}

	// Repeating the cancel is accepted but sends nothing new.
	again, err := s.CancelInterview(ctx, "user-1", interview.ID, "second reason")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Notes != cancelled.Notes {
		t.Errorf("repeat cancel must not touch notes: %q", again.Notes)
	}
	if len(mailer.cancellations) != 2 {
		t.Errorf("repeat cancel must not resend emails, got %d", len(mailer.cancellations))
	}
	if publisher.count(ws.EventCancelled) != 1 {
		t.Errorf("repeat cancel must not republish, got %d", publisher.count(ws.EventCancelled))
	}
}

func TestCancelledExcludedFromConflicts(t *testing.T) {
	s := newTestScheduler(newFakeStore())
	ctx := context.Background()

	interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(time.Hour), 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.CancelInterview(ctx, "user-1", interview.ID, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(time.Hour), 60)); err != nil {
		t.Errorf("cancelled interview must not block the slot, got %v", err)
	}
}

func TestUpdateInterviewStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr bool
	}{
		{"Scheduled to in_progress", models.StatusScheduled, models.StatusInProgress, false},
		{"Scheduled to completed", models.StatusScheduled, models.StatusCompleted, false},
		{"Scheduled to cancelled", models.StatusScheduled, models.StatusCancelled, false},
		{"In progress to completed", models.StatusInProgress, models.StatusCompleted, false},
		{"Completed is terminal", models.StatusCompleted, models.StatusInProgress, true},
		{"Cancelled is terminal", models.StatusCancelled, models.StatusCompleted, true},
		{"Scheduled to unknown", models.StatusScheduled, "archived", true},
		{"Same status is a no-op", models.StatusInProgress, models.StatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(newFakeStore())
			ctx := context.Background()

			interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(time.Hour), 60))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.from != models.StatusScheduled {
				s.mu.Lock()
				s.interviews[interview.ID].Status = tt.from
				s.mu.Unlock()
			}

			updated, err := s.UpdateInterviewStatus(ctx, "user-1", interview.ID, tt.to)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if updated.Status != tt.to {
				t.Errorf("expected %s, got %s", tt.to, updated.Status)
			}
		})
	}
}

func TestDeleteInterview(t *testing.T) {
	store := newFakeStore()
	s := newTestScheduler(store)
	ctx := context.Background()

	interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(time.Hour), 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.DeleteInterview(ctx, "user-1", interview.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.interviews[interview.ID]; ok {
		t.Error("interview not deleted from store")
	}
	if err := s.DeleteInterview(ctx, "user-1", interview.ID); !errors.Is(err, ErrInterviewNotFound) {
		t.Errorf("expected ErrInterviewNotFound, got %v", err)
	}
}

func TestOtherUsersInterviewIsInvisible(t *testing.T) {
	s := newTestScheduler(newFakeStore())
	ctx := context.Background()

	interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(time.Hour), 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.GetInterview("user-2", interview.ID); !errors.Is(err, ErrInterviewNotFound) {
		t.Errorf("expected ErrInterviewNotFound, got %v", err)
	}
	if err := s.DeleteInterview(ctx, "user-2", interview.ID); !errors.Is(err, ErrInterviewNotFound) {
		t.Errorf("expected ErrInterviewNotFound, got %v", err)
	}
}

func TestGetInterviewStats(t *testing.T) {
	s := newTestScheduler(newFakeStore())
	ctx := context.Background()

	empty := s.GetInterviewStats("user-1")
	if empty.Total != 0 || empty.CompletionRate != 0 || empty.AverageDuration != 0 {
		t.Errorf("expected zero stats, got %+v", empty)
	}

	// 6 completed, 2 cancelled, 1 upcoming, 1 scheduled in the past.
	for i := 0; i < 10; i++ {
		interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(time.Duration(i+1)*2*time.Hour), 60))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.mu.Lock()
		switch {
		case i < 6:
			s.interviews[interview.ID].Status = models.StatusCompleted
		case i < 8:
			s.interviews[interview.ID].Status = models.StatusCancelled
		case i == 9:
			s.interviews[interview.ID].ScheduledTime = baseTime.Add(-time.Hour)
		}
		s.mu.Unlock()
	}

	stats := s.GetInterviewStats("user-1")
	if stats.Total != 10 || stats.Completed != 6 || stats.Cancelled != 2 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.Upcoming != 1 {
		t.Errorf("expected 1 upcoming, got %d", stats.Upcoming)
	}
	// 6 completed out of 8 non-cancelled.
	if stats.CompletionRate != 75.0 {
		t.Errorf("expected completion rate 75, got %v", stats.CompletionRate)
	}
	if stats.AverageDuration != 60.0 {
		t.Errorf("expected average duration 60, got %v", stats.AverageDuration)
	}
}

func TestMarkReminderSent(t *testing.T) {
	store := newFakeStore()
	s := newTestScheduler(store)
	ctx := context.Background()

	interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(time.Hour), 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !s.MarkReminderSent(ctx, interview.ID) {
		t.Error("first mark should succeed")
	}
	if s.MarkReminderSent(ctx, interview.ID) {
		t.Error("second mark must fail")
	}
	if !store.interviews[interview.ID].ReminderSent {
		t.Error("reminder flag not persisted")
	}
	if s.MarkReminderSent(ctx, "missing") {
		t.Error("unknown interview must fail")
	}
}

func TestMarkReminderSentPersistenceFailure(t *testing.T) {
	store := newFakeStore()
	s := newTestScheduler(store)
	ctx := context.Background()

	interview, err := s.ScheduleInterview(ctx, "user-1", mockRequest(baseTime.Add(time.Hour), 60))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.failUpdate = true
	if s.MarkReminderSent(ctx, interview.ID) {
		t.Error("mark must fail when the store write fails")
	}

	// The flag stays clear so the next poll retries.
	store.failUpdate = false
	if !s.MarkReminderSent(ctx, interview.ID) {
		t.Error("retry after store recovery should succeed")
	}
}

func TestLoadWarmsIndex(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("interview-%d", i)
		store.interviews[id] = models.Interview{
			ID:            id,
			UserID:        "user-1",
			Title:         "Loaded",
			Status:        models.StatusScheduled,
			ScheduledTime: baseTime.Add(time.Duration(i+1) * time.Hour),
			Duration:      30,
		}
	}

	s := newTestScheduler(store)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(s.PendingReminders()); got != 3 {
		t.Errorf("expected 3 indexed interviews, got %d", got)
	}
}
