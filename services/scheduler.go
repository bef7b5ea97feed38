package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careerloop/backend/models"
	ws "github.com/careerloop/backend/websocket"
)

// Typed failures surfaced by scheduler operations. Endpoints translate these
// into HTTP statuses; everything else is a persistence failure and maps to 500.
var (
	ErrInterviewNotFound = errors.New("interview not found")
	ErrInvalidInterview  = errors.New("invalid interview")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSlotConflict      = errors.New("time slot conflicts with an existing interview")
)

// InterviewStore is the persistence surface the scheduler depends on.
// *repository.GORMRepository satisfies it.
type InterviewStore interface {
	CreateInterview(ctx context.Context, interview *models.Interview) error
	UpdateInterview(ctx context.Context, interview *models.Interview) error
	DeleteInterview(ctx context.Context, id string) error
	AllInterviews(ctx context.Context) ([]models.Interview, error)
	GetAvailability(ctx context.Context, userID string) ([]models.Availability, error)
}

// CalendarSync mirrors an interview onto an external calendar. All calls are
// best-effort from the scheduler's point of view.
type CalendarSync interface {
	Connected(ctx context.Context, userID string) bool
	CreateEvent(ctx context.Context, interview *models.Interview) (string, error)
	UpdateEvent(ctx context.Context, interview *models.Interview) error
	DeleteEvent(ctx context.Context, userID, eventID string) error
}

// Mailer is the notification sink for reminder and cancellation emails.
type Mailer interface {
	SendReminder(ctx context.Context, to string, interview *models.Interview, minutesBefore int) error
	SendCancellation(ctx context.Context, to string, interview *models.Interview, reason string) error
}

// EventPublisher pushes scheduling events to connected clients.
type EventPublisher interface {
	Publish(userID string, event ws.Event)
}

// validTransitions is the interview lifecycle state machine. Completed and
// cancelled are terminal for status-only updates; a cancelled interview can
// still be revived through RescheduleInterview.
var validTransitions = map[string]map[string]bool{
	models.StatusScheduled: {
		models.StatusInProgress: true,
		models.StatusCompleted:  true,
		models.StatusCancelled:  true,
	},
	models.StatusInProgress: {
		models.StatusCompleted: true,
		models.StatusCancelled: true,
	},
}

var interviewTypes = map[string]bool{
	models.TypeMock:     true,
	models.TypeReal:     true,
	models.TypePractice: true,
}

var difficulties = map[string]bool{
	"entry": true, "mid": true, "senior": true, "principal": true,
}

// Scheduler owns the interview collection. It keeps an in-memory index over
// the record store; the index is only updated after the corresponding store
// write succeeds, so a failed write never leaves divergent state. Calendar
// sync, email, and websocket pushes are best-effort side effects that never
// fail the primary operation.
type Scheduler struct {
	store     InterviewStore
	calendar  CalendarSync   // optional
	mailer    Mailer         // optional
	publisher EventPublisher // optional
	slotStep  int            // minutes between candidate slot starts

	mu         sync.RWMutex
	interviews map[string]*models.Interview

	now   func() time.Time
	spawn func(func()) // runs side effects; replaced in tests to run inline
}

func NewScheduler(store InterviewStore) *Scheduler {
	return &Scheduler{
		store:      store,
		slotStep:   30,
		interviews: make(map[string]*models.Interview),
		now:        time.Now,
		spawn:      func(task func()) { go task() },
	}
}

func (s *Scheduler) SetCalendar(calendar CalendarSync)      { s.calendar = calendar }
func (s *Scheduler) SetMailer(mailer Mailer)                { s.mailer = mailer }
func (s *Scheduler) SetPublisher(publisher EventPublisher)  { s.publisher = publisher }
func (s *Scheduler) SetSlotStep(minutes int) {
	if minutes > 0 {
		s.slotStep = minutes
	}
}

// Load warms the in-memory index from the store. Called once at startup.
func (s *Scheduler) Load(ctx context.Context) error {
	interviews, err := s.store.AllInterviews(ctx)
	if err != nil {
		return fmt.Errorf("failed to load interviews: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interviews = make(map[string]*models.Interview, len(interviews))
	for i := range interviews {
		interview := interviews[i]
		s.interviews[interview.ID] = &interview
	}
	slog.Info("Interview index loaded", "count", len(interviews))
	return nil
}

// ScheduleRequest carries the caller-supplied fields for a new interview.
type ScheduleRequest struct {
	Title         string         `json:"title"`
	Type          string         `json:"type"`
	Role          string         `json:"role"`
	Company       string         `json:"company"`
	Difficulty    string         `json:"difficulty"`
	ScheduledTime time.Time      `json:"scheduled_time"`
	Duration      int            `json:"duration"`
	Attendees     []string       `json:"attendees"`
	MeetingLink   string         `json:"meeting_link"`
	Notes         string         `json:"notes"`
	SessionData   models.JSONMap `json:"session_data"`
}

func (s *Scheduler) validateRequest(req *ScheduleRequest) error {
	if req.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInterview)
	}
	if !interviewTypes[req.Type] {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInterview, req.Type)
	}
	if req.Difficulty != "" && !difficulties[req.Difficulty] {
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidInterview, req.Difficulty)
	}
	if req.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidInterview)
	}
	if req.ScheduledTime.Before(s.now()) {
		return fmt.Errorf("%w: scheduled time is in the past", ErrInvalidInterview)
	}
	return nil
}

// ScheduleInterview persists a new interview and returns it. The overlap
// check runs under the same lock as the write, so two concurrent calls for
// overlapping times cannot both succeed.
func (s *Scheduler) ScheduleInterview(ctx context.Context, userID string, req *ScheduleRequest) (*models.Interview, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if conflict := s.findConflict(userID, req.ScheduledTime, req.Duration, ""); conflict != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s at %s", ErrSlotConflict, conflict.Title, conflict.ScheduledTime.Format(time.RFC3339))
	}

	now := s.now()
	interview := &models.Interview{
		ID:            uuid.New().String(),
		UserID:        userID,
		Title:         req.Title,
		Type:          req.Type,
		Role:          req.Role,
		Company:       req.Company,
		Difficulty:    req.Difficulty,
		ScheduledTime: req.ScheduledTime,
		Duration:      req.Duration,
		Status:        models.StatusScheduled,
		ReminderSent:  false,
		Attendees:     models.StringList(req.Attendees),
		MeetingLink:   req.MeetingLink,
		Notes:         req.Notes,
		SessionData:   req.SessionData,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateInterview(ctx, interview); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to persist interview: %w", err)
	}
	s.interviews[interview.ID] = interview
	snapshot := *interview
	s.mu.Unlock()

	s.spawn(func() { s.syncCalendarCreate(&snapshot) })
	s.publish(userID, ws.Event{
		Type:          ws.EventScheduled,
		InterviewID:   snapshot.ID,
		Title:         snapshot.Title,
		ScheduledTime: snapshot.ScheduledTime,
		Status:        snapshot.Status,
	})

	slog.Info("Interview scheduled", "interview_id", snapshot.ID, "user_id", userID, "scheduled_time", snapshot.ScheduledTime)
	return &snapshot, nil
}

// RescheduleInterview moves an interview to a new time. ReminderSent is
// always reset so the reminder engine re-fires for the new time. A cancelled
// interview is revived back to scheduled.
func (s *Scheduler) RescheduleInterview(ctx context.Context, userID, id string, newTime time.Time) (*models.Interview, error) {
	s.mu.Lock()
	interview, ok := s.lookup(userID, id)
	if !ok {
		s.mu.Unlock()
		return nil, ErrInterviewNotFound
	}
	if conflict := s.findConflict(userID, newTime, interview.Duration, id); conflict != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s at %s", ErrSlotConflict, conflict.Title, conflict.ScheduledTime.Format(time.RFC3339))
	}

	updated := *interview
	updated.ScheduledTime = newTime
	updated.ReminderSent = false
	if updated.Status == models.StatusCancelled {
		updated.Status = models.StatusScheduled
	}
	updated.UpdatedAt = s.now()

	if err := s.store.UpdateInterview(ctx, &updated); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to persist reschedule: %w", err)
	}
	*interview = updated
	snapshot := updated
	s.mu.Unlock()

	if snapshot.CalendarEventID != "" {
		s.spawn(func() { s.syncCalendarUpdate(&snapshot) })
	}
	s.publish(userID, ws.Event{
		Type:          ws.EventRescheduled,
		InterviewID:   snapshot.ID,
		Title:         snapshot.Title,
		ScheduledTime: snapshot.ScheduledTime,
		Status:        snapshot.Status,
	})

	slog.Info("Interview rescheduled", "interview_id", id, "user_id", userID, "scheduled_time", newTime)
	return &snapshot, nil
}

// CancelInterview marks an interview cancelled and triggers best-effort
// cleanup: the remote calendar event is removed and every attendee receives a
// cancellation email. Cancelling an already-cancelled interview is accepted
// and does nothing, so repeated cancels never resend notifications.
func (s *Scheduler) CancelInterview(ctx context.Context, userID, id, reason string) (*models.Interview, error) {
	s.mu.Lock()
	interview, ok := s.lookup(userID, id)
	if !ok {
		s.mu.Unlock()
		return nil, ErrInterviewNotFound
	}
	if interview.Status == models.StatusCancelled {
		snapshot := *interview
		s.mu.Unlock()
		return &snapshot, nil
	}

	updated := *interview
	updated.Status = models.StatusCancelled
	if reason != "" {
		if updated.Notes != "" {
			updated.Notes += "\n"
		}
		updated.Notes += "Cancellation reason: " + reason
	}
	updated.UpdatedAt = s.now()

	if err := s.store.UpdateInterview(ctx, &updated); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to persist cancellation: %w", err)
	}
	*interview = updated
	snapshot := updated
	s.mu.Unlock()

	s.spawn(func() {
		if snapshot.CalendarEventID != "" {
			s.syncCalendarDelete(&snapshot)
		}
		s.sendCancellationEmails(&snapshot, reason)
	})
	s.publish(userID, ws.Event{
		Type:        ws.EventCancelled,
		InterviewID: snapshot.ID,
		Title:       snapshot.Title,
		Status:      snapshot.Status,
		Message:     reason,
	})

	slog.Info("Interview cancelled", "interview_id", id, "user_id", userID, "reason", reason)
	return &snapshot, nil
}

// UpdateInterviewStatus advances the lifecycle state machine. The transition
// is validated; setting the current status again is a no-op. Cancelling via
// this path is a bare status change without the cancel side effects, which
// belong to CancelInterview.
func (s *Scheduler) UpdateInterviewStatus(ctx context.Context, userID, id, status string) (*models.Interview, error) {
	s.mu.Lock()
	interview, ok := s.lookup(userID, id)
	if !ok {
		s.mu.Unlock()
		return nil, ErrInterviewNotFound
	}
	if interview.Status == status {
		snapshot := *interview
		s.mu.Unlock()
		return &snapshot, nil
	}
	if !validTransitions[interview.Status][status] {
		from := interview.Status
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
	}

	updated := *interview
	updated.Status = status
	updated.UpdatedAt = s.now()

	if err := s.store.UpdateInterview(ctx, &updated); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to persist status update: %w", err)
	}
	*interview = updated
	snapshot := updated
	s.mu.Unlock()

	s.publish(userID, ws.Event{
		Type:        ws.EventStatus,
		InterviewID: snapshot.ID,
		Title:       snapshot.Title,
		Status:      snapshot.Status,
	})

	slog.Info("Interview status updated", "interview_id", id, "user_id", userID, "status", status)
	return &snapshot, nil
}

// DeleteInterview removes the record permanently. Irreversible.
func (s *Scheduler) DeleteInterview(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	interview, ok := s.lookup(userID, id)
	if !ok {
		s.mu.Unlock()
		return ErrInterviewNotFound
	}
	eventID := interview.CalendarEventID

	if err := s.store.DeleteInterview(ctx, id); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to delete interview: %w", err)
	}
	delete(s.interviews, id)
	s.mu.Unlock()

	if eventID != "" {
		s.spawn(func() {
			if s.calendar != nil {
				if err := s.calendar.DeleteEvent(context.Background(), userID, eventID); err != nil {
					slog.Error("Failed to delete calendar event", "error", err, "interview_id", id, "event_id", eventID)
				}
			}
		})
	}

	slog.Info("Interview deleted", "interview_id", id, "user_id", userID)
	return nil
}

// GetInterview returns a snapshot of one interview.
func (s *Scheduler) GetInterview(userID, id string) (*models.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	interview, ok := s.lookup(userID, id)
	if !ok {
		return nil, ErrInterviewNotFound
	}
	snapshot := *interview
	return &snapshot, nil
}

// InterviewStats aggregates the user's interview collection.
type InterviewStats struct {
	Total           int     `json:"total"`
	Completed       int     `json:"completed"`
	Cancelled       int     `json:"cancelled"`
	Upcoming        int     `json:"upcoming"`
	CompletionRate  float64 `json:"completion_rate"`  // completed / (total - cancelled), percent
	AverageDuration float64 `json:"average_duration"` // mean duration in minutes
}

// GetInterviewStats computes read-side aggregates. Upcoming counts scheduled
// interviews whose time is still in the future. CompletionRate and
// AverageDuration are 0 when their denominators are 0.
func (s *Scheduler) GetInterviewStats(userID string) InterviewStats {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats InterviewStats
	var totalDuration int
	for _, interview := range s.interviews {
		if interview.UserID != userID {
			continue
		}
		stats.Total++
		totalDuration += interview.Duration
		switch interview.Status {
		case models.StatusCompleted:
			stats.Completed++
		case models.StatusCancelled:
			stats.Cancelled++
		case models.StatusScheduled:
			if interview.ScheduledTime.After(now) {
				stats.Upcoming++
			}
		}
	}

	if denom := stats.Total - stats.Cancelled; denom > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(denom) * 100
	}
	if stats.Total > 0 {
		stats.AverageDuration = float64(totalDuration) / float64(stats.Total)
	}
	return stats
}

// PendingReminders snapshots every scheduled interview whose reminder has not
// fired yet. Used by the reminder engine each poll.
func (s *Scheduler) PendingReminders() []models.Interview {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []models.Interview
	for _, interview := range s.interviews {
		if interview.Status == models.StatusScheduled && !interview.ReminderSent {
			pending = append(pending, *interview)
		}
	}
	return pending
}

// MarkReminderSent flips the reminder flag with check-and-set semantics under
// the scheduler lock, so overlapping poll cycles cannot both claim the same
// interview. Returns false if the interview is gone, no longer scheduled, the
// flag was already set, or the store write failed (the next poll retries).
func (s *Scheduler) MarkReminderSent(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	interview, exists := s.interviews[id]
	if !exists || interview.Status != models.StatusScheduled || interview.ReminderSent {
		return false
	}

	updated := *interview
	updated.ReminderSent = true
	updated.UpdatedAt = s.now()
	if err := s.store.UpdateInterview(ctx, &updated); err != nil {
		slog.Error("Failed to persist reminder flag", "error", err, "interview_id", id)
		return false
	}
	*interview = updated
	return true
}

// lookup must be called with the lock held.
func (s *Scheduler) lookup(userID, id string) (*models.Interview, bool) {
	interview, exists := s.interviews[id]
	if !exists || interview.UserID != userID {
		return nil, false
	}
	return interview, true
}

// findConflict must be called with the lock held. Cancelled interviews never
// conflict; excludeID skips the interview being rescheduled.
func (s *Scheduler) findConflict(userID string, start time.Time, duration int, excludeID string) *models.Interview {
	for _, interview := range s.interviews {
		if interview.ID == excludeID || interview.UserID != userID {
			continue
		}
		if interview.Status == models.StatusCancelled {
			continue
		}
		if interview.Overlaps(start, duration) {
			return interview
		}
	}
	return nil
}

func (s *Scheduler) publish(userID string, event ws.Event) {
	if s.publisher != nil {
		s.publisher.Publish(userID, event)
	}
}

// Side effects. Failures are logged and swallowed: the primary mutation has
// already been persisted and reported as successful.

func (s *Scheduler) syncCalendarCreate(interview *models.Interview) {
	if s.calendar == nil {
		return
	}
	ctx := context.Background()
	if !s.calendar.Connected(ctx, interview.UserID) {
		return
	}

	eventID, err := s.calendar.CreateEvent(ctx, interview)
	if err != nil {
		slog.Error("Failed to create calendar event", "error", err, "interview_id", interview.ID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.interviews[interview.ID]
	if !exists {
		return
	}
	updated := *current
	updated.CalendarEventID = eventID
	updated.UpdatedAt = s.now()
	if err := s.store.UpdateInterview(ctx, &updated); err != nil {
		slog.Error("Failed to persist calendar event id", "error", err, "interview_id", interview.ID)
		return
	}
	*current = updated
	slog.Info("Calendar event created", "interview_id", interview.ID, "event_id", eventID)
}

func (s *Scheduler) syncCalendarUpdate(interview *models.Interview) {
	if s.calendar == nil {
		return
	}
	if err := s.calendar.UpdateEvent(context.Background(), interview); err != nil {
		slog.Error("Failed to update calendar event", "error", err, "interview_id", interview.ID, "event_id", interview.CalendarEventID)
	}
}

func (s *Scheduler) syncCalendarDelete(interview *models.Interview) {
	if s.calendar == nil {
		return
	}
	ctx := context.Background()
	if err := s.calendar.DeleteEvent(ctx, interview.UserID, interview.CalendarEventID); err != nil {
		slog.Error("Failed to delete calendar event", "error", err, "interview_id", interview.ID, "event_id", interview.CalendarEventID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.interviews[interview.ID]
	if !exists {
		return
	}
	updated := *current
	updated.CalendarEventID = ""
	if err := s.store.UpdateInterview(ctx, &updated); err != nil {
		slog.Error("Failed to clear calendar event id", "error", err, "interview_id", interview.ID)
		return
	}
	*current = updated
}

func (s *Scheduler) sendCancellationEmails(interview *models.Interview, reason string) {
	if s.mailer == nil || len(interview.Attendees) == 0 {
		return
	}
	ctx := context.Background()
	for _, attendee := range interview.Attendees {
		if err := s.mailer.SendCancellation(ctx, attendee, interview, reason); err != nil {
			slog.Error("Failed to send cancellation email", "error", err, "interview_id", interview.ID, "to", attendee)
		}
	}
}
