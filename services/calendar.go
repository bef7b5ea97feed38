package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/careerloop/backend/models"
)

// CalendarStore persists per-user calendar connection state.
type CalendarStore interface {
	GetCalendarIntegration(ctx context.Context, userID string) (*models.CalendarIntegration, error)
	SaveCalendarIntegration(ctx context.Context, integration *models.CalendarIntegration) error
}

var calendarProviders = map[string]bool{
	models.ProviderGoogle:  true,
	models.ProviderOutlook: true,
	models.ProviderApple:   true,
	models.ProviderNone:    true,
}

// CalendarService mirrors interviews onto a remote Google calendar and owns
// the per-user connection rows. Event ids returned by the provider are opaque
// to the scheduler.
type CalendarService struct {
	store      CalendarStore
	events     *calendar.Service
	calendarID string
}

func NewCalendarService(ctx context.Context, cfg GoogleConfig, store CalendarStore) (*CalendarService, error) {
	client, err := newGoogleClient(ctx, cfg, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar client: %w", err)
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarService{
		store:      store,
		events:     svc,
		calendarID: cfg.CalendarID,
	}, nil
}

// Connected reports whether the user has an active calendar connection.
func (c *CalendarService) Connected(ctx context.Context, userID string) bool {
	integration, err := c.store.GetCalendarIntegration(ctx, userID)
	if err != nil || integration == nil {
		return false
	}
	return integration.Connected && integration.Provider != models.ProviderNone
}

// Connect records a calendar connection for the user. Provider "none" is
// equivalent to disconnecting.
func (c *CalendarService) Connect(ctx context.Context, userID, provider string) (*models.CalendarIntegration, error) {
	if !calendarProviders[provider] {
		return nil, fmt.Errorf("unknown calendar provider %q", provider)
	}

	integration, err := c.store.GetCalendarIntegration(ctx, userID)
	if err != nil {
		return nil, err
	}
	if integration == nil {
		integration = &models.CalendarIntegration{UserID: userID}
	}

	integration.Provider = provider
	integration.Connected = provider != models.ProviderNone
	if err := c.store.SaveCalendarIntegration(ctx, integration); err != nil {
		return nil, err
	}
	return integration, nil
}

// Disconnect drops the user's calendar connection and clears its credentials.
func (c *CalendarService) Disconnect(ctx context.Context, userID string) error {
	integration, err := c.store.GetCalendarIntegration(ctx, userID)
	if err != nil {
		return err
	}
	if integration == nil {
		return nil
	}

	integration.Provider = models.ProviderNone
	integration.Connected = false
	integration.AccessToken = ""
	integration.RefreshToken = ""
	return c.store.SaveCalendarIntegration(ctx, integration)
}

// Integration returns the user's connection row, or a disconnected default.
func (c *CalendarService) Integration(ctx context.Context, userID string) (*models.CalendarIntegration, error) {
	integration, err := c.store.GetCalendarIntegration(ctx, userID)
	if err != nil {
		return nil, err
	}
	if integration == nil {
		integration = &models.CalendarIntegration{
			UserID:    userID,
			Provider:  models.ProviderNone,
			Connected: false,
		}
	}
	return integration, nil
}

func (c *CalendarService) buildEvent(interview *models.Interview) *calendar.Event {
	event := &calendar.Event{
		Summary:     interview.Title,
		Description: fmt.Sprintf("%s interview for %s at %s", interview.Type, interview.Role, interview.Company),
		Location:    interview.MeetingLink,
		Start: &calendar.EventDateTime{
			DateTime: interview.ScheduledTime.Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: interview.EndTime().Format(time.RFC3339),
		},
	}
	for _, attendee := range interview.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: attendee})
	}
	return event
}

// CreateEvent inserts a remote event and returns its id.
func (c *CalendarService) CreateEvent(ctx context.Context, interview *models.Interview) (string, error) {
	created, err := c.events.Events.Insert(c.calendarID, c.buildEvent(interview)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert calendar event: %w", err)
	}
	c.markSynced(ctx, interview.UserID)
	return created.Id, nil
}

// UpdateEvent pushes the interview's current time and details to the remote
// event referenced by its CalendarEventID.
func (c *CalendarService) UpdateEvent(ctx context.Context, interview *models.Interview) error {
	_, err := c.events.Events.Patch(c.calendarID, interview.CalendarEventID, c.buildEvent(interview)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to patch calendar event: %w", err)
	}
	c.markSynced(ctx, interview.UserID)
	return nil
}

// DeleteEvent removes the remote event.
func (c *CalendarService) DeleteEvent(ctx context.Context, userID, eventID string) error {
	if err := c.events.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete calendar event: %w", err)
	}
	c.markSynced(ctx, userID)
	return nil
}

func (c *CalendarService) markSynced(ctx context.Context, userID string) {
	integration, err := c.store.GetCalendarIntegration(ctx, userID)
	if err != nil || integration == nil {
		return
	}
	integration.LastSync = time.Now()
	if err := c.store.SaveCalendarIntegration(ctx, integration); err != nil {
		slog.Error("Failed to record calendar sync time", "error", err, "user_id", userID)
	}
}
