package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/careerloop/backend/models"
)

// GmailMailer sends interview notifications through the Gmail API. Sends are
// fire-and-forget from the scheduler's point of view; a failure here never
// rolls back the operation that triggered it.
type GmailMailer struct {
	svc  *gmail.Service
	from string
}

func NewGmailMailer(ctx context.Context, cfg GoogleConfig) (*GmailMailer, error) {
	client, err := newGoogleClient(ctx, cfg, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("failed to build gmail client: %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &GmailMailer{svc: svc, from: cfg.MailFrom}, nil
}

func (m *GmailMailer) send(ctx context.Context, to, subject, htmlBody string) error {
	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		m.from, to, subject, htmlBody)

	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}
	if _, err := m.svc.Users.Messages.Send("me", message).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("Email sent", "to", to, "subject", subject)
	return nil
}

// SendReminder emails an upcoming-interview notice.
func (m *GmailMailer) SendReminder(ctx context.Context, to string, interview *models.Interview, minutesBefore int) error {
	subject := fmt.Sprintf("Reminder: %s in %d minutes", interview.Title, minutesBefore)
	body := fmt.Sprintf(`<h2>Interview Reminder</h2>
<p>Your interview <strong>%s</strong> starts soon.</p>
<ul>
<li>Role: %s</li>
<li>Company: %s</li>
<li>When: %s</li>
<li>Duration: %d minutes</li>
</ul>
%s`,
		interview.Title,
		interview.Role,
		interview.Company,
		interview.ScheduledTime.Format(time.RFC1123),
		interview.Duration,
		meetingLinkHTML(interview))
	return m.send(ctx, to, subject, body)
}

// SendCancellation emails a cancellation notice to one attendee.
func (m *GmailMailer) SendCancellation(ctx context.Context, to string, interview *models.Interview, reason string) error {
	subject := fmt.Sprintf("Cancelled: %s", interview.Title)
	reasonHTML := ""
	if reason != "" {
		reasonHTML = fmt.Sprintf("<p>Reason: %s</p>", reason)
	}
	body := fmt.Sprintf(`<h2>Interview Cancelled</h2>
<p>The interview <strong>%s</strong> has been cancelled.</p>
<ul>
<li>Role: %s</li>
<li>Company: %s</li>
<li>Was scheduled for: %s</li>
<li>Duration: %d minutes</li>
</ul>
%s`,
		interview.Title,
		interview.Role,
		interview.Company,
		interview.ScheduledTime.Format(time.RFC1123),
		interview.Duration,
		reasonHTML)
	return m.send(ctx, to, subject, body)
}

func meetingLinkHTML(interview *models.Interview) string {
	if interview.MeetingLink == "" {
		return ""
	}
	return fmt.Sprintf(`<p>Join: <a href="%s">%s</a></p>`, interview.MeetingLink, interview.MeetingLink)
}
