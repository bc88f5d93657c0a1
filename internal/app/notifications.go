package app

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
	"github.com/oakline/banking-service/pkg/mailer"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationService owns the in-app inbox and the best-effort user alerts
// raised by the other services.
type NotificationService struct {
	repo   store.Repository
	mailer mailer.Sender
}

func NewNotificationService(repo store.Repository, sender mailer.Sender) *NotificationService {
	return &NotificationService{repo: repo, mailer: sender}
}

// Notify inserts an inbox notification. Failures are logged, never returned.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, kind, title, message string) {
	if s == nil {
		return
	}
	n := domain.Notification{ID: uuid.New(), UserID: userID, Type: kind, Title: title, Message: message}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		log.Printf("level=warn component=notifications msg=\"notification insert failed\" user_id=%s type=%s err=%v", userID, kind, err)
	}
}

// EmailUser looks up the user's address and queues an email. Failures are logged.
func (s *NotificationService) EmailUser(ctx context.Context, userID uuid.UUID, subject, text string) {
	if s == nil || s.mailer == nil {
		return
	}
	profile, err := s.repo.FindProfileByID(ctx, userID)
	if err != nil {
		log.Printf("level=warn component=notifications msg=\"email skipped; profile lookup failed\" user_id=%s err=%v", userID, err)
		return
	}
	s.EmailAddress(ctx, profile.Email, subject, greeting(profile)+text)
}

// EmailAddress queues an email to a literal address with plain-text and HTML
// bodies. Failures are logged.
func (s *NotificationService) EmailAddress(ctx context.Context, to, subject, text string) {
	if s == nil || s.mailer == nil {
		return
	}
	email := mailer.Email{To: to, Subject: subject, Text: text}
	html, err := mailer.RenderHTML(subject, text)
	if err != nil {
		log.Printf("level=warn component=notifications msg=\"html render failed; sending text only\" subject=%q err=%v", subject, err)
	} else {
		email.HTML = html
	}
	if err := s.mailer.Send(ctx, email); err != nil {
		log.Printf("level=warn component=notifications msg=\"email enqueue failed\" subject=%q err=%v", subject, err)
	}
}

func greeting(p *domain.Profile) string {
	if name := p.FullName(); name != "" {
		return "Hello " + name + ",\n\n"
	}
	return ""
}

// List returns the user's notifications, clamping the page size.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, opts domain.NotificationListOptions) ([]domain.Notification, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultNotificationLimit
	}
	if opts.Limit > maxNotificationLimit {
		opts.Limit = maxNotificationLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.repo.ListNotifications(ctx, userID, opts)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	ok, err := s.repo.MarkNotificationRead(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}
