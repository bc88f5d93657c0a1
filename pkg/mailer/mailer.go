/**
 * @description
 * This package is the email-sending collaborator used by the api. Emails are
 * queued on RabbitMQ and delivered by the notifier binary, so a slow provider
 * never holds up a request.
 *
 * @dependencies
 * - pkg/rabbitmq: the JSON publisher.
 */
package mailer

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strings"

	"github.com/oakline/banking-service/pkg/rabbitmq"
)

// RoutingKeySend is the routing key of queued emails.
const RoutingKeySend = "email.send"

var ErrInvalidEmail = errors.New("email requires a valid recipient and subject")

// Email is the queued message.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Validate checks the recipient address and subject.
func (e Email) Validate() error {
	if strings.TrimSpace(e.Subject) == "" {
		return ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(e.To)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	return nil
}

var htmlLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1a1a1a;">
<h2 style="color: #0b3d6b;">{{.Subject}}</h2>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}<p style="color: #6b6b6b; font-size: 12px;">Oakline Bank</p>
</body>
</html>
`))

// RenderHTML wraps a plain-text body in the bank's HTML layout. Blank lines
// separate paragraphs; the text is escaped.
func RenderHTML(subject, text string) (string, error) {
	var paragraphs []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if block = strings.Join(strings.Fields(block), " "); block != "" {
			paragraphs = append(paragraphs, block)
		}
	}

	var b strings.Builder
	err := htmlLayout.Execute(&b, struct {
		Subject    string
		Paragraphs []string
	}{Subject: subject, Paragraphs: paragraphs})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Sender sends an email.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// QueueSender publishes emails to the notifications exchange.
type QueueSender struct {
	publisher rabbitmq.Publisher
	exchange  string
}

// NewQueueSender creates a sender that publishes to exchange.
func NewQueueSender(publisher rabbitmq.Publisher, exchange string) *QueueSender {
	return &QueueSender{publisher: publisher, exchange: exchange}
}

// Send validates and enqueues email.
func (s *QueueSender) Send(ctx context.Context, email Email) error {
	if err := email.Validate(); err != nil {
		return err
	}
	email.To = strings.TrimSpace(email.To)
	if err := s.publisher.Publish(ctx, s.exchange, RoutingKeySend, email); err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	return nil
}
