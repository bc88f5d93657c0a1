package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/oakline/banking-service/pkg/emailclient"
	"github.com/oakline/banking-service/pkg/mailer"
)

// EmailProvider delivers a single email.
type EmailProvider interface {
	SendEmail(ctx context.Context, payload emailclient.SendEmailRequest) (*emailclient.SendEmailResponse, error)
}

// EmailDelivery consumes queued emails and hands them to the provider.
type EmailDelivery struct {
	provider EmailProvider
	from     string
}

func NewEmailDelivery(provider EmailProvider, from string) *EmailDelivery {
	return &EmailDelivery{provider: provider, from: strings.TrimSpace(from)}
}

// HandleMessage returns false only for failures worth retrying. Malformed
// messages and permanent provider rejections are acked and logged.
func (d *EmailDelivery) HandleMessage(ctx context.Context, body []byte) bool {
	var email mailer.Email
	if err := json.Unmarshal(body, &email); err != nil {
		log.Printf("level=error component=email_delivery msg=\"dropping malformed message\" err=%v", err)
		return true
	}
	if err := email.Validate(); err != nil {
		log.Printf("level=error component=email_delivery msg=\"dropping invalid email\" err=%v", err)
		return true
	}

	resp, err := d.provider.SendEmail(ctx, emailclient.SendEmailRequest{
		From:    d.from,
		To:      []string{strings.TrimSpace(email.To)},
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    email.Text,
	})
	if err != nil {
		var statusErr *emailclient.StatusError
		if errors.As(err, &statusErr) && statusErr.Permanent() {
			log.Printf("level=error component=email_delivery msg=\"provider rejected email\" status=%d subject=%q", statusErr.StatusCode, email.Subject)
			return true
		}
		if errors.Is(err, emailclient.ErrNotConfigured) {
			log.Printf("level=error component=email_delivery msg=\"provider not configured; dropping email\" subject=%q", email.Subject)
			return true
		}
		log.Printf("level=warn component=email_delivery msg=\"delivery failed; requeueing\" subject=%q err=%v", email.Subject, err)
		return false
	}

	log.Printf("level=info component=email_delivery msg=\"email delivered\" provider_id=%s subject=%q", resp.ID, email.Subject)
	return true
}
