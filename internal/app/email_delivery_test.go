package app

import (
	"context"
	"errors"
	"testing"

	"github.com/oakline/banking-service/pkg/emailclient"
)

type providerStub struct {
	err  error
	sent []emailclient.SendEmailRequest
}

func (p *providerStub) SendEmail(ctx context.Context, payload emailclient.SendEmailRequest) (*emailclient.SendEmailResponse, error) {
	p.sent = append(p.sent, payload)
	if p.err != nil {
		return nil, p.err
	}
	return &emailclient.SendEmailResponse{ID: "msg_1"}, nil
}

func TestEmailDelivery_HandleMessage(t *testing.T) {
	valid := []byte(`{"to":" jane@example.com ","subject":"Your code","text":"123456"}`)

	tests := []struct {
		name     string
		body     []byte
		err      error
		wantAck  bool
		wantSent int
	}{
		{name: "delivered", body: valid, wantAck: true, wantSent: 1},
		{name: "malformed json", body: []byte(`{"to":`), wantAck: true, wantSent: 0},
		{name: "invalid recipient", body: []byte(`{"to":"nobody","subject":"x"}`), wantAck: true, wantSent: 0},
		{name: "permanent rejection", body: valid, err: &emailclient.StatusError{StatusCode: 422}, wantAck: true, wantSent: 1},
		{name: "provider throttled", body: valid, err: &emailclient.StatusError{StatusCode: 429}, wantAck: false, wantSent: 1},
		{name: "provider down", body: valid, err: &emailclient.StatusError{StatusCode: 503}, wantAck: false, wantSent: 1},
		{name: "transport error", body: valid, err: errors.New("connection refused"), wantAck: false, wantSent: 1},
		{name: "not configured", body: valid, err: emailclient.ErrNotConfigured, wantAck: true, wantSent: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &providerStub{err: tt.err}
			delivery := NewEmailDelivery(provider, "Oakline Bank <no-reply@oaklinebank.com>")

			if got := delivery.HandleMessage(context.Background(), tt.body); got != tt.wantAck {
				t.Fatalf("expected ack=%v, got %v", tt.wantAck, got)
			}
			if len(provider.sent) != tt.wantSent {
				t.Fatalf("expected %d provider calls, got %d", tt.wantSent, len(provider.sent))
			}
			if tt.wantSent > 0 {
				req := provider.sent[0]
				if len(req.To) != 1 || req.To[0] != "jane@example.com" || req.From != "Oakline Bank <no-reply@oaklinebank.com>" {
					t.Fatalf("unexpected provider payload: %+v", req)
				}
			}
		})
	}
}
