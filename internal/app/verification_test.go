package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
)

type verificationFixture struct {
	repo    *repoStub
	sender  *senderStub
	limiter *limiterStub
	service *VerificationService
	userID  uuid.UUID
	clock   time.Time
}

func newVerificationFixture() *verificationFixture {
	repo := newRepoStub()
	sender := &senderStub{}
	limiter := &limiterStub{retry: 1800}
	userID := uuid.New()
	repo.profiles[userID] = &domain.Profile{ID: userID, FirstName: "Jane", Email: "jane@example.com"}

	f := &verificationFixture{
		repo:    repo,
		sender:  sender,
		limiter: limiter,
		userID:  userID,
		clock:   time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC),
	}
	f.service = NewVerificationService(repo, NewNotificationService(repo, sender), limiter, 10*time.Minute, 5, 5)
	f.service.now = func() time.Time { return f.clock }
	codes := []string{"123456", "654321", "111222"}
	f.service.generateCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}
	return f
}

func TestRequestEmailChange_StoresHashedCodeAndEmailsIt(t *testing.T) {
	f := newVerificationFixture()

	record, err := f.service.RequestEmailChange(context.Background(), f.userID, " New.Address@Example.com ")
	if err != nil {
		t.Fatalf("RequestEmailChange returned error: %v", err)
	}
	if record.NewEmail != "new.address@example.com" {
		t.Fatalf("expected normalized email, got %q", record.NewEmail)
	}
	if !record.ExpiresAt.Equal(f.clock.Add(10 * time.Minute)) {
		t.Fatalf("expected expiry ten minutes out, got %s", record.ExpiresAt)
	}
	stored := f.repo.codes[f.userID]
	if stored.CodeHash == "" || stored.CodeHash == "123456" {
		t.Fatal("expected a bcrypt hash, not the raw code")
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0].To != "new.address@example.com" || !strings.Contains(f.sender.sent[0].Text, "123456") {
		t.Fatalf("expected code emailed to new address, got %+v", f.sender.sent)
	}
}

func TestRequestEmailChange_KeepsOneCodePerUser(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()

	if _, err := f.service.RequestEmailChange(ctx, f.userID, "first@example.com"); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if _, err := f.service.RequestEmailChange(ctx, f.userID, "second@example.com"); err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if len(f.repo.codes) != 1 {
		t.Fatalf("expected one code for the user, got %d", len(f.repo.codes))
	}

	if _, err := f.service.ConfirmEmailChange(ctx, f.userID, "123456"); !errors.Is(err, ErrInvalidVerificationCode) {
		t.Fatalf("expected superseded code to be invalid, got %v", err)
	}
	email, err := f.service.ConfirmEmailChange(ctx, f.userID, "654321")
	if err != nil {
		t.Fatalf("expected latest code to confirm, got %v", err)
	}
	if email != "second@example.com" {
		t.Fatalf("expected second@example.com, got %s", email)
	}
}

func TestRequestEmailChange_Validation(t *testing.T) {
	f := newVerificationFixture()
	f.repo.emailsInUse["taken@example.com"] = true

	var verr *ValidationError
	if _, err := f.service.RequestEmailChange(context.Background(), f.userID, "not-an-email"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for malformed email, got %v", err)
	}
	if _, err := f.service.RequestEmailChange(context.Background(), f.userID, "JANE@example.com"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unchanged email, got %v", err)
	}
	if _, err := f.service.RequestEmailChange(context.Background(), f.userID, "taken@example.com"); !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
}

func TestRequestEmailChange_RateLimited(t *testing.T) {
	f := newVerificationFixture()
	f.limiter.counts = map[string]int{scopeEmailChange + ":" + f.userID.String(): 5}

	_, err := f.service.RequestEmailChange(context.Background(), f.userID, "new@example.com")
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rlErr.RetryAfterSeconds != 1800 {
		t.Fatalf("expected retry after 1800s, got %d", rlErr.RetryAfterSeconds)
	}
	if len(f.repo.codes) != 0 {
		t.Fatal("no code should be stored when rate limited")
	}
}

func TestRequestEmailChange_LimiterOutageFailsOpen(t *testing.T) {
	f := newVerificationFixture()
	f.limiter.err = errors.New("redis down")

	if _, err := f.service.RequestEmailChange(context.Background(), f.userID, "new@example.com"); err != nil {
		t.Fatalf("expected request to proceed when limiter is unavailable, got %v", err)
	}
}

func TestConfirmEmailChange_UpdatesProfile(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()
	if _, err := f.service.RequestEmailChange(ctx, f.userID, "new@example.com"); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	f.clock = f.clock.Add(10 * time.Minute)
	email, err := f.service.ConfirmEmailChange(ctx, f.userID, " 123456 ")
	if err != nil {
		t.Fatalf("ConfirmEmailChange returned error: %v", err)
	}
	if email != "new@example.com" || f.repo.profiles[f.userID].Email != "new@example.com" {
		t.Fatalf("expected profile email updated, got %q", f.repo.profiles[f.userID].Email)
	}
	if _, ok := f.repo.codes[f.userID]; ok {
		t.Fatal("expected code deleted after confirmation")
	}
	if types := f.repo.notificationTypes(); len(types) != 1 || types[0] != "email_changed" {
		t.Fatalf("expected email_changed notification, got %v", types)
	}
}

func TestConfirmEmailChange_ExpiredAfterTenMinutes(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()
	if _, err := f.service.RequestEmailChange(ctx, f.userID, "new@example.com"); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	f.clock = f.clock.Add(10*time.Minute + time.Second)
	if _, err := f.service.ConfirmEmailChange(ctx, f.userID, "123456"); !errors.Is(err, ErrVerificationCodeExpired) {
		t.Fatalf("expected ErrVerificationCodeExpired, got %v", err)
	}
	if _, ok := f.repo.codes[f.userID]; ok {
		t.Fatal("expected expired code to be deleted")
	}
	if f.repo.profiles[f.userID].Email != "jane@example.com" {
		t.Fatal("email must not change")
	}

	if _, err := f.service.ConfirmEmailChange(ctx, f.userID, "123456"); !errors.Is(err, ErrNoVerificationCode) {
		t.Fatalf("expected ErrNoVerificationCode after cleanup, got %v", err)
	}
}

func TestConfirmEmailChange_WrongCodeKeepsCode(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()
	if _, err := f.service.RequestEmailChange(ctx, f.userID, "new@example.com"); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if _, err := f.service.ConfirmEmailChange(ctx, f.userID, "000000"); !errors.Is(err, ErrInvalidVerificationCode) {
		t.Fatalf("expected ErrInvalidVerificationCode, got %v", err)
	}
	if _, ok := f.repo.codes[f.userID]; !ok {
		t.Fatal("code should survive a wrong guess")
	}
}

func TestConfirmEmailChange_TooManyAttempts(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()
	record, err := f.service.RequestEmailChange(ctx, f.userID, "new@example.com")
	if err != nil {
		t.Fatalf("RequestEmailChange returned error: %v", err)
	}
	f.limiter.counts[scopeEmailConfirm+":"+record.ID.String()] = 5

	_, err = f.service.ConfirmEmailChange(ctx, f.userID, "123456")
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
}

func TestConfirmEmailChange_FreshCodeResetsAttempts(t *testing.T) {
	f := newVerificationFixture()
	ctx := context.Background()
	if _, err := f.service.RequestEmailChange(ctx, f.userID, "new@example.com"); err != nil {
		t.Fatalf("RequestEmailChange returned error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := f.service.ConfirmEmailChange(ctx, f.userID, "000000"); !errors.Is(err, ErrInvalidVerificationCode) {
			t.Fatalf("attempt %d: expected ErrInvalidVerificationCode, got %v", i+1, err)
		}
	}
	var rlErr *RateLimitError
	if _, err := f.service.ConfirmEmailChange(ctx, f.userID, "123456"); !errors.As(err, &rlErr) {
		t.Fatalf("expected RateLimitError after five wrong guesses, got %v", err)
	}

	if _, err := f.service.RequestEmailChange(ctx, f.userID, "new@example.com"); err != nil {
		t.Fatalf("second RequestEmailChange returned error: %v", err)
	}
	email, err := f.service.ConfirmEmailChange(ctx, f.userID, "654321")
	if err != nil {
		t.Fatalf("expected the fresh code to confirm, got %v", err)
	}
	if email != "new@example.com" {
		t.Fatalf("expected new@example.com, got %q", email)
	}
}
