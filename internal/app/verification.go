/**
 * @description
 * Email change verification. A six digit code is mailed to the new address
 * and must be confirmed within the configured TTL. Only the bcrypt hash of
 * the code is stored, and each user has at most one live code.
 *
 * @dependencies
 * - golang.org/x/crypto/bcrypt: code hashing.
 * - pkg/ratelimit: per-user request and confirm budgets.
 */

package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
	"github.com/oakline/banking-service/pkg/ratelimit"
	"golang.org/x/crypto/bcrypt"
)

const (
	verificationCodeDigits = 6
	scopeEmailChange       = "email_change"
	scopeEmailConfirm      = "email_change_confirm"
)

// VerificationService issues and confirms email change codes.
type VerificationService struct {
	repo            store.Repository
	notifications   *NotificationService
	limiter         ratelimit.Limiter
	ttl             time.Duration
	requestsPerHour int
	maxConfirmTries int
	now             func() time.Time
	generateCode    func() (string, error)
}

func NewVerificationService(repo store.Repository, notifications *NotificationService, limiter ratelimit.Limiter, ttl time.Duration, requestsPerHour int, maxConfirmTries int) *VerificationService {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	return &VerificationService{
		repo:            repo,
		notifications:   notifications,
		limiter:         limiter,
		ttl:             ttl,
		requestsPerHour: requestsPerHour,
		maxConfirmTries: maxConfirmTries,
		now:             time.Now,
		generateCode:    randomDigits,
	}
}

// randomDigits returns a zero-padded six digit code from crypto/rand.
func randomDigits() (string, error) {
	upper := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", verificationCodeDigits, n.Int64()), nil
}

// normalizeEmail lowercases and validates a bare address.
func normalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", false
	}
	return email, true
}

// consume spends one unit of subject's budget in scope.
func (s *VerificationService) consume(ctx context.Context, scope string, subject string, limit int, window time.Duration) error {
	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, scope, subject, limit, window)
	if err != nil {
		log.Printf("level=warn component=verification msg=\"rate limiter unavailable; allowing request\" scope=%s subject=%s err=%v", scope, subject, err)
		return nil
	}
	if limit > 0 && count > limit {
		return &RateLimitError{Scope: scope, RetryAfterSeconds: retryAfter}
	}
	return nil
}

// RequestEmailChange replaces any existing code for the user with a fresh one
// and mails it to newEmail. It returns the stored code record.
func (s *VerificationService) RequestEmailChange(ctx context.Context, userID uuid.UUID, newEmail string) (*domain.VerificationCode, error) {
	email, ok := normalizeEmail(newEmail)
	if !ok {
		return nil, &ValidationError{Field: "new_email", Message: "A valid email address is required."}
	}

	profile, err := s.repo.FindProfileByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(profile.Email, email) {
		return nil, &ValidationError{Field: "new_email", Message: "New email must be different from your current email."}
	}
	inUse, err := s.repo.EmailInUse(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if inUse {
		return nil, ErrEmailInUse
	}

	if err := s.consume(ctx, scopeEmailChange, userID.String(), s.requestsPerHour, time.Hour); err != nil {
		return nil, err
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash code: %w", err)
	}

	now := s.now().UTC()
	record := domain.VerificationCode{
		ID:        uuid.New(),
		UserID:    userID,
		CodeHash:  string(hash),
		NewEmail:  email,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.ReplaceVerificationCode(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store code: %w", err)
	}

	s.notifications.EmailAddress(ctx, email, "Your Oakline Bank verification code",
		fmt.Sprintf("Your verification code is %s. It expires in %d minutes. If you did not request this change, contact us right away.", code, int(s.ttl.Minutes())))
	log.Printf("level=info component=verification msg=\"email change code issued\" user_id=%s", userID)
	return &record, nil
}

// ConfirmEmailChange checks code against the user's live code and, on a match,
// moves the profile to the new address. It returns the new address.
func (s *VerificationService) ConfirmEmailChange(ctx context.Context, userID uuid.UUID, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", &ValidationError{Field: "code", Message: "Verification code is required."}
	}
	record, err := s.repo.FindVerificationCodeByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrVerificationCodeNotFound) {
			return "", ErrNoVerificationCode
		}
		return "", err
	}

	if record.Expired(s.now()) {
		if err := s.repo.DeleteVerificationCodes(ctx, userID); err != nil {
			log.Printf("level=warn component=verification msg=\"expired code cleanup failed\" user_id=%s err=%v", userID, err)
		}
		return "", ErrVerificationCodeExpired
	}

	// Attempts are budgeted per issued code, so a fresh code starts a fresh budget.
	if err := s.consume(ctx, scopeEmailConfirm, record.ID.String(), s.maxConfirmTries, s.ttl); err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(code)); err != nil {
		return "", ErrInvalidVerificationCode
	}

	if err := s.repo.UpdateProfileEmail(ctx, userID, record.NewEmail); err != nil {
		return "", fmt.Errorf("failed to update email: %w", err)
	}
	if err := s.repo.DeleteVerificationCodes(ctx, userID); err != nil {
		log.Printf("level=warn component=verification msg=\"code cleanup failed\" user_id=%s err=%v", userID, err)
	}

	s.notifications.Notify(ctx, userID, "email_changed", "Email updated",
		fmt.Sprintf("Your email address was changed to %s.", record.NewEmail))
	log.Printf("level=info component=verification msg=\"email change confirmed\" user_id=%s", userID)
	return record.NewEmail, nil
}
