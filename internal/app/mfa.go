/**
 * @description
 * Time-based one-time password MFA. Setup issues a TOTP secret and single-use
 * backup codes; the secret only becomes active after the user proves they can
 * produce a valid code.
 *
 * @dependencies
 * - github.com/pquerna/otp: TOTP key generation and validation.
 * - golang.org/x/crypto/bcrypt: backup code hashing.
 */

package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const (
	backupCodeCount  = 10
	backupCodeLength = 10
)

// backupCodeAlphabet leaves out 0/O and 1/I.
const backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var totpValidateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// MFAService manages TOTP enrollment for users.
type MFAService struct {
	repo          store.Repository
	notifications *NotificationService
	issuer        string
	now           func() time.Time
}

func NewMFAService(repo store.Repository, notifications *NotificationService, issuer string) *MFAService {
	return &MFAService{repo: repo, notifications: notifications, issuer: issuer, now: time.Now}
}

func generateBackupCodes() ([]string, error) {
	codes := make([]string, backupCodeCount)
	buf := make([]byte, backupCodeLength)
	for i := range codes {
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		var b strings.Builder
		for j, v := range buf {
			if j == backupCodeLength/2 {
				b.WriteByte('-')
			}
			b.WriteByte(backupCodeAlphabet[int(v)%len(backupCodeAlphabet)])
		}
		codes[i] = b.String()
	}
	return codes, nil
}

func normalizeBackupCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), " ", ""))
}

// Setup starts (or restarts) MFA enrollment. The secret and backup codes are
// returned once and the settings stay disabled until Verify succeeds.
func (s *MFAService) Setup(ctx context.Context, userID uuid.UUID) (*domain.MFASetupResponse, error) {
	existing, err := s.repo.FindMFASettings(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrMFANotConfigured) {
		return nil, err
	}
	if existing != nil && existing.Enabled {
		return nil, ErrMFAAlreadyEnabled
	}

	accountName := userID.String()
	if profile, err := s.repo.FindProfileByID(ctx, userID); err == nil && profile.Email != "" {
		accountName = profile.Email
	}

	key, err := totp.Generate(totp.GenerateOpts{Issuer: s.issuer, AccountName: accountName})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp key: %w", err)
	}

	codes, err := generateBackupCodes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup codes: %w", err)
	}
	hashes := make([]string, len(codes))
	for i, code := range codes {
		hash, err := bcrypt.GenerateFromPassword([]byte(normalizeBackupCode(code)), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash backup code: %w", err)
		}
		hashes[i] = string(hash)
	}

	if err := s.repo.UpsertMFASettings(ctx, domain.MFASettings{
		UserID:           userID,
		Secret:           key.Secret(),
		Enabled:          false,
		BackupCodeHashes: hashes,
	}); err != nil {
		return nil, fmt.Errorf("failed to store mfa settings: %w", err)
	}

	return &domain.MFASetupResponse{Secret: key.Secret(), OTPAuthURL: key.URL(), BackupCodes: codes}, nil
}

func (s *MFAService) validTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, s.now().UTC(), totpValidateOpts)
	return err == nil && ok
}

// Verify confirms a TOTP code for a pending setup and enables MFA.
func (s *MFAService) Verify(ctx context.Context, userID uuid.UUID, code string) error {
	settings, err := s.repo.FindMFASettings(ctx, userID)
	if err != nil {
		return err
	}
	if settings.Enabled {
		return ErrMFAAlreadyEnabled
	}
	if settings.Secret == "" {
		return store.ErrMFANotConfigured
	}
	if !s.validTOTP(code, settings.Secret) {
		return ErrInvalidMFACode
	}

	settings.Enabled = true
	if err := s.repo.UpsertMFASettings(ctx, *settings); err != nil {
		return fmt.Errorf("failed to enable mfa: %w", err)
	}
	log.Printf("level=info component=mfa msg=\"mfa enabled\" user_id=%s", userID)
	s.notifications.Notify(ctx, userID, "security", "Two-factor authentication enabled",
		"Two-factor authentication is now protecting your account.")
	return nil
}

// Disable turns MFA off after checking a TOTP code or an unused backup code.
func (s *MFAService) Disable(ctx context.Context, userID uuid.UUID, code string) error {
	settings, err := s.repo.FindMFASettings(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrMFANotConfigured) {
			return ErrMFANotEnabled
		}
		return err
	}
	if !settings.Enabled {
		return ErrMFANotEnabled
	}
	if !s.validTOTP(code, settings.Secret) && matchBackupCode(settings.BackupCodeHashes, code) < 0 {
		return ErrInvalidMFACode
	}

	if err := s.repo.UpsertMFASettings(ctx, domain.MFASettings{UserID: userID, Secret: "", Enabled: false}); err != nil {
		return fmt.Errorf("failed to disable mfa: %w", err)
	}
	log.Printf("level=warn component=mfa msg=\"mfa disabled\" user_id=%s", userID)
	s.notifications.Notify(ctx, userID, "security", "Two-factor authentication disabled",
		"Two-factor authentication was turned off. If this was not you, contact us immediately.")
	s.notifications.EmailUser(ctx, userID, "Two-factor authentication was disabled",
		"Two-factor authentication was turned off for your Oakline Bank account. If you did not do this, contact us immediately.")
	return nil
}

// matchBackupCode returns the index of the hash matching code, or -1.
func matchBackupCode(hashes []string, code string) int {
	normalized := normalizeBackupCode(code)
	if normalized == "" {
		return -1
	}
	for i, hash := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalized)) == nil {
			return i
		}
	}
	return -1
}

func (s *MFAService) Status(ctx context.Context, userID uuid.UUID) (*domain.MFAStatus, error) {
	settings, err := s.repo.FindMFASettings(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrMFANotConfigured) {
			return &domain.MFAStatus{}, nil
		}
		return nil, err
	}
	return &domain.MFAStatus{
		Configured:           settings.Secret != "",
		Enabled:              settings.Enabled,
		BackupCodesRemaining: len(settings.BackupCodeHashes),
	}, nil
}
