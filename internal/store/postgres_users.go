package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oakline/banking-service/internal/domain"
)

// FindProfileByID retrieves a customer profile.
func (r *PostgresRepository) FindProfileByID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	query := `
        SELECT id, first_name, last_name, email, phone, date_of_birth, enrollment_status, created_at, updated_at
        FROM profiles WHERE id = $1
    `
	var p domain.Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.DateOfBirth, &p.EnrollmentStatus, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

// EmailInUse reports whether any profile already uses email (case-insensitive).
func (r *PostgresRepository) EmailInUse(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE LOWER(email) = LOWER($1))`, strings.TrimSpace(email)).Scan(&exists)
	return exists, err
}

// UpdateProfileEmail sets the confirmed email address on a profile.
func (r *PostgresRepository) UpdateProfileEmail(ctx context.Context, userID uuid.UUID, email string) error {
	tag, err := r.db.Exec(ctx, `UPDATE profiles SET email = $2, updated_at = NOW() WHERE id = $1`, userID, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// FindAdminRole returns the staff role of a user, or ErrAdminNotFound.
func (r *PostgresRepository) FindAdminRole(ctx context.Context, userID uuid.UUID) (string, error) {
	var role string
	err := r.db.QueryRow(ctx, `SELECT role FROM admin_profiles WHERE user_id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrAdminNotFound
		}
		return "", err
	}
	return role, nil
}

// CreateEnrollment writes the new profile and its first (pending) account.
func (r *PostgresRepository) CreateEnrollment(ctx context.Context, e domain.NewEnrollment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p := e.Profile
	err = tx.QueryRow(ctx, `
        INSERT INTO profiles (id, first_name, last_name, email, phone, date_of_birth, enrollment_status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at
    `, p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.DateOfBirth, p.EnrollmentStatus).Scan(&e.Profile.CreatedAt, &e.Profile.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			log.Printf("level=warn component=store msg=\"enrollment unique violation\" constraint=%s", pgErr.ConstraintName)
			return ErrProfileExists
		}
		return err
	}

	a := e.Account
	_, err = tx.Exec(ctx, `
        INSERT INTO accounts (id, user_id, account_number, account_type, status, balance, min_deposit)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, a.ID, a.UserID, a.AccountNumber, a.AccountType, a.Status, a.Balance, a.MinDeposit)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return tx.Commit(ctx)
}

// ReplaceVerificationCode deletes any prior code for the user and stores the
// new one, keeping at most one live code per user.
func (r *PostgresRepository) ReplaceVerificationCode(ctx context.Context, code domain.VerificationCode) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM email_verification_codes WHERE user_id = $1`, code.UserID); err != nil {
		return fmt.Errorf("failed to delete prior codes: %w", err)
	}
	_, err = tx.Exec(ctx, `
        INSERT INTO email_verification_codes (id, user_id, code_hash, new_email, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, code.ID, code.UserID, code.CodeHash, code.NewEmail, code.ExpiresAt, code.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert code: %w", err)
	}
	return tx.Commit(ctx)
}

// FindVerificationCodeByUserID returns the user's current code.
func (r *PostgresRepository) FindVerificationCodeByUserID(ctx context.Context, userID uuid.UUID) (*domain.VerificationCode, error) {
	var c domain.VerificationCode
	err := r.db.QueryRow(ctx, `
        SELECT id, user_id, code_hash, new_email, expires_at, created_at
        FROM email_verification_codes
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT 1
    `, userID).Scan(&c.ID, &c.UserID, &c.CodeHash, &c.NewEmail, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVerificationCodeNotFound
		}
		return nil, err
	}
	return &c, nil
}

// DeleteVerificationCodes removes every code for a user.
func (r *PostgresRepository) DeleteVerificationCodes(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM email_verification_codes WHERE user_id = $1`, userID)
	return err
}

// PurgeExpiredVerificationCodes deletes codes that expired before now.
func (r *PostgresRepository) PurgeExpiredVerificationCodes(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM email_verification_codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FindMFASettings returns a user's MFA configuration.
func (r *PostgresRepository) FindMFASettings(ctx context.Context, userID uuid.UUID) (*domain.MFASettings, error) {
	var s domain.MFASettings
	err := r.db.QueryRow(ctx, `
        SELECT user_id, secret, enabled, backup_code_hashes, updated_at
        FROM user_mfa_settings WHERE user_id = $1
    `, userID).Scan(&s.UserID, &s.Secret, &s.Enabled, &s.BackupCodeHashes, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMFANotConfigured
		}
		return nil, err
	}
	return &s, nil
}

// UpsertMFASettings creates or replaces a user's MFA configuration.
func (r *PostgresRepository) UpsertMFASettings(ctx context.Context, s domain.MFASettings) error {
	hashes := s.BackupCodeHashes
	if hashes == nil {
		hashes = []string{}
	}
	_, err := r.db.Exec(ctx, `
        INSERT INTO user_mfa_settings (user_id, secret, enabled, backup_code_hashes, updated_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET secret = EXCLUDED.secret,
            enabled = EXCLUDED.enabled,
            backup_code_hashes = EXCLUDED.backup_code_hashes,
            updated_at = NOW()
    `, s.UserID, s.Secret, s.Enabled, hashes)
	return err
}

// GetBankDetails returns the institution profile.
func (r *PostgresRepository) GetBankDetails(ctx context.Context) (*domain.BankDetails, error) {
	var b domain.BankDetails
	err := r.db.QueryRow(ctx, `
        SELECT name, routing_number, swift_code, address, phone, email
        FROM bank_details
        ORDER BY id ASC
        LIMIT 1
    `).Scan(&b.Name, &b.RoutingNumber, &b.SwiftCode, &b.Address, &b.Phone, &b.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBankDetailsNotFound
		}
		return nil, err
	}
	return &b, nil
}
