/**
 * @description
 * User-centric models: profiles, staff roles, email verification codes, MFA
 * settings and Zelle address-book entries.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Profile maps to the `profiles` table. ID equals the auth subject.
type Profile struct {
	ID               uuid.UUID `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	DateOfBirth      string    `json:"date_of_birth"`
	EnrollmentStatus string    `json:"enrollment_status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FullName joins first and last name for greetings.
func (p *Profile) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleSuperAdmin = "super_admin"
)

// LoanOfficerRoles may approve, reject and close loans.
var LoanOfficerRoles = []string{RoleAdmin, RoleManager, RoleSuperAdmin}

// AdminProfile maps to the `admin_profiles` table.
type AdminProfile struct {
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleCheckResponse is returned by GET /api/admin/check-role.
type RoleCheckResponse struct {
	IsAdmin bool   `json:"is_admin"`
	Role    string `json:"role,omitempty"`
}

// VerificationCode maps to `email_verification_codes`. Only the bcrypt hash of
// the code is persisted.
type VerificationCode struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CodeHash  string    `json:"-"`
	NewEmail  string    `json:"new_email"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the code is past its expiry at time now.
func (c *VerificationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// EmailChangeRequest is the body of POST /api/verification/email-change.
type EmailChangeRequest struct {
	NewEmail string `json:"new_email"`
}

// EmailChangeConfirmRequest is the body of the confirm endpoint.
type EmailChangeConfirmRequest struct {
	Code string `json:"code"`
}

// MFASettings maps to `user_mfa_settings`.
type MFASettings struct {
	UserID           uuid.UUID `json:"user_id"`
	Secret           string    `json:"-"`
	Enabled          bool      `json:"enabled"`
	BackupCodeHashes []string  `json:"-"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MFASetupResponse is returned once, when MFA enrollment begins.
type MFASetupResponse struct {
	Secret      string   `json:"secret"`
	OTPAuthURL  string   `json:"otpauth_url"`
	BackupCodes []string `json:"backup_codes"`
}

// MFAStatus is returned by GET /api/mfa/status.
type MFAStatus struct {
	Configured           bool `json:"configured"`
	Enabled              bool `json:"enabled"`
	BackupCodesRemaining int  `json:"backup_codes_remaining"`
}

// MFACodeRequest carries a TOTP or backup code.
type MFACodeRequest struct {
	Code string `json:"code"`
}

// ZelleContact maps to `zelle_contacts`.
type ZelleContact struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ZelleContactRequest is the body for creating or updating a contact.
type ZelleContactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ZelleTransaction maps to `zelle_transactions`.
type ZelleTransaction struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	AccountID uuid.UUID       `json:"account_id"`
	ContactID uuid.UUID       `json:"contact_id"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Memo      string          `json:"memo,omitempty"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// ZelleSendRequest is the body of POST /api/zelle/send.
type ZelleSendRequest struct {
	AccountID string          `json:"account_id"`
	ContactID string          `json:"contact_id"`
	Amount    decimal.Decimal `json:"amount"`
	Memo      string          `json:"memo"`
}
