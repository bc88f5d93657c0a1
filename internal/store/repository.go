/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access performed by the banking-service. Application services depend on the
 * interface so tests can substitute in-memory stubs for PostgreSQL.
 *
 * @dependencies
 * - github.com/google/uuid, github.com/shopspring/decimal
 * - internal/domain: the service's models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound          = errors.New("account not found")
	ErrAccountNotActive         = errors.New("account is not active")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrLoanNotFound             = errors.New("loan not found")
	ErrLoanStateConflict        = errors.New("loan status changed concurrently")
	ErrProfileNotFound          = errors.New("profile not found")
	ErrProfileExists            = errors.New("profile already exists")
	ErrAdminNotFound            = errors.New("admin profile not found")
	ErrVerificationCodeNotFound = errors.New("verification code not found")
	ErrZelleContactNotFound     = errors.New("zelle contact not found")
	ErrMFANotConfigured         = errors.New("mfa not configured")
	ErrBankDetailsNotFound      = errors.New("bank details not found")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Accounts and ledger
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	ListAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	DepositToAccount(ctx context.Context, accountID uuid.UUID, userID uuid.UUID, amount decimal.Decimal, description string) (*domain.Deposit, error)
	ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID, userID uuid.UUID, limit int, offset int) ([]domain.Transaction, error)

	// Loans
	CreateLoan(ctx context.Context, loan *domain.Loan) error
	FindLoanByID(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	ListLoansByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error)
	ListLoansByStatus(ctx context.Context, status domain.LoanStatus, limit int, offset int) ([]domain.Loan, error)
	DisburseLoan(ctx context.Context, d domain.LoanDisbursement) (decimal.Decimal, error)
	RejectLoan(ctx context.Context, loanID uuid.UUID, reason *string) error
	CloseLoan(ctx context.Context, loanID uuid.UUID) error
	ApplyLoanPayment(ctx context.Context, p domain.LoanPayment) (*domain.Loan, error)
	ListSettledActiveLoans(ctx context.Context, limit int) ([]domain.Loan, error)

	// Notifications
	CreateNotification(ctx context.Context, n domain.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, opts domain.NotificationListOptions) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID uuid.UUID, notificationID uuid.UUID) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error)

	// Profiles, roles and enrollment
	FindProfileByID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	EmailInUse(ctx context.Context, email string) (bool, error)
	UpdateProfileEmail(ctx context.Context, userID uuid.UUID, email string) error
	FindAdminRole(ctx context.Context, userID uuid.UUID) (string, error)
	CreateEnrollment(ctx context.Context, e domain.NewEnrollment) error

	// Email verification codes
	ReplaceVerificationCode(ctx context.Context, code domain.VerificationCode) error
	FindVerificationCodeByUserID(ctx context.Context, userID uuid.UUID) (*domain.VerificationCode, error)
	DeleteVerificationCodes(ctx context.Context, userID uuid.UUID) error
	PurgeExpiredVerificationCodes(ctx context.Context, now time.Time) (int64, error)

	// MFA
	FindMFASettings(ctx context.Context, userID uuid.UUID) (*domain.MFASettings, error)
	UpsertMFASettings(ctx context.Context, settings domain.MFASettings) error

	// Zelle
	ListZelleContacts(ctx context.Context, userID uuid.UUID) ([]domain.ZelleContact, error)
	FindZelleContact(ctx context.Context, contactID uuid.UUID, userID uuid.UUID) (*domain.ZelleContact, error)
	CreateZelleContact(ctx context.Context, contact *domain.ZelleContact) error
	UpdateZelleContact(ctx context.Context, contact *domain.ZelleContact) error
	DeleteZelleContact(ctx context.Context, contactID uuid.UUID, userID uuid.UUID) error
	SendZelle(ctx context.Context, transfer *domain.ZelleTransaction) (decimal.Decimal, error)
	ListZelleTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ZelleTransaction, error)

	// Institution
	GetBankDetails(ctx context.Context) (*domain.BankDetails, error)
}
