/**
 * @description
 * Account and ledger models. Accounts carry a decimal balance; every balance
 * mutation writes a Transaction row inside the same database transaction.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AccountStatusPending = "pending"
	AccountStatusActive  = "active"
	AccountStatusFrozen  = "frozen"
	AccountStatusClosed  = "closed"
)

// Account maps to the `accounts` table.
type Account struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	AccountNumber string          `json:"account_number"`
	AccountType   string          `json:"account_type"`
	Status        string          `json:"status"`
	Balance       decimal.Decimal `json:"balance"`
	MinDeposit    decimal.Decimal `json:"min_deposit"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AcceptsCredit reports whether deposits and loan disbursements may land in
// the account. Pending accounts take credits so they can be funded.
func (a *Account) AcceptsCredit() bool {
	return a.Status == AccountStatusActive || a.Status == AccountStatusPending
}

// StatusAfterCredit returns the status the account moves to once its balance
// is balance. A pending account activates when it reaches MinDeposit.
func (a *Account) StatusAfterCredit(balance decimal.Decimal) string {
	if a.Status == AccountStatusPending && balance.GreaterThanOrEqual(a.MinDeposit) {
		return AccountStatusActive
	}
	return a.Status
}

// Deposit is the outcome of a credit to an account.
type Deposit struct {
	Transaction   *Transaction `json:"transaction"`
	AccountStatus string       `json:"account_status"`
	Activated     bool         `json:"activated"`
}

// TransactionType classifies ledger rows.
type TransactionType string

const (
	TransactionDeposit          TransactionType = "deposit"
	TransactionLoanDisbursement TransactionType = "loan_disbursement"
	TransactionLoanPayment      TransactionType = "loan_payment"
	TransactionZelleSend        TransactionType = "zelle_send"
)

// Transaction is an immutable ledger row in the `transactions` table.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	AccountID    uuid.UUID       `json:"account_id"`
	Type         TransactionType `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Status       string          `json:"status"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	ReferenceID  *uuid.UUID      `json:"reference_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DepositRequest is the body of POST /api/accounts/{id}/deposits.
type DepositRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// Notification maps to the `notifications` table.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationListOptions filters the notification inbox.
type NotificationListOptions struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

// BankDetails is the public institution profile served from `bank_details`.
type BankDetails struct {
	Name          string `json:"name"`
	RoutingNumber string `json:"routing_number"`
	SwiftCode     string `json:"swift_code"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
}
