package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
	"github.com/shopspring/decimal"
)

const (
	defaultTransactionLimit = 25
	maxTransactionLimit     = 100
)

// maxSingleDeposit caps self-service deposits.
var maxSingleDeposit = decimal.NewFromInt(1_000_000)

type AccountService struct {
	repo          store.Repository
	notifications *NotificationService
}

func NewAccountService(repo store.Repository, notifications *NotificationService) *AccountService {
	return &AccountService{repo: repo, notifications: notifications}
}

func (s *AccountService) List(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	return s.repo.ListAccountsByUserID(ctx, userID)
}

// Get returns an account only if userID owns it.
func (s *AccountService) Get(ctx context.Context, userID uuid.UUID, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, store.ErrAccountNotFound
	}
	return account, nil
}

func (s *AccountService) Transactions(ctx context.Context, userID uuid.UUID, accountID uuid.UUID, limit int, offset int) ([]domain.Transaction, error) {
	if _, err := s.Get(ctx, userID, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		limit = maxTransactionLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactionsByAccount(ctx, accountID, userID, limit, offset)
}

// Deposit credits an account the user owns. Pending accounts accept deposits
// and activate once funded to their minimum deposit.
func (s *AccountService) Deposit(ctx context.Context, userID uuid.UUID, accountID uuid.UUID, req domain.DepositRequest) (*domain.Deposit, error) {
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, &ValidationError{Field: "amount", Message: "Deposit amount must be a positive dollar amount."}
	}
	if req.Amount.GreaterThan(maxSingleDeposit) {
		return nil, &ValidationError{Field: "amount", Message: "Deposit amount exceeds the single deposit limit."}
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Deposit"
	}

	deposit, err := s.repo.DepositToAccount(ctx, accountID, userID, req.Amount, description)
	if err != nil {
		return nil, err
	}

	s.notifications.Notify(ctx, userID, "deposit", "Deposit received",
		fmt.Sprintf("$%s was deposited. New balance: $%s.", req.Amount.StringFixed(2), deposit.Transaction.BalanceAfter.StringFixed(2)))
	if deposit.Activated {
		s.notifications.Notify(ctx, userID, "account_activated", "Account activated",
			"Your account is funded and now active.")
	}
	return deposit, nil
}
