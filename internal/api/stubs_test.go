package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/app"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
	"github.com/shopspring/decimal"
)

const testSecret = "test-signing-secret"

// fakeRepo implements the slice of store.Repository the HTTP tests exercise.
// Anything else falls through to the nil embedded interface and panics.
type fakeRepo struct {
	store.Repository

	loans         map[uuid.UUID]*domain.Loan
	accounts      map[uuid.UUID]*domain.Account
	adminRoles    map[uuid.UUID]string
	notifications []domain.Notification
	bankDetails   *domain.BankDetails

	disburseErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		loans:      map[uuid.UUID]*domain.Loan{},
		accounts:   map[uuid.UUID]*domain.Account{},
		adminRoles: map[uuid.UUID]string{},
	}
}

func (r *fakeRepo) addAccount(userID uuid.UUID, balance string) *domain.Account {
	a := &domain.Account{
		ID:            uuid.New(),
		UserID:        userID,
		AccountNumber: "7012345678",
		AccountType:   "checking",
		Status:        domain.AccountStatusActive,
		Balance:       decimal.RequireFromString(balance),
	}
	r.accounts[a.ID] = a
	return a
}

func (r *fakeRepo) addLoan(userID, accountID uuid.UUID, status domain.LoanStatus, principal string, remaining string) *domain.Loan {
	l := &domain.Loan{
		ID:               uuid.New(),
		UserID:           userID,
		AccountID:        accountID,
		Principal:        decimal.RequireFromString(principal),
		InterestRate:     decimal.RequireFromString("6"),
		TermMonths:       12,
		Status:           status,
		RemainingBalance: decimal.RequireFromString(remaining),
	}
	r.loans[l.ID] = l
	return l
}

func (r *fakeRepo) FindLoanByID(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	l, ok := r.loans[loanID]
	if !ok {
		return nil, store.ErrLoanNotFound
	}
	copied := *l
	return &copied, nil
}

func (r *fakeRepo) ListLoansByStatus(ctx context.Context, status domain.LoanStatus, limit int, offset int) ([]domain.Loan, error) {
	out := []domain.Loan{}
	for _, l := range r.loans {
		if status == "" || l.Status == status {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	a, ok := r.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *fakeRepo) DisburseLoan(ctx context.Context, d domain.LoanDisbursement) (decimal.Decimal, error) {
	if r.disburseErr != nil {
		return decimal.Zero, r.disburseErr
	}
	account := r.accounts[d.AccountID]
	account.Balance = account.Balance.Add(d.Principal)
	loan := r.loans[d.LoanID]
	loan.Status = domain.LoanStatusActive
	loan.RemainingBalance = d.TotalDue
	return account.Balance, nil
}

func (r *fakeRepo) RejectLoan(ctx context.Context, loanID uuid.UUID, reason *string) error {
	loan := r.loans[loanID]
	loan.Status = domain.LoanStatusRejected
	loan.RejectionReason = reason
	return nil
}

func (r *fakeRepo) CloseLoan(ctx context.Context, loanID uuid.UUID) error {
	r.loans[loanID].Status = domain.LoanStatusClosed
	return nil
}

func (r *fakeRepo) FindAdminRole(ctx context.Context, userID uuid.UUID) (string, error) {
	role, ok := r.adminRoles[userID]
	if !ok {
		return "", store.ErrAdminNotFound
	}
	return role, nil
}

func (r *fakeRepo) CreateNotification(ctx context.Context, n domain.Notification) error {
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *fakeRepo) FindProfileByID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	return nil, store.ErrProfileNotFound
}

func (r *fakeRepo) GetBankDetails(ctx context.Context) (*domain.BankDetails, error) {
	if r.bankDetails == nil {
		return nil, store.ErrBankDetailsNotFound
	}
	return r.bankDetails, nil
}

func newTestRouter(repo *fakeRepo) http.Handler {
	notifications := app.NewNotificationService(repo, nil)
	h := NewHandlers(Services{
		Loans:         app.NewLoanService(repo, notifications, nil),
		Notifications: notifications,
		Roles:         app.NewRoleService(repo),
		BankDetails:   app.NewBankDetailsService(repo, nil, 0),
	})
	return NewRouter(h, RouterConfig{
		Auth:           AuthMiddlewareConfig{Secret: testSecret},
		AllowedOrigins: []string{"http://localhost:3000"},
	})
}

func signToken(t *testing.T, secret string, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, handler http.Handler, method, path string, userID *uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != nil {
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, userID.String(), time.Hour))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}
