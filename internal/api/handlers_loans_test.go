package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
)

type loanHandlerFixture struct {
	repo     *fakeRepo
	router   http.Handler
	admin    uuid.UUID
	borrower uuid.UUID
	account  *domain.Account
}

func newLoanHandlerFixture() *loanHandlerFixture {
	repo := newFakeRepo()
	admin := uuid.New()
	borrower := uuid.New()
	repo.adminRoles[admin] = domain.RoleAdmin
	account := repo.addAccount(borrower, "500.00")
	return &loanHandlerFixture{
		repo:     repo,
		router:   newTestRouter(repo),
		admin:    admin,
		borrower: borrower,
		account:  account,
	}
}

func decodeBody(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, string(body))
	}
	return out
}

func TestApproveLoanHandler_Disburses(t *testing.T) {
	f := newLoanHandlerFixture()
	loan := f.repo.addLoan(f.borrower, f.account.ID, domain.LoanStatusPending, "10000", "0")

	rec := doRequest(t, f.router, http.MethodPost, fmt.Sprintf("/api/admin/loans/%s/approve", loan.ID), &f.admin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec.Body.Bytes())
	if body["new_balance"] != "10500" {
		t.Fatalf("expected new_balance 10500, got %v", body["new_balance"])
	}
	if body["total_due"] != "10327.97" {
		t.Fatalf("expected total_due 10327.97, got %v", body["total_due"])
	}
	if f.repo.loans[loan.ID].Status != domain.LoanStatusActive {
		t.Fatalf("expected loan to be active, got %s", f.repo.loans[loan.ID].Status)
	}
	if len(f.repo.notifications) != 1 || f.repo.notifications[0].Type != "loan_approved" {
		t.Fatalf("expected a loan_approved notification, got %+v", f.repo.notifications)
	}
}

func TestLoanHandlers_StatusPreconditions(t *testing.T) {
	tests := []struct {
		name      string
		status    domain.LoanStatus
		remaining string
		action    string
		wantCode  int
		wantError string
	}{
		{name: "approve active", status: domain.LoanStatusActive, remaining: "100", action: "approve", wantCode: http.StatusBadRequest, wantError: "Only pending loans can be approved."},
		{name: "approve rejected", status: domain.LoanStatusRejected, remaining: "0", action: "approve", wantCode: http.StatusBadRequest, wantError: "Only pending loans can be approved."},
		{name: "reject closed", status: domain.LoanStatusClosed, remaining: "0", action: "reject", wantCode: http.StatusBadRequest, wantError: "Only pending loans can be rejected."},
		{name: "reject active", status: domain.LoanStatusActive, remaining: "100", action: "reject", wantCode: http.StatusBadRequest, wantError: "Only pending loans can be rejected."},
		{name: "close pending", status: domain.LoanStatusPending, remaining: "0", action: "close", wantCode: http.StatusBadRequest, wantError: "Only active loans can be closed."},
		{name: "close with balance", status: domain.LoanStatusActive, remaining: "12.50", action: "close", wantCode: http.StatusBadRequest, wantError: "Loan still has an outstanding balance."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoanHandlerFixture()
			loan := f.repo.addLoan(f.borrower, f.account.ID, tt.status, "1000", tt.remaining)

			rec := doRequest(t, f.router, http.MethodPost, fmt.Sprintf("/api/admin/loans/%s/%s", loan.ID, tt.action), &f.admin, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d (%s)", tt.wantCode, rec.Code, rec.Body.String())
			}
			if got := decodeBody(t, rec.Body.Bytes())["error"]; got != tt.wantError {
				t.Fatalf("expected error %q, got %v", tt.wantError, got)
			}
			if f.repo.loans[loan.ID].Status != tt.status {
				t.Fatalf("loan status should be unchanged, got %s", f.repo.loans[loan.ID].Status)
			}
			if !f.repo.accounts[f.account.ID].Balance.Equal(f.account.Balance) {
				t.Fatalf("account balance should be unchanged, got %s", f.repo.accounts[f.account.ID].Balance)
			}
		})
	}
}

func TestApproveLoanHandler_NotFound(t *testing.T) {
	f := newLoanHandlerFixture()

	rec := doRequest(t, f.router, http.MethodPost, fmt.Sprintf("/api/admin/loans/%s/approve", uuid.New()), &f.admin, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := decodeBody(t, rec.Body.Bytes())["error"]; got != "Loan not found" {
		t.Fatalf("unexpected error message %v", got)
	}
}

func TestApproveLoanHandler_MissingAccount(t *testing.T) {
	f := newLoanHandlerFixture()
	loan := f.repo.addLoan(f.borrower, uuid.New(), domain.LoanStatusPending, "1000", "0")

	rec := doRequest(t, f.router, http.MethodPost, fmt.Sprintf("/api/admin/loans/%s/approve", loan.ID), &f.admin, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := decodeBody(t, rec.Body.Bytes())["error"]; got != "Account not found" {
		t.Fatalf("unexpected error message %v", got)
	}
}

func TestApproveLoanHandler_ConcurrentApprovalConflicts(t *testing.T) {
	f := newLoanHandlerFixture()
	loan := f.repo.addLoan(f.borrower, f.account.ID, domain.LoanStatusPending, "1000", "0")
	f.repo.disburseErr = store.ErrLoanStateConflict

	rec := doRequest(t, f.router, http.MethodPost, fmt.Sprintf("/api/admin/loans/%s/approve", loan.ID), &f.admin, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if got := decodeBody(t, rec.Body.Bytes())["error"]; got != "Loan is no longer pending." {
		t.Fatalf("unexpected error message %v", got)
	}
	if len(f.repo.notifications) != 0 {
		t.Fatalf("no notification expected on conflict, got %d", len(f.repo.notifications))
	}
}

func TestApproveLoanHandler_InvalidID(t *testing.T) {
	f := newLoanHandlerFixture()

	rec := doRequest(t, f.router, http.MethodPost, "/api/admin/loans/not-a-uuid/approve", &f.admin, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRejectLoanHandler_StoresReason(t *testing.T) {
	f := newLoanHandlerFixture()
	loan := f.repo.addLoan(f.borrower, f.account.ID, domain.LoanStatusPending, "1000", "0")

	rec := doRequest(t, f.router, http.MethodPost, fmt.Sprintf("/api/admin/loans/%s/reject", loan.ID), &f.admin, `{"reason":"  Insufficient income  "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	stored := f.repo.loans[loan.ID]
	if stored.Status != domain.LoanStatusRejected {
		t.Fatalf("expected rejected, got %s", stored.Status)
	}
	if stored.RejectionReason == nil || *stored.RejectionReason != "Insufficient income" {
		t.Fatalf("expected trimmed reason, got %v", stored.RejectionReason)
	}
}

func TestCloseLoanHandler_Closes(t *testing.T) {
	f := newLoanHandlerFixture()
	loan := f.repo.addLoan(f.borrower, f.account.ID, domain.LoanStatusActive, "1000", "0.01")

	rec := doRequest(t, f.router, http.MethodPost, fmt.Sprintf("/api/admin/loans/%s/close", loan.ID), &f.admin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if f.repo.loans[loan.ID].Status != domain.LoanStatusClosed {
		t.Fatalf("expected closed, got %s", f.repo.loans[loan.ID].Status)
	}
}

func TestListLoansForReviewHandler_RejectsUnknownStatus(t *testing.T) {
	f := newLoanHandlerFixture()

	rec := doRequest(t, f.router, http.MethodGet, "/api/admin/loans?status=approved", &f.admin, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestApproveLoanPaymentStub_AlwaysNotFound(t *testing.T) {
	f := newLoanHandlerFixture()

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			rec := doRequest(t, f.router, method, "/api/admin/approve-loan-payment", &f.admin, `{"loan_id":"x"}`)
			if rec.Code != http.StatusNotFound {
				t.Fatalf("expected 404, got %d", rec.Code)
			}
		})
	}

	rec := doRequest(t, f.router, http.MethodPost, "/api/admin/approve-loan-payment", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without credentials, got %d", rec.Code)
	}
}

func TestLoanCalculatorHandler(t *testing.T) {
	f := newLoanHandlerFixture()

	rec := doRequest(t, f.router, http.MethodGet, "/api/calculators/loan?principal=10000&rate=6&term=12&schedule=true", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec.Body.Bytes())
	if body["total_due"] != "10327.97" || body["monthly_payment"] != "860.66" {
		t.Fatalf("unexpected quote: %v", body)
	}
	schedule, ok := body["schedule"].([]interface{})
	if !ok || len(schedule) != 12 {
		t.Fatalf("expected 12 schedule rows, got %v", body["schedule"])
	}
}

func TestLoanCalculatorHandler_InvalidInput(t *testing.T) {
	f := newLoanHandlerFixture()

	tests := []string{
		"/api/calculators/loan?principal=abc&rate=6&term=12",
		"/api/calculators/loan?principal=1000&rate=6&term=twelve",
		"/api/calculators/loan?principal=-5&rate=6&term=12",
		"/api/calculators/loan?principal=1000&rate=6&term=0",
	}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			rec := doRequest(t, f.router, http.MethodGet, path, nil, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
			}
		})
	}
}
