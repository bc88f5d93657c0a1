package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
)

func validApplication() domain.EnrollmentApplication {
	return domain.EnrollmentApplication{
		FirstName:      "Jane",
		LastName:       "Doe",
		DateOfBirth:    "1990-04-15",
		Email:          "jane@example.com",
		Phone:          "+1 (555) 010-2030",
		SSNLast4:       "1234",
		AddressLine1:   "1 Main St",
		City:           "Springfield",
		State:          "IL",
		ZipCode:        "62701",
		AccountType:    "savings",
		InitialDeposit: dec("150"),
		TermsAccepted:  true,
	}
}

func newEnrollmentService(repo *repoStub, sender *senderStub) *EnrollmentService {
	svc := NewEnrollmentService(repo, NewNotificationService(repo, sender))
	svc.now = fixedClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	svc.accountNumber = func() (string, error) { return "7000000001", nil }
	return svc
}

func TestVerifyStep(t *testing.T) {
	tests := []struct {
		name      string
		step      int
		mutate    func(*domain.EnrollmentApplication)
		wantField string
	}{
		{"personal ok", domain.EnrollmentStepPersonal, nil, ""},
		{"missing first name", domain.EnrollmentStepPersonal, func(a *domain.EnrollmentApplication) { a.FirstName = " " }, "first_name"},
		{"bad date", domain.EnrollmentStepPersonal, func(a *domain.EnrollmentApplication) { a.DateOfBirth = "04/15/1990" }, "date_of_birth"},
		{"seventeen", domain.EnrollmentStepPersonal, func(a *domain.EnrollmentApplication) { a.DateOfBirth = "2008-06-02" }, "date_of_birth"},
		{"eighteen today", domain.EnrollmentStepPersonal, func(a *domain.EnrollmentApplication) { a.DateOfBirth = "2008-06-01" }, ""},
		{"contact ok", domain.EnrollmentStepContact, nil, ""},
		{"bad email", domain.EnrollmentStepContact, func(a *domain.EnrollmentApplication) { a.Email = "jane@" }, "email"},
		{"email taken", domain.EnrollmentStepContact, func(a *domain.EnrollmentApplication) { a.Email = "taken@example.com" }, "email"},
		{"short phone", domain.EnrollmentStepContact, func(a *domain.EnrollmentApplication) { a.Phone = "555-0102" }, "phone"},
		{"letters in phone", domain.EnrollmentStepContact, func(a *domain.EnrollmentApplication) { a.Phone = "555-010-20AB" }, "phone"},
		{"identity ok", domain.EnrollmentStepIdentity, nil, ""},
		{"ssn too long", domain.EnrollmentStepIdentity, func(a *domain.EnrollmentApplication) { a.SSNLast4 = "12345" }, "ssn_last4"},
		{"bad state", domain.EnrollmentStepIdentity, func(a *domain.EnrollmentApplication) { a.State = "I1" }, "state"},
		{"bad zip", domain.EnrollmentStepIdentity, func(a *domain.EnrollmentApplication) { a.ZipCode = "627" }, "zip_code"},
		{"account ok", domain.EnrollmentStepAccount, nil, ""},
		{"unknown product", domain.EnrollmentStepAccount, func(a *domain.EnrollmentApplication) { a.AccountType = "crypto" }, "account_type"},
		{"below minimum", domain.EnrollmentStepAccount, func(a *domain.EnrollmentApplication) { a.InitialDeposit = dec("99.99") }, "initial_deposit"},
		{"review ok", domain.EnrollmentStepReview, nil, ""},
		{"terms not accepted", domain.EnrollmentStepReview, func(a *domain.EnrollmentApplication) { a.TermsAccepted = false }, "terms_accepted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepoStub()
			repo.emailsInUse["taken@example.com"] = true
			svc := newEnrollmentService(repo, &senderStub{})

			app := validApplication()
			if tt.mutate != nil {
				tt.mutate(&app)
			}
			result, err := svc.VerifyStep(context.Background(), tt.step, app)
			if err != nil {
				t.Fatalf("VerifyStep returned error: %v", err)
			}
			if tt.wantField == "" {
				if !result.Valid {
					t.Fatalf("expected valid, got errors %v", result.Errors)
				}
				return
			}
			if result.Valid {
				t.Fatalf("expected %s to be invalid", tt.wantField)
			}
			if _, ok := result.Errors[tt.wantField]; !ok {
				t.Fatalf("expected error on %s, got %v", tt.wantField, result.Errors)
			}
		})
	}
}

func TestVerifyStep_UnknownStep(t *testing.T) {
	svc := newEnrollmentService(newRepoStub(), &senderStub{})
	for _, step := range []int{0, 6} {
		if _, err := svc.VerifyStep(context.Background(), step, validApplication()); !errors.Is(err, ErrUnknownEnrollmentStep) {
			t.Fatalf("step %d: expected ErrUnknownEnrollmentStep, got %v", step, err)
		}
	}
}

func TestSubmit_CreatesProfileAndPendingAccount(t *testing.T) {
	repo := newRepoStub()
	sender := &senderStub{}
	svc := newEnrollmentService(repo, sender)
	userID := uuid.New()

	result, err := svc.Submit(context.Background(), userID, validApplication())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if result.Profile.ID != userID || result.Profile.Phone != "15550102030" {
		t.Fatalf("unexpected profile: %+v", result.Profile)
	}
	if result.Account.Status != domain.AccountStatusPending || result.Account.AccountType != "savings" {
		t.Fatalf("unexpected account: %+v", result.Account)
	}
	if !result.Account.MinDeposit.Equal(dec("100")) || result.Account.AccountNumber != "7000000001" {
		t.Fatalf("unexpected account details: %+v", result.Account)
	}
	if len(repo.enrollments) != 1 {
		t.Fatalf("expected one enrollment written, got %d", len(repo.enrollments))
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "jane@example.com" {
		t.Fatalf("expected welcome email, got %+v", sender.sent)
	}

	if _, err := svc.Submit(context.Background(), userID, validApplication()); !errors.Is(err, store.ErrProfileExists) {
		t.Fatalf("expected ErrProfileExists on resubmission, got %v", err)
	}
}

func TestSubmit_ReportsFirstInvalidStep(t *testing.T) {
	repo := newRepoStub()
	svc := newEnrollmentService(repo, &senderStub{})
	app := validApplication()
	app.ZipCode = "abc"
	app.TermsAccepted = false

	_, err := svc.Submit(context.Background(), uuid.New(), app)
	var verr *EnrollmentValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected EnrollmentValidationError, got %v", err)
	}
	if verr.Step != domain.EnrollmentStepIdentity {
		t.Fatalf("expected step 3 to fail first, got %d", verr.Step)
	}
	if len(repo.enrollments) != 0 {
		t.Fatal("nothing should be written")
	}
}

func TestRandomAccountNumber(t *testing.T) {
	number, err := randomAccountNumber()
	if err != nil {
		t.Fatalf("randomAccountNumber returned error: %v", err)
	}
	if !allDigits(number, accountNumberDigits) || number[0] == '0' {
		t.Fatalf("unexpected account number %q", number)
	}
}
