/**
 * @description
 * Server-side checks for the five step enrollment wizard and the final
 * submission that opens the customer's first account.
 */

package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
)

const (
	minimumEnrollmentAge = 18
	accountNumberDigits  = 10
	enrollmentSubmitted  = "submitted"
)

// EnrollmentService validates wizard steps and creates enrollments.
type EnrollmentService struct {
	repo          store.Repository
	notifications *NotificationService
	now           func() time.Time
	accountNumber func() (string, error)
}

func NewEnrollmentService(repo store.Repository, notifications *NotificationService) *EnrollmentService {
	return &EnrollmentService{
		repo:          repo,
		notifications: notifications,
		now:           time.Now,
		accountNumber: randomAccountNumber,
	}
}

func randomAccountNumber() (string, error) {
	var b strings.Builder
	for i := 0; i < accountNumberDigits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		// Account numbers never start with zero.
		if i == 0 && n.Int64() == 0 {
			n = big.NewInt(7)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// VerifyStep checks only the fields belonging to step.
func (s *EnrollmentService) VerifyStep(ctx context.Context, step int, data domain.EnrollmentApplication) (*domain.StepVerification, error) {
	var problems map[string]string
	var err error

	switch step {
	case domain.EnrollmentStepPersonal:
		problems = s.checkPersonal(data)
	case domain.EnrollmentStepContact:
		problems, err = s.checkContact(ctx, data)
	case domain.EnrollmentStepIdentity:
		problems = checkIdentity(data)
	case domain.EnrollmentStepAccount:
		problems = checkAccountChoice(data)
	case domain.EnrollmentStepReview:
		problems = checkReview(data)
	default:
		return nil, ErrUnknownEnrollmentStep
	}
	if err != nil {
		return nil, err
	}

	result := &domain.StepVerification{Step: step, Valid: len(problems) == 0}
	if !result.Valid {
		result.Errors = problems
	}
	return result, nil
}

func (s *EnrollmentService) checkPersonal(data domain.EnrollmentApplication) map[string]string {
	problems := map[string]string{}
	if strings.TrimSpace(data.FirstName) == "" {
		problems["first_name"] = "First name is required."
	}
	if strings.TrimSpace(data.LastName) == "" {
		problems["last_name"] = "Last name is required."
	}

	dob, err := time.Parse("2006-01-02", strings.TrimSpace(data.DateOfBirth))
	switch {
	case err != nil:
		problems["date_of_birth"] = "Date of birth must be in YYYY-MM-DD format."
	case !isAtLeast(dob, minimumEnrollmentAge, s.now()):
		problems["date_of_birth"] = "You must be at least 18 years old to open an account."
	}
	return problems
}

// isAtLeast reports whether someone born on dob has turned years by now.
func isAtLeast(dob time.Time, years int, now time.Time) bool {
	now = now.UTC()
	birthday := time.Date(dob.Year()+years, dob.Month(), dob.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !birthday.After(today)
}

func (s *EnrollmentService) checkContact(ctx context.Context, data domain.EnrollmentApplication) (map[string]string, error) {
	problems := map[string]string{}
	email, ok := normalizeEmail(data.Email)
	if !ok {
		problems["email"] = "A valid email address is required."
	} else {
		inUse, err := s.repo.EmailInUse(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if inUse {
			problems["email"] = "An account with this email already exists."
		}
	}
	if _, ok := normalizePhone(data.Phone); !ok {
		problems["phone"] = "Phone number must have 10 to 15 digits."
	}
	return problems, nil
}

// normalizePhone strips common punctuation and returns the digits.
func normalizePhone(raw string) (string, bool) {
	var digits strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '+' && i == 0, r == ' ', r == '-', r == '(', r == ')', r == '.':
		default:
			return "", false
		}
	}
	n := digits.Len()
	if n < 10 || n > 15 {
		return "", false
	}
	return digits.String(), true
}

func allDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func checkIdentity(data domain.EnrollmentApplication) map[string]string {
	problems := map[string]string{}
	if !allDigits(strings.TrimSpace(data.SSNLast4), 4) {
		problems["ssn_last4"] = "Enter the last 4 digits of your SSN."
	}
	if strings.TrimSpace(data.AddressLine1) == "" {
		problems["address_line1"] = "Street address is required."
	}
	if strings.TrimSpace(data.City) == "" {
		problems["city"] = "City is required."
	}
	state := strings.TrimSpace(data.State)
	if len(state) != 2 || !unicode.IsLetter(rune(state[0])) || !unicode.IsLetter(rune(state[1])) {
		problems["state"] = "State must be a 2-letter code."
	}
	if !allDigits(strings.TrimSpace(data.ZipCode), 5) {
		problems["zip_code"] = "ZIP code must be 5 digits."
	}
	return problems
}

func checkAccountChoice(data domain.EnrollmentApplication) map[string]string {
	problems := map[string]string{}
	product, ok := domain.FindAccountProduct(strings.TrimSpace(data.AccountType))
	if !ok {
		problems["account_type"] = "Choose a valid account type."
		return problems
	}
	if data.InitialDeposit.LessThan(product.MinDeposit) {
		problems["initial_deposit"] = fmt.Sprintf("%s requires a minimum opening deposit of $%s.", product.Name, product.MinDeposit.StringFixed(2))
	}
	return problems
}

func checkReview(data domain.EnrollmentApplication) map[string]string {
	if !data.TermsAccepted {
		return map[string]string{"terms_accepted": "You must accept the terms and conditions."}
	}
	return map[string]string{}
}

// Submit re-validates every step and creates the profile and a pending account.
func (s *EnrollmentService) Submit(ctx context.Context, userID uuid.UUID, data domain.EnrollmentApplication) (*domain.EnrollmentResult, error) {
	for step := 1; step <= domain.EnrollmentStepCount; step++ {
		result, err := s.VerifyStep(ctx, step, data)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, &EnrollmentValidationError{Step: step, Errors: result.Errors}
		}
	}

	product, _ := domain.FindAccountProduct(strings.TrimSpace(data.AccountType))
	email, _ := normalizeEmail(data.Email)
	phone, _ := normalizePhone(data.Phone)

	number, err := s.accountNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate account number: %w", err)
	}

	enrollment := domain.NewEnrollment{
		UserID: userID,
		Profile: domain.Profile{
			ID:               userID,
			FirstName:        strings.TrimSpace(data.FirstName),
			LastName:         strings.TrimSpace(data.LastName),
			Email:            email,
			Phone:            phone,
			DateOfBirth:      strings.TrimSpace(data.DateOfBirth),
			EnrollmentStatus: enrollmentSubmitted,
		},
		Account: domain.Account{
			ID:            uuid.New(),
			UserID:        userID,
			AccountNumber: number,
			AccountType:   product.Type,
			Status:        domain.AccountStatusPending,
			MinDeposit:    product.MinDeposit,
		},
	}

	if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
		if errors.Is(err, store.ErrProfileExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}
	log.Printf("level=info component=enrollment msg=\"enrollment submitted\" user_id=%s account_type=%s", userID, product.Type)

	s.notifications.Notify(ctx, userID, "enrollment_submitted", "Welcome to Oakline Bank",
		fmt.Sprintf("Your %s application was received. Deposit your opening $%s (at least $%s) to activate it.",
			product.Name, data.InitialDeposit.StringFixed(2), product.MinDeposit.StringFixed(2)))
	s.notifications.EmailAddress(ctx, email, "Welcome to Oakline Bank",
		fmt.Sprintf("Hello %s,\n\nThank you for opening a %s account. We are reviewing your application and will let you know when it is active.", enrollment.Profile.FirstName, product.Name))

	return &domain.EnrollmentResult{Profile: &enrollment.Profile, Account: &enrollment.Account}, nil
}
