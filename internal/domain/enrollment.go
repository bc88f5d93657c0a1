package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EnrollmentStepCount is the number of steps in the signup wizard.
const EnrollmentStepCount = 5

const (
	EnrollmentStepPersonal = 1
	EnrollmentStepContact  = 2
	EnrollmentStepIdentity = 3
	EnrollmentStepAccount  = 4
	EnrollmentStepReview   = 5
)

// AccountProduct is an account type customers can open at enrollment.
type AccountProduct struct {
	Type       string          `json:"account_type"`
	Name       string          `json:"name"`
	MinDeposit decimal.Decimal `json:"min_deposit"`
}

// AccountProducts lists the products offered during enrollment.
var AccountProducts = []AccountProduct{
	{Type: "checking", Name: "Everyday Checking", MinDeposit: decimal.NewFromInt(25)},
	{Type: "savings", Name: "High-Yield Savings", MinDeposit: decimal.NewFromInt(100)},
	{Type: "money_market", Name: "Money Market", MinDeposit: decimal.NewFromInt(2500)},
	{Type: "certificate", Name: "Certificate of Deposit", MinDeposit: decimal.NewFromInt(1000)},
}

// FindAccountProduct returns the product with the given type.
func FindAccountProduct(accountType string) (AccountProduct, bool) {
	for _, p := range AccountProducts {
		if p.Type == accountType {
			return p, true
		}
	}
	return AccountProduct{}, false
}

// EnrollmentApplication is the union of all wizard fields. Each step only
// validates its own subset.
type EnrollmentApplication struct {
	// step 1
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
	// step 2
	Email string `json:"email"`
	Phone string `json:"phone"`
	// step 3
	SSNLast4     string `json:"ssn_last4"`
	AddressLine1 string `json:"address_line1"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	// step 4
	AccountType    string          `json:"account_type"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
	// step 5
	TermsAccepted bool `json:"terms_accepted"`
}

// VerifyStepRequest is the body of POST /api/enrollment/verify-step.
type VerifyStepRequest struct {
	Step int                   `json:"step"`
	Data EnrollmentApplication `json:"data"`
}

// StepVerification reports field-level problems for a wizard step.
type StepVerification struct {
	Step   int               `json:"step"`
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// EnrollmentResult is returned after a successful submission.
type EnrollmentResult struct {
	Profile *Profile `json:"profile"`
	Account *Account `json:"account"`
}

// NewEnrollment carries the rows written at submission.
type NewEnrollment struct {
	Profile Profile
	Account Account
	UserID  uuid.UUID
}
