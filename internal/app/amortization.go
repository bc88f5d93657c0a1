package app

import (
	"math"

	"github.com/oakline/banking-service/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	maxInterestRate = decimal.NewFromInt(100)
	hundred         = decimal.NewFromInt(100)
	twelve          = decimal.NewFromInt(12)
)

const maxLoanTermMonths = 360

// MonthlyRate converts an annual percentage rate into a monthly fraction.
func MonthlyRate(annualPct decimal.Decimal) decimal.Decimal {
	return annualPct.Div(hundred).Div(twelve)
}

// monthlyPaymentExact is the unrounded level payment P*r(1+r)^n/((1+r)^n-1),
// or P/n when the rate is zero.
func monthlyPaymentExact(principal decimal.Decimal, annualPct decimal.Decimal, months int) float64 {
	p := principal.InexactFloat64()
	n := float64(months)
	r := MonthlyRate(annualPct).InexactFloat64()
	if r == 0 {
		return p / n
	}
	growth := math.Pow(1+r, n)
	return p * (r * growth) / (growth - 1)
}

// MonthlyPayment returns the level monthly payment rounded to cents.
func MonthlyPayment(principal decimal.Decimal, annualPct decimal.Decimal, months int) decimal.Decimal {
	if months <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(monthlyPaymentExact(principal, annualPct, months)).Round(2)
}

// TotalDue is the amount a borrower repays over the life of the loan. With a
// zero rate it is exactly the principal.
func TotalDue(principal decimal.Decimal, annualPct decimal.Decimal, months int) decimal.Decimal {
	if months <= 0 {
		return principal
	}
	if MonthlyRate(annualPct).IsZero() {
		return principal
	}
	total := monthlyPaymentExact(principal, annualPct, months) * float64(months)
	return decimal.NewFromFloat(total).Round(2)
}

// Schedule splits each monthly payment into interest and principal. The last
// row absorbs rounding so the payments sum to TotalDue and the closing
// balance is zero.
func Schedule(principal decimal.Decimal, annualPct decimal.Decimal, months int) []domain.AmortizationRow {
	if months <= 0 {
		return nil
	}
	rate := MonthlyRate(annualPct)
	payment := MonthlyPayment(principal, annualPct, months)
	total := TotalDue(principal, annualPct, months)
	balance := principal
	paid := decimal.Zero
	rows := make([]domain.AmortizationRow, 0, months)

	for month := 1; month <= months; month++ {
		interest := balance.Mul(rate).Round(2)
		principalPart := payment.Sub(interest)
		rowPayment := payment
		last := month == months || !principalPart.LessThan(balance)
		if last {
			principalPart = balance
			rowPayment = total.Sub(paid)
			interest = rowPayment.Sub(principalPart)
		}
		balance = balance.Sub(principalPart)
		paid = paid.Add(rowPayment)
		rows = append(rows, domain.AmortizationRow{
			Month:     month,
			Payment:   rowPayment,
			Principal: principalPart,
			Interest:  interest,
			Balance:   balance,
		})
		if last {
			break
		}
	}
	return rows
}

// validateLoanTerms checks the principal, rate and term of an application or quote.
func validateLoanTerms(principal decimal.Decimal, annualPct decimal.Decimal, months int) error {
	if !principal.IsPositive() {
		return &ValidationError{Field: "principal", Message: "Principal must be greater than zero."}
	}
	if !principal.Equal(principal.Round(2)) {
		return &ValidationError{Field: "principal", Message: "Principal cannot have fractional cents."}
	}
	if annualPct.IsNegative() || annualPct.GreaterThan(maxInterestRate) {
		return &ValidationError{Field: "interest_rate", Message: "Interest rate must be between 0 and 100."}
	}
	if months < 1 || months > maxLoanTermMonths {
		return &ValidationError{Field: "term_months", Message: "Term must be between 1 and 360 months."}
	}
	return nil
}

// Quote prices a loan for the public calculator.
func Quote(principal decimal.Decimal, annualPct decimal.Decimal, months int, withSchedule bool) (*domain.LoanQuote, error) {
	if err := validateLoanTerms(principal, annualPct, months); err != nil {
		return nil, err
	}
	total := TotalDue(principal, annualPct, months)
	quote := &domain.LoanQuote{
		Principal:      principal,
		InterestRate:   annualPct,
		TermMonths:     months,
		MonthlyPayment: MonthlyPayment(principal, annualPct, months),
		TotalDue:       total,
		TotalInterest:  total.Sub(principal),
	}
	if withSchedule {
		quote.Schedule = Schedule(principal, annualPct, months)
	}
	return quote, nil
}
