package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Exchange and routing keys for events published by the API.
const (
	BankingEventsExchange = "oakline.events"

	RoutingKeyLoanApproved = "loan.approved"
	RoutingKeyLoanRejected = "loan.rejected"
	RoutingKeyLoanClosed   = "loan.closed"
)

// LoanEvent is published whenever a loan changes status.
type LoanEvent struct {
	LoanID           uuid.UUID       `json:"loan_id"`
	UserID           uuid.UUID       `json:"user_id"`
	AccountID        uuid.UUID       `json:"account_id"`
	Status           LoanStatus      `json:"status"`
	Principal        decimal.Decimal `json:"principal"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	ActorID          *uuid.UUID      `json:"actor_id,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}
