package payment

import (
	"context"
	"errors"
)

var (
	ErrPaymentFailed   = errors.New("payment failed")
	ErrNoPaymentMethod = errors.New("planner has no payment method on file")
)

const IncentiveDescription = "Incentive/Motivational Payment"

type ChargeRequest struct {
	CustomerID  string
	Amount      int64 // minor units
	Currency    string
	Description string
	// IdempotencyKey makes a retried charge for the same check-in a no-op
	// at the provider.
	IdempotencyKey string
}

type ChargeResult struct {
	ID       string
	Amount   int64
	Currency string
}

// Charger debits a planner's stored payment method off-session.
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	// Name returns the provider name (e.g., "stripe", "log")
	Name() string
}

// CheckinIdempotencyKey ties a charge to a single check-in token.
func CheckinIdempotencyKey(goalID, token string) string {
	return "goal:" + goalID + ":checkin:" + token
}
