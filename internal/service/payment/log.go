package payment

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/liableapp/liable/internal/logger"
)

// LogCharger records charges in the log and always succeeds. Used in
// development so check-ins can be exercised without a Stripe account.
type LogCharger struct {
	log *slog.Logger
}

func NewLogCharger() *LogCharger {
	return &LogCharger{log: logger.For("payment")}
}

func (l *LogCharger) Name() string {
	return "log"
}

func (l *LogCharger) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.CustomerID == "" {
		return nil, ErrNoPaymentMethod
	}

	id := "ch_dev_" + uuid.NewString()
	l.log.Info("charge recorded (dev mode)",
		"charge_id", id,
		"customer_id", req.CustomerID,
		"amount", req.Amount,
		"currency", req.Currency,
		"idempotency_key", req.IdempotencyKey,
	)

	return &ChargeResult{ID: id, Amount: req.Amount, Currency: req.Currency}, nil
}
