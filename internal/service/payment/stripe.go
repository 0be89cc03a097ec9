package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/liableapp/liable/internal/logger"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/charge"
)

type StripeCharger struct {
	log *slog.Logger
}

func NewStripeCharger(secretKey string) *StripeCharger {
	// Set Stripe API key
	stripe.Key = secretKey

	return &StripeCharger{log: logger.For("stripe")}
}

func (s *StripeCharger) Name() string {
	return "stripe"
}

func (s *StripeCharger) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.CustomerID == "" {
		return nil, ErrNoPaymentMethod
	}

	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Customer:    stripe.String(req.CustomerID),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	ch, err := charge.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			s.log.Warn("stripe charge declined",
				"customer_id", req.CustomerID,
				"type", stripeErr.Type,
				"code", stripeErr.Code,
				"decline_code", stripeErr.DeclineCode,
			)
			return nil, fmt.Errorf("%w: %s", ErrPaymentFailed, stripeErr.Msg)
		}
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	if ch.Status == stripe.ChargeStatusFailed {
		return nil, fmt.Errorf("%w: charge %s %s", ErrPaymentFailed, ch.ID, ch.FailureMessage)
	}

	s.log.Info("stripe charge created", "charge_id", ch.ID, "customer_id", req.CustomerID, "amount", ch.Amount)
	return &ChargeResult{ID: ch.ID, Amount: ch.Amount, Currency: string(ch.Currency)}, nil
}
