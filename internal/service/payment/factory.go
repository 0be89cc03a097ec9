package payment

import (
	"fmt"
	"log/slog"

	"github.com/liableapp/liable/internal/config"
)

// NewCharger creates a charger based on configuration
func NewCharger(cfg *config.Config) (Charger, error) {
	provider := cfg.PaymentProvider

	slog.Info("initializing payment provider", "provider", provider)

	switch provider {
	case config.PaymentProviderStripe:
		if cfg.StripeSecretKey == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY is required when using Stripe provider")
		}
		return NewStripeCharger(cfg.StripeSecretKey), nil

	case config.PaymentProviderLog:
		return NewLogCharger(), nil

	default:
		return nil, fmt.Errorf("unknown payment provider: %s (supported: stripe, log)", provider)
	}
}
