package validation

import (
	"errors"
	"math"
	"strings"
)

// MaxIncentive caps a single charge at $10,000.
const MaxIncentive = 10000.0

func ValidateGoalTitle(title string) error {
	trimmed := strings.TrimSpace(title)

	if trimmed == "" {
		return errors.New("description is required")
	}

	if len(trimmed) > 200 {
		return errors.New("description is too long (max 200 characters)")
	}

	return nil
}

// ValidateIncentive checks an incentive given in whole currency units.
func ValidateIncentive(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return errors.New("incentive must be a number")
	}

	if amount < 0 {
		return errors.New("incentive cannot be negative")
	}

	if amount > MaxIncentive {
		return errors.New("incentive is too large (max 10000)")
	}

	return nil
}
