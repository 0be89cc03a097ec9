package validation

import (
	"fmt"
	"strings"
)

// ValidateName checks a person's name; label names the field in the message.
func ValidateName(label, name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return fmt.Errorf("%s is required", label)
	}

	if len(trimmed) > 100 {
		return fmt.Errorf("%s is too long (max 100 characters)", label)
	}

	return nil
}
