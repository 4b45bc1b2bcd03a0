package auth

import (
	"unicode"

	"github.com/financeassistant/backend/internal/apperr"
)

// ValidatePassword enforces the registration policy: 8–128 chars with at
// least one lower-case letter, one upper-case letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < 8 || len(password) > 128 {
		return apperr.New(apperr.ValidationFailed, "WEAK_PASSWORD",
			"Password must be 8-128 characters")
	}
	var hasLower, hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLower || !hasUpper || !hasDigit {
		return apperr.New(apperr.ValidationFailed, "WEAK_PASSWORD",
			"Password must contain at least one uppercase letter, one lowercase letter, and one number")
	}
	return nil
}
