package authsvc

import (
	"unicode"

	"github.com/laventecare/authcore/internal/apperr"
)

const minPasswordLength = 10

// ValidatePasswordStrength enforces the minimum bar: length plus at least
// three of the four character classes. It intentionally does not maintain a
// dictionary/breach-list check - that's left to an external pwned-passwords
// integration, out of scope here.
func ValidatePasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return apperr.Withf(apperr.KindValidationFailed, "password must be at least 10 characters", map[string]any{
			"field": "password",
		})
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	classes := 0
	for _, ok := range []bool{hasUpper, hasLower, hasDigit, hasSymbol} {
		if ok {
			classes++
		}
	}
	if classes < 3 {
		return apperr.Withf(apperr.KindValidationFailed, "password must contain at least 3 of: uppercase, lowercase, digit, symbol", map[string]any{
			"field": "password",
		})
	}
	return nil
}
