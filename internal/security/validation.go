// Package security validates user input before it reaches the backend and
// masks credentials for display.
package security

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "ecos-terminal/internal/errors"
)

// Validation limits.
const (
	MaxSymbolLength   = 20
	MaxUsernameLength = 64
	MaxPasswordLength = 128
	MaxQueryLength    = 64
)

var (
	// Borsa Istanbul tickers with an optional exchange suffix, e.g. THYAO.IS.
	symbolPattern = regexp.MustCompile(`^[A-Z0-9&-]+(\.[A-Z]{1,4})?$`)

	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(union\s+select|drop\s+table|insert\s+into|delete\s+from)`),
		regexp.MustCompile(`(?i)(or\s+1\s*=\s*1|and\s+1\s*=\s*1)`),
		regexp.MustCompile("[;|$\x60<>]"),
	}
)

// InputValidator checks symbols, credentials and search text. In strict
// mode free text containing injection-like patterns is rejected.
type InputValidator struct {
	strictMode bool
}

// NewInputValidator creates a new input validator.
func NewInputValidator(strictMode bool) *InputValidator {
	return &InputValidator{strictMode: strictMode}
}

// ValidateSymbol validates a stock symbol as typed by the user.
func (v *InputValidator) ValidateSymbol(symbol string) error {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	if symbol == "" {
		return apperrors.NewValidationError("symbol", symbol, "symbol cannot be empty")
	}
	if len(symbol) > MaxSymbolLength {
		return apperrors.NewValidationError("symbol", symbol, "symbol too long (max 20 characters)")
	}
	if !symbolPattern.MatchString(symbol) {
		return apperrors.NewValidationError("symbol", symbol, "invalid symbol format")
	}
	return nil
}

// ValidateUsername validates an account name.
func (v *InputValidator) ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return apperrors.NewValidationError("username", username, "username cannot be empty")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return apperrors.NewValidationError("username", username, "username too long (max 64 characters)")
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return apperrors.NewValidationError("username", username, "username cannot contain spaces or control characters")
		}
	}
	if v.containsInjection(username) {
		return apperrors.NewValidationError("username", username, "invalid characters detected")
	}
	return nil
}

// ValidatePassword validates a password without echoing it in the error.
func (v *InputValidator) ValidatePassword(password string) error {
	if password == "" {
		return apperrors.NewValidationError("password", "", "password cannot be empty")
	}
	if len(password) > MaxPasswordLength {
		return apperrors.NewValidationError("password", MaskCredential(password), "password too long (max 128 bytes)")
	}
	return nil
}

// ValidateQuery validates suggestion search text.
func (v *InputValidator) ValidateQuery(query string, minLen int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(query))
	if n < minLen {
		return apperrors.NewValidationError("query", query, "query too short")
	}
	if n > MaxQueryLength {
		return apperrors.NewValidationError("query", query, "query too long (max 64 characters)")
	}
	if v.strictMode && v.containsInjection(query) {
		return apperrors.NewValidationError("query", SanitizeText(query), "potentially dangerous content detected")
	}
	return nil
}

func (v *InputValidator) containsInjection(input string) bool {
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// SanitizeText removes control characters.
func SanitizeText(text string) string {
	var result strings.Builder
	for _, r := range text {
		if !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// MaskCredential masks a credential value for display.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}
