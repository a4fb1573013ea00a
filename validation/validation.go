// Package validation holds the field checks that run before any request
// leaves the dashboard or the CLI.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

var (
	ErrAmountNotPositive    = errors.New("amount must be greater than zero")
	ErrAmountExceedsBalance = errors.New("amount cannot exceed remaining balance")
)

// FieldError reports every problem found with one input field.
type FieldError struct {
	Field    string
	Problems []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, strings.Join(e.Problems, "; "))
}

func invalid(field string, problems ...string) *FieldError {
	return &FieldError{Field: field, Problems: problems}
}

var (
	maxAmount      = decimal.RequireFromString("999999.99")
	minAmount      = decimal.RequireFromString("0.01")
	namePattern    = regexp.MustCompile(`^[a-zA-Z\s\-'.]+$`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
	weakPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`123456`),
		regexp.MustCompile(`(?i)password`),
		regexp.MustCompile(`(?i)qwerty`),
		regexp.MustCompile(`(?i)abc123`),
	}
	supportedCurrencies = map[string]bool{"USD": true, "CAD": true, "EUR": true, "GBP": true, "AUD": true, "JPY": true}
)

// Email checks the address shape and the 254 character limit.
func Email(email string) error {
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return invalid("email", "Please enter a valid email address")
	}
	return nil
}

// Password checks the length bounds accepted at login and registration.
func Password(password string) error {
	switch {
	case len(password) < 8:
		return invalid("password", "Password must be at least 8 characters long")
	case len(password) > 128:
		return invalid("password", "Password must be less than 128 characters")
	}
	return nil
}

// PasswordStrength returns every rule a new password breaks.
func PasswordStrength(password string) error {
	var problems []string
	if len(password) < 8 {
		problems = append(problems, "Password must be at least 8 characters long")
	}
	if len(password) > 128 {
		problems = append(problems, "Password must be less than 128 characters")
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if !lower {
		problems = append(problems, "Password must contain at least one lowercase letter")
	}
	if !digit {
		problems = append(problems, "Password must contain at least one number")
	}
	if !specialPattern.MatchString(password) {
		problems = append(problems, "Password must contain at least one special character")
	}
	if hasRepeatedRun(password, 4) || matchesAny(password, weakPatterns) {
		problems = append(problems, "Password contains weak patterns")
	}
	if len(problems) > 0 {
		return invalid("password", problems...)
	}
	return nil
}

// Name checks a first or last name.
func Name(field, name string) error {
	var problems []string
	if strings.TrimSpace(name) == "" {
		problems = append(problems, "Name is required")
	}
	if len(name) > 50 {
		problems = append(problems, "Name must be less than 50 characters")
	}
	if name != "" && !namePattern.MatchString(name) {
		problems = append(problems, "Name can only contain letters, spaces, hyphens, apostrophes, and periods")
	}
	if len(problems) > 0 {
		return invalid(field, problems...)
	}
	return nil
}

// Amount parses a user-entered money value and checks its bounds.
func Amount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalid("amount", "Amount must be a valid number")
	}
	var problems []string
	if amount.IsNegative() {
		problems = append(problems, "Amount cannot be negative")
	}
	if amount.GreaterThan(maxAmount) {
		problems = append(problems, "Amount cannot exceed $999,999.99")
	}
	if amount.LessThan(minAmount) {
		problems = append(problems, "Amount must be at least $0.01")
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		problems = append(problems, "Amount cannot have more than 2 decimal places")
	}
	if len(problems) > 0 {
		return decimal.Zero, invalid("amount", problems...)
	}
	return amount, nil
}

// PaymentAmount checks that amount can be charged against remaining.
func PaymentAmount(amount, remaining decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}
	if amount.GreaterThan(remaining) {
		return ErrAmountExceedsBalance
	}
	return nil
}

// Currency reports whether code is one of the supported ISO codes.
func Currency(code string) bool {
	return supportedCurrencies[strings.ToUpper(code)]
}

// CardNumber validates length and the Luhn checksum and returns the brand.
func CardNumber(number string) (string, error) {
	cleaned := strings.ReplaceAll(number, " ", "")
	if len(cleaned) < 13 || len(cleaned) > 19 || !allDigits(cleaned) {
		return "", invalid("card_number", "Card number must be 13 to 19 digits")
	}
	if err := validate.Var(cleaned, "luhn_checksum"); err != nil {
		return "", invalid("card_number", "Card number is invalid")
	}
	return CardBrand(cleaned), nil
}

// CardBrand guesses the network from the leading digits.
func CardBrand(number string) string {
	switch {
	case strings.HasPrefix(number, "4"):
		return "visa"
	case len(number) > 1 && number[0] == '5' && number[1] >= '1' && number[1] <= '5':
		return "mastercard"
	case strings.HasPrefix(number, "34"), strings.HasPrefix(number, "37"):
		return "amex"
	case strings.HasPrefix(number, "6"):
		return "discover"
	}
	return "unknown"
}

// CVV checks the security code length for the card brand.
func CVV(cvv, brand string) error {
	cleaned := strings.ReplaceAll(cvv, " ", "")
	want := 3
	if brand == "amex" {
		want = 4
	}
	if len(cleaned) != want || !allDigits(cleaned) {
		return invalid("cvc", fmt.Sprintf("Security code must be %d digits", want))
	}
	return nil
}

// Expiry rejects past dates and dates more than 20 years out.
func Expiry(month, year string, now time.Time) error {
	m, errM := strconv.Atoi(strings.TrimSpace(month))
	y, errY := strconv.Atoi(strings.TrimSpace(year))
	if errM != nil || errY != nil {
		return invalid("expiry", "Expiry date must be numeric")
	}
	if y < 100 {
		y += 2000
	}
	switch {
	case m < 1 || m > 12:
		return invalid("expiry", "Expiry month must be between 1 and 12")
	case y < now.Year(), y == now.Year() && m < int(now.Month()):
		return invalid("expiry", "Card has expired")
	case y > now.Year()+20:
		return invalid("expiry", "Expiry year is too far in the future")
	}
	return nil
}

// Sanitize trims input, strips markup and script handlers, and caps it at
// 1000 characters.
func Sanitize(input string) string {
	s := strings.TrimSpace(input)
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	s = scriptProto.ReplaceAllString(s, "")
	s = eventHandler.ReplaceAllString(s, "")
	return truncateRunes(s, maxInputRunes)
}

const maxInputRunes = 1000

// truncateRunes keeps the first n characters without splitting one.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

var (
	scriptProto  = regexp.MustCompile(`(?i)javascript:`)
	eventHandler = regexp.MustCompile(`(?i)on\w+=`)
)

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func hasRepeatedRun(s string, n int) bool {
	run := 1
	rs := []rune(s)
	for i := 1; i < len(rs); i++ {
		if rs[i] == rs[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
