package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every stored amount carries.
const Scale int32 = 8

// IntegerDigits bounds the whole part so amounts fit NUMERIC(20,8).
const IntegerDigits = 12

var maxMagnitude = decimal.New(1, IntegerDigits)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrNotPositive     = errors.New("amount must be positive")
	ErrTooLarge        = errors.New("amount has too many integer digits")
)

// Parse reads a signed decimal string with at most Scale fractional digits.
func Parse(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !value.Equal(value.Truncate(Scale)) {
		return decimal.Zero, ErrTooManyDecimals
	}
	if !InRange(value) {
		return decimal.Zero, ErrTooLarge
	}
	return value.Truncate(Scale), nil
}

// InRange reports whether value needs at most IntegerDigits whole digits.
func InRange(value decimal.Decimal) bool {
	return value.Abs().LessThan(maxMagnitude)
}

// ParsePositive is Parse restricted to amounts greater than zero.
func ParsePositive(input string) (decimal.Decimal, error) {
	value, err := Parse(input)
	if err != nil {
		return decimal.Zero, err
	}
	if !value.IsPositive() {
		return decimal.Zero, ErrNotPositive
	}
	return value, nil
}

func Format(value decimal.Decimal) string {
	return value.StringFixed(Scale)
}
