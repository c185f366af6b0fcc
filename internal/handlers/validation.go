package handlers

import (
	"errors"
	"time"

	"wallet/internal/money"

	"github.com/shopspring/decimal"
)

var errInvalidAmount = errors.New("invalid amount")

// parseAmount accepts a positive decimal string with at most eight places.
func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := money.ParsePositive(raw)
	if err != nil {
		return decimal.Zero, errInvalidAmount
	}
	return amount, nil
}

// parseDelta accepts a signed, non-zero decimal string.
func parseDelta(raw string) (decimal.Decimal, error) {
	delta, err := money.Parse(raw)
	if err != nil || delta.IsZero() {
		return decimal.Zero, errInvalidAmount
	}
	return delta, nil
}

func parseOptionalTime(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, err
	}
	parsed = parsed.UTC()
	return &parsed, nil
}
