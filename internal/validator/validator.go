package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidCurrency  = errors.New("currency must be a three-letter ISO code")
	ErrInvalidReason    = errors.New("reason is required and must be at most 500 characters")
	ErrInvalidReference = errors.New("reference id must be at most 100 characters")
)

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return ErrInvalidCurrency
	}
	return nil
}

func ValidateReason(reason string) error {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > 500 {
		return ErrInvalidReason
	}
	return nil
}

func ValidateReference(reference *string) error {
	if reference == nil {
		return nil
	}
	if *reference == "" || len(*reference) > 100 {
		return ErrInvalidReference
	}
	return nil
}
