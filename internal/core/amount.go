// Package core provides amount parsing and formatting utilities.
//
// Amounts are whole currency units (won); there is no minor unit.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

// CurrencySuffix is appended to every formatted amount.
const CurrencySuffix = "원"

// maxAmount keeps sums of a few thousand records far away from overflow.
const maxAmount = 1_000_000_000_000

// ParseAmount converts user input to a positive whole amount.
//
// Group separators (comma, dot, space, underscore) and a trailing currency
// suffix are ignored, so "45,000", "45.000" and "45000원" all parse to 45000.
// Returns ErrInvalidAmount for empty, signed, fractional-looking or zero input.
//
// Examples:
//
//	ParseAmount("12000")   -> 12000, nil
//	ParseAmount("12,000")  -> 12000, nil
//	ParseAmount("12000원") -> 12000, nil
//	ParseAmount("-5")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, CurrencySuffix)
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	digits := strings.Map(func(r rune) rune {
		switch r {
		case ',', '.', ' ', '_':
			return -1
		}
		return r
	}, s)
	if digits == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || v <= 0 || v > maxAmount {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// FormatNumber renders an amount with thousands separators, e.g. 45000 -> "45,000".
func FormatNumber(amount int64) string {
	return humanize.Comma(amount)
}

// FormatAmount renders an amount for display, e.g. 45000 -> "45,000원".
func FormatAmount(amount int64) string {
	return FormatNumber(amount) + CurrencySuffix
}
