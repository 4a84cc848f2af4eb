package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// Amount is a token quantity in both decimal and base-unit form.
type Amount struct {
	Decimal   string `json:"decimal"`
	BaseUnits string `json:"base_units"`
	Decimals  int    `json:"decimals"`
}

// ParseAmount validates a decimal amount against a token's precision. Zero,
// negative and over-precise amounts are rejected; the smallest accepted value
// is exactly one base unit.
func ParseAmount(decimal string, decimals int) (Amount, error) {
	clean := strings.TrimSpace(decimal)
	if clean == "" {
		return Amount{}, clierr.New(clierr.CodeUsage, "amount is required")
	}
	if decimals < 0 {
		return Amount{}, clierr.New(clierr.CodeUsage, "decimals must be >= 0")
	}
	if strings.HasPrefix(clean, "-") {
		return Amount{}, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	clean = strings.TrimPrefix(clean, "+")
	if strings.HasPrefix(clean, ".") {
		clean = "0" + clean
	}
	if !decimalPattern.MatchString(clean) {
		return Amount{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("amount must be in decimal form like 1.23, got %q", decimal))
	}
	base, err := decimalToBaseUnits(clean, decimals)
	if err != nil {
		return Amount{}, err
	}
	if base == "0" {
		return Amount{}, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	return Amount{Decimal: normalizeDecimal(clean), BaseUnits: base, Decimals: decimals}, nil
}

// FormatBaseUnits converts a base-unit integer string into a decimal string.
func FormatBaseUnits(baseUnits string, decimals int) string {
	n, ok := new(big.Int).SetString(strings.TrimSpace(baseUnits), 10)
	if !ok {
		return "0"
	}
	s := n.String()
	if decimals <= 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// Rat returns the decimal amount as an exact rational.
func (a Amount) Rat() *big.Rat {
	r, ok := new(big.Rat).SetString(a.Decimal)
	if !ok {
		return new(big.Rat)
	}
	return r
}

func decimalToBaseUnits(decimal string, decimals int) (string, error) {
	intPart, fracPart, _ := strings.Cut(decimal, ".")
	fracPart = strings.TrimRight(fracPart, "0")
	if len(fracPart) > decimals {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("decimal precision exceeds token decimals (%d)", decimals))
	}
	combined := strings.TrimLeft(intPart+fracPart+strings.Repeat("0", decimals-len(fracPart)), "0")
	if combined == "" {
		return "0", nil
	}
	if _, ok := new(big.Int).SetString(combined, 10); !ok {
		return "", clierr.New(clierr.CodeUsage, "invalid decimal amount")
	}
	return combined, nil
}

func normalizeDecimal(v string) string {
	intPart, fracPart, hasFrac := strings.Cut(v, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	if !hasFrac {
		return intPart
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}
