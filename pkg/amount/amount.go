// Package amount converts between user-facing decimal token quantities and the
// token's smallest-unit integers.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var (
	ErrEmptyAmount      = errors.New("amount is empty")
	ErrMalformedAmount  = errors.New("amount is not a decimal number")
	ErrExcessPrecision  = errors.New("amount has more fractional digits than the token supports")
	ErrNonPositive      = errors.New("amount must be greater than zero")
	ErrAmountOverflow   = errors.New("amount does not fit in uint256")
	ErrInvalidPrecision = errors.New("token precision must be at most 77 digits")
)

// MaxUint256 returns 2^256 - 1, the value used for unlimited allowances.
func MaxUint256() *big.Int {
	return new(uint256.Int).SetAllOne().ToBig()
}

// FitsUint256 reports whether v is a non-negative integer representable in 256 bits.
func FitsUint256(v *big.Int) bool {
	if v == nil || v.Sign() < 0 {
		return false
	}
	_, overflow := uint256.FromBig(v)
	return !overflow
}

// ParseUnits converts a decimal string such as "10.5" into its smallest-unit
// integer at the given precision. Excess fractional digits are rejected rather
// than truncated, and only strictly positive values are accepted.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	if decimals > 77 {
		return nil, ErrInvalidPrecision
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrEmptyAmount
	}
	if strings.HasPrefix(value, "-") {
		return nil, ErrNonPositive
	}
	value = strings.TrimPrefix(value, "+")

	whole, frac, hasDot := strings.Cut(value, ".")
	if hasDot && whole == "" && frac == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, value)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, value)
	}
	if hasDot && frac == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, value)
	}

	// trailing zeros never carry precision, so "1.500000000" is fine at 6 decimals
	frac = strings.TrimRight(frac, "0")
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: %q has %d fractional digits, max %d", ErrExcessPrecision, value, len(frac), decimals)
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return nil, ErrNonPositive
	}

	units, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, value)
	}
	if !FitsUint256(units) {
		return nil, ErrAmountOverflow
	}
	return units, nil
}

// FormatUnits renders a smallest-unit integer as a decimal string with
// trailing fractional zeros removed, the inverse of ParseUnits.
func FormatUnits(units *big.Int, decimals uint8) string {
	if units == nil {
		return "0"
	}
	negative := units.Sign() < 0
	digits := new(big.Int).Abs(units).String()

	if decimals > 0 {
		if len(digits) <= int(decimals) {
			digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
		}
		split := len(digits) - int(decimals)
		whole, frac := digits[:split], strings.TrimRight(digits[split:], "0")
		digits = whole
		if frac != "" {
			digits = whole + "." + frac
		}
	}

	if negative {
		return "-" + digits
	}
	return digits
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
