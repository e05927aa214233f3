package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a human amount is not a positive finite number.
var ErrInvalidAmount = errors.New("invalid amount")

const (
	// maxUnitBits is the width of a uint256 swap amount.
	maxUnitBits = 256
	// maxUnitDigits is the decimal length of 2^256-1.
	maxUnitDigits = 78
)

// Amount is an integer token quantity in base units. It is encoded in JSON as a
// decimal string so clients never lose precision.
type Amount struct {
	*big.Int
}

// NewAmount wraps v. A nil v is treated as zero.
func NewAmount(v *big.Int) Amount {
	if v == nil {
		v = new(big.Int)
	}
	return Amount{Int: new(big.Int).Set(v)}
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Int == nil {
		return []byte(`"0"`), nil
	}
	return json.Marshal(a.Int.String())
}

// UnmarshalJSON accepts both quoted and bare integers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		a.Int = new(big.Int)
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("amount %q is not a base-10 integer", s)
	}
	a.Int = v
	return nil
}

// ParseUnits converts a human-readable amount into base units, truncating any
// precision beyond decimals.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("%w: %q must be greater than zero", ErrInvalidAmount, amount)
	}

	// Integer digits of the amount in base units, known before expanding it.
	digits := int64(d.NumDigits()) + int64(d.Exponent()) + int64(decimals)
	switch {
	case digits > maxUnitDigits:
		return nil, fmt.Errorf("%w: %q exceeds the uint256 range", ErrInvalidAmount, amount)
	case digits <= 0:
		return nil, fmt.Errorf("%w: %q is below the smallest unit", ErrInvalidAmount, amount)
	}

	units := d.Shift(int32(decimals)).Truncate(0).BigInt()
	if units.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q is below the smallest unit", ErrInvalidAmount, amount)
	}
	if units.BitLen() > maxUnitBits {
		return nil, fmt.Errorf("%w: %q exceeds the uint256 range", ErrInvalidAmount, amount)
	}
	return units, nil
}

// FormatUnits renders base units as a decimal string.
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}
