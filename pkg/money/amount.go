package money

import (
	"bytes"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnits is the exponent shared by every supported currency.
const MinorUnits = 2

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrTooPrecise    = errors.New("amount_too_precise")
	ErrOutOfRange    = errors.New("amount_out_of_range")
)

// MaxMinor bounds every stored amount, in minor units, so sums of a few of
// them stay well inside int64.
const MaxMinor = 1_000_000_000_000_000

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(MaxMinor)
)

// Amount is a monetary value held in minor units (cents).
// It is encoded on the wire as a plain JSON number in major units.
type Amount int64

// FromDecimal converts a major-unit decimal into an Amount.
// Values carrying more than two fractional digits are rejected.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	minor := d.Mul(hundred)
	if !minor.IsInteger() {
		return 0, ErrTooPrecise
	}
	return fromMinor(minor)
}

// RoundDecimal converts a major-unit decimal into an Amount, rounding half
// away from zero to the nearest minor unit.
func RoundDecimal(d decimal.Decimal) (Amount, error) {
	return fromMinor(d.Mul(hundred).Round(0))
}

// Add sums amounts, failing once the result leaves the storable range.
func Add(amounts ...Amount) (Amount, error) {
	var sum int64
	for _, a := range amounts {
		if !a.InRange() {
			return 0, ErrOutOfRange
		}
		sum += int64(a)
		if sum > MaxMinor || sum < -MaxMinor {
			return 0, ErrOutOfRange
		}
	}
	return Amount(sum), nil
}

// InRange reports whether a fits the storable range.
func (a Amount) InRange() bool {
	return a <= MaxMinor && a >= -MaxMinor
}

// fromMinor checks the range before IntPart, which silently wraps.
func fromMinor(minor decimal.Decimal) (Amount, error) {
	if minor.Abs().GreaterThan(maxMinor) {
		return 0, ErrOutOfRange
	}
	return Amount(minor.IntPart()), nil
}

// Parse reads a major-unit amount such as "12.50".
func Parse(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return FromDecimal(d)
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -MinorUnits)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(MinorUnits)
}

func (a Amount) IsPositive() bool { return a > 0 }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	parsed, err := Parse(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
