package money

import (
	"bytes"

	"github.com/shopspring/decimal"
)

// Number is a fixed-point decimal that encodes as an unquoted JSON number.
// Used for quantities and percentage rates.
type Number struct {
	decimal.Decimal
}

func MustNumber(raw string) Number {
	return Number{Decimal: decimal.RequireFromString(raw)}
}

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	return n.Decimal.UnmarshalJSON(data)
}
