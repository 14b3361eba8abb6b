package money

import (
	"errors"
	"strings"
)

type Currency string

const (
	USD Currency = "USD"
	INR Currency = "INR"
	EUR Currency = "EUR"
	GBP Currency = "GBP"

	DefaultCurrency = USD
)

var ErrInvalidCurrency = errors.New("invalid_currency")

// CurrencyInfo describes how a currency is displayed.
type CurrencyInfo struct {
	Code   Currency `json:"code" mapstructure:"code"`
	Symbol string   `json:"symbol" mapstructure:"symbol"`
	Label  string   `json:"label" mapstructure:"label"`
}

var catalog = []CurrencyInfo{
	{Code: USD, Symbol: "$", Label: "USD - Dollar"},
	{Code: INR, Symbol: "₹", Label: "INR - Rupee"},
	{Code: EUR, Symbol: "€", Label: "EUR - Euro"},
	{Code: GBP, Symbol: "£", Label: "GBP - Pound"},
}

// Currencies returns the built-in catalog in display order.
func Currencies() []CurrencyInfo {
	out := make([]CurrencyInfo, len(catalog))
	copy(out, catalog)
	return out
}

// ParseCurrency normalizes a currency code. Empty input yields the default.
func ParseCurrency(raw string) (Currency, error) {
	code := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	if code == "" {
		return DefaultCurrency, nil
	}
	if !code.Valid() {
		return "", ErrInvalidCurrency
	}
	return code, nil
}

func (c Currency) Valid() bool {
	for _, info := range catalog {
		if info.Code == c {
			return true
		}
	}
	return false
}

func (c Currency) Symbol() string {
	for _, info := range catalog {
		if info.Code == c {
			return info.Symbol
		}
	}
	return string(c)
}

// Format renders an amount with the given symbol, e.g. "$1,234.50".
func Format(a Amount, symbol string) string {
	sign := ""
	if a < 0 {
		sign = "-"
		a = -a
	}
	fixed := a.String()
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + symbol + groupThousands(whole) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
