package types

import "github.com/shopspring/decimal"

// Money is stored internally as integer cents and rendered to clients
// as an exact two-decimal string.
type Money struct {
	Cents    int    `json:"cents"`
	Display  string `json:"display"`
	Currency string `json:"currency"`
}

const defaultCurrency = "USD"

// NewMoney builds a Money value from integer cents.
func NewMoney(cents int) Money {
	return Money{
		Cents:    cents,
		Display:  FormatCents(cents),
		Currency: defaultCurrency,
	}
}

// FormatCents renders cents as a decimal string with exactly two places,
// e.g. 2500 -> "25.00".
func FormatCents(cents int) string {
	return decimal.NewFromInt(int64(cents)).Shift(-2).StringFixed(2)
}
