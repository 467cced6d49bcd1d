package domain

import (
	"fmt"

	dErrors "refward/pkg/domain-errors"
)

// DefaultCurrency is used when a conversion carries no explicit currency.
const DefaultCurrency = "USD"

// Money is an amount in minor units (cents) of a single currency. Integer
// arithmetic keeps commission math deterministic: the same inputs always
// produce the same payout, which audit replay depends on.
type Money struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

// NewMoney builds a Money value, defaulting the currency when empty.
func NewMoney(currency string, amount int64) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Currency: currency, Amount: amount}
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }

// String renders the amount in major units for logs and messages.
func (m Money) String() string {
	return fmt.Sprintf("%s %d.%02d", m.Currency, m.Amount/100, abs64(m.Amount%100))
}

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, dErrors.Newf(dErrors.CodeInvalidInput,
			"currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Currency: m.Currency, Amount: m.Amount + other.Amount}, nil
}

// Percent returns the given basis-points share of the amount, floored.
// 10% is 1000 basis points; flooring means sub-cent remainders are never
// paid out.
func (m Money) Percent(basisPoints int64) Money {
	return Money{Currency: m.Currency, Amount: m.Amount * basisPoints / 10000}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
