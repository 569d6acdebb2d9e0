// Package money formats and totals transaction amounts in minor units, so
// previews and commit reports never print floating point artefacts.
package money

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	BRL = "BRL" // Brazilian Real
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
)

// Money is an amount in minor units tied to a currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from cents (minor units).
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// NewFromDecimal rounds a decimal amount to the currency's minor unit.
// Unknown currency codes fall back to two fraction digits.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	fraction := 2
	if c := money.GetCurrency(currencyCode); c != nil {
		fraction = c.Fraction
	}
	cents := amount.Mul(decimal.New(1, int32(fraction))).Round(0).IntPart()
	return New(cents, currencyCode)
}

// Signed returns the magnitude as Money, negated when it leaves the account.
func Signed(magnitude decimal.Decimal, outflow bool, currencyCode string) *Money {
	m := NewFromDecimal(magnitude.Abs(), currencyCode)
	if outflow {
		return m.Negate()
	}
	return m
}

// Amount returns the amount in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Negate returns the negated value.
func (m *Money) Negate() *Money {
	if m == nil || m.m == nil {
		return m
	}
	return &Money{m: m.m.Negative()}
}

// Add adds two values of the same currency.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	sum, err := m.m.Add(other.m)
	if err != nil {
		return nil, fmt.Errorf("add %s to %s: %w", other.Currency(), m.Currency(), err)
	}
	return &Money{m: sum}, nil
}

// Display formats the amount with the currency symbol (e.g. "$1,234.56").
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}

// ToDecimal converts back to a decimal in major units.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	return decimal.New(m.m.Amount(), -int32(m.m.Currency().Fraction))
}

// String returns the major-unit decimal representation with fixed fraction digits.
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}
