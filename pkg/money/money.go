// Package money provides a fixed-precision monetary amount for notice
// composition and payment values.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value with two decimal places.
type Amount struct {
	value decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{value: decimal.Zero}

// New creates an Amount from a decimal string such as "80.00".
func New(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount: %w", err)
	}
	return Amount{value: d}, nil
}

// MustNew is New for test fixtures and constants; it panics on bad input.
func MustNew(s string) Amount {
	a, err := New(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal wraps an existing decimal value.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{value: d}
}

// Add returns a + other.
func (a Amount) Add(other Amount) Amount {
	return Amount{value: a.value.Add(other.value)}
}

// Sub returns a - other.
func (a Amount) Sub(other Amount) Amount {
	return Amount{value: a.value.Sub(other.value)}
}

// Cmp compares two amounts: -1 if a < other, 0 if equal, 1 if a > other.
func (a Amount) Cmp(other Amount) int {
	return a.value.Cmp(other.value)
}

// Equal reports whether the amounts are numerically equal.
func (a Amount) Equal(other Amount) bool {
	return a.value.Equal(other.value)
}

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool {
	return a.value.IsNegative()
}

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// String renders the amount with two decimal places.
func (a Amount) String() string {
	return a.value.StringFixed(2)
}

// Decimal exposes the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.value
}

// Value implements driver.Valuer so Amount can be written as a numeric column.
func (a Amount) Value() (driver.Value, error) {
	return a.value.Value()
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	a.value = d
	return nil
}

// MarshalJSON renders the amount as a JSON string with two decimal places.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	a.value = d
	return nil
}
