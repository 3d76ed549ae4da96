// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// NewMoney creates a Money value from a float.
// Prices arrive as float64 from the Product table; converting once here keeps
// arithmetic exact from that point on.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// LineTotal returns amount × unitPrice.
func LineTotal(amount int, unitPrice float64) Money {
	return NewMoney(unitPrice).Mul(decimal.NewFromInt(int64(amount)))
}
