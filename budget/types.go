/*
Package budget provides the core per-diem accounting engine.

PURPOSE:
  This package contains the domain types and algorithms for pay-period
  budgeting: a pay period's income and fixed costs produce a daily
  discretionary allowance (the per diem), and a per-day ledger tracks
  consumption and carries leftover (or overspent) amounts forward.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency amount backed by decimal.Decimal (no float drift)
  - Category: A spending label flagged fixed-cost or discretionary
  - FixedAllocation: A per-category budget for predictable expenses
  - Transaction: A classified spending record, the engine's input contract
  - User/PayPeriod/Category/Transaction IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing user/period IDs
  3. Explicit Context: Operations take user/period IDs as arguments;
     nothing is held in process-wide state

SEE ALSO:
  - period.go: Pay period model and per-diem rate computation
  - ledger.go: Per-day tracking entries and their invariant
  - engine.go: The stateful accounting core
*/
package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount with 2-decimal display precision
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &ValidationError{Field: "amount", Reason: "not a decimal number"}
	}
	return Money{Value: d}, nil
}

// MustParseMoney is for values the store wrote itself; malformed input
// degrades to zero rather than panicking mid-scan.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func Zero() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money          { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money          { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Div(divisor int) Money      { return Money{Value: m.Value.Div(decimal.NewFromInt(int64(divisor)))} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg()} }
func (m Money) Round2() Money              { return Money{Value: m.Value.Round(2)} }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool         { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool   { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool      { return m.Value.LessThan(o.Value) }
func (m Money) String() string             { return m.Value.StringFixed(2) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type PayPeriodID string
type CategoryID string
type TransactionID string

// =============================================================================
// USER - Owner of pay periods and settings
// =============================================================================

type User struct {
	ID       UserID
	Email    string
	Name     string
	Currency string
}

// =============================================================================
// CATEGORY - Spending label, fixed-cost or discretionary
// =============================================================================

type Category struct {
	ID          CategoryID
	UserID      UserID
	Name        string
	IsFixedCost bool
	IsDefault   bool
}

// =============================================================================
// FIXED ALLOCATION - Per-category predictable-expense budget
// =============================================================================

// FixedAllocation tracks one category of predictable spending within a pay
// period. Spent only ever grows, and only via fixed-cost postings; it is
// never consulted for per-diem math.
type FixedAllocation struct {
	ID          string
	PayPeriodID PayPeriodID
	Category    string
	Allocated   Money
	Spent       Money
}

// =============================================================================
// TRANSACTION - Classified spending record (the engine's input contract)
// =============================================================================

type TransactionType string

const (
	TxIncome        TransactionType = "income"
	TxExpense       TransactionType = "expense"
	TxFixedCost     TransactionType = "fixed_cost"
	TxTransfer      TransactionType = "transfer"
)

type Transaction struct {
	ID          TransactionID
	UserID      UserID
	PayPeriodID PayPeriodID
	CategoryID  CategoryID
	Amount      Money // positive magnitude; direction implied by Type
	Description string
	Merchant    string
	Date        Date
	Type        TransactionType
	IsFixedCost bool
	Notes       string

	// CreatedAt orders the activity feed; Date is the accounting day.
	CreatedAt time.Time
}

// ClassifiedTransaction is what the conversational front end hands the
// engine after category resolution: an amount, a category label, and the
// fixed-cost/discretionary decision. Nothing else participates in
// per-diem accounting.
type ClassifiedTransaction struct {
	Amount      Money
	Category    string
	IsFixedCost bool
	Description string
	Merchant    string
	Date        Date
}

// CategoryTotal is a per-category aggregate for reporting.
type CategoryTotal struct {
	Name        string
	IsFixedCost bool
	Total       Money
	Count       int
}

// Setting is one per-user key-value preference. Settings never influence
// accounting math.
type Setting struct {
	UserID UserID
	Key    string
	Value  string
}
