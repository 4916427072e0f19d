package budget

// =============================================================================
// PAY PERIOD - One income cycle
// =============================================================================

// PayPeriod represents one income cycle: the date range between two
// paydays, the income received at its start, the fixed costs reserved out
// of it, and the per-diem rate computed from what is left.
//
// At most one PayPeriod per user is active at a time. Creating a new one
// deactivates all prior periods for that user (last writer wins).
type PayPeriod struct {
	ID                PayPeriodID
	UserID            UserID
	StartDate         Date
	EndDate           Date // payday; exclusive of the period itself
	Income            Money
	FixedCostTotal    Money
	DiscretionaryPool Money // Income - FixedCostTotal; may be negative
	PerDiemRate       Money // DiscretionaryPool / spendable days, fixed for the period's life
	DaysUntilPayday   int
	Active            bool
}

// SpendableDays returns the number of days the discretionary pool is
// spread over: the whole days from start to payday, floored at 1 so a
// same-week payday never divides by zero.
func SpendableDays(start, end Date) int {
	days := DaysBetween(start, end)
	if days < 1 {
		days = 1
	}
	return days
}

// NewPayPeriod computes the derived fields of a pay period. The per-diem
// rate is tied to the days remaining at period start and is never
// recomputed as days pass; only the ledger's rollover adapts daily
// capacity.
func NewPayPeriod(id PayPeriodID, userID UserID, start, end Date, income, fixedTotal Money) (PayPeriod, error) {
	if income.IsNegative() {
		return PayPeriod{}, &ValidationError{Field: "income", Reason: "must not be negative"}
	}
	if fixedTotal.IsNegative() {
		return PayPeriod{}, &ValidationError{Field: "fixed_cost_total", Reason: "must not be negative"}
	}
	if !end.After(start) {
		return PayPeriod{}, &ValidationError{Field: "end_date", Reason: "must be after start_date"}
	}

	days := SpendableDays(start, end)
	pool := income.Sub(fixedTotal)

	return PayPeriod{
		ID:                id,
		UserID:            userID,
		StartDate:         start,
		EndDate:           end,
		Income:            income,
		FixedCostTotal:    fixedTotal,
		DiscretionaryPool: pool,
		PerDiemRate:       pool.Div(days).Round2(),
		DaysUntilPayday:   days,
		Active:            true,
	}, nil
}

// FixedAllocationInput is one category budget supplied at period creation.
type FixedAllocationInput struct {
	Category  string
	Allocated Money
}
