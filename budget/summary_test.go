package budget_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsend/budget-engine/budget"
)

func TestSummary_UnknownPeriod(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	reporter := budget.NewReporter(engine.Store)

	_, err := reporter.Summary(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, budget.IsNotFound(err))
}

func TestSummary_AggregatesPeriod(t *testing.T) {
	// GIVEN: Two days of mixed fixed and discretionary spending
	// WHEN: Building the period summary
	// THEN: Totals, breakdowns and tallies line up with the postings

	engine, user, today := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	reporter := budget.NewReporter(engine.Store)
	reporter.Now = engine.Now

	post := func(amount, category string, fixed bool) {
		_, err := engine.HandleClassifiedTransaction(ctx, user.ID, period.ID, budget.ClassifiedTransaction{
			Amount:      m(amount),
			Category:    category,
			IsFixedCost: fixed,
		})
		require.NoError(t, err)
	}

	// March 1: under per-diem (30 of 40)
	post("30", "Groceries", false)
	post("450", "Rent", true)

	// March 2: over per-diem (60 spent, 40+10 available)
	*today = d("2025-03-02")
	post("60", "Dining", false)

	s, err := reporter.Summary(ctx, period.ID)
	require.NoError(t, err)

	assert.True(t, s.Income.Equal(m("1000")))
	assert.True(t, s.FixedAllocated.Equal(m("600")))
	assert.True(t, s.FixedSpent.Equal(m("450")))
	assert.True(t, s.DiscretionarySpent.Equal(m("90")))
	assert.True(t, s.PerDiemRate.Equal(m("40")))

	// March 2: 40 + 10 rollover - 60 = -10
	assert.True(t, s.RemainingToday.Equal(m("-10")), "got %s", s.RemainingToday)

	assert.Equal(t, 1, s.Days.Under)
	assert.Equal(t, 1, s.Days.Over)
	assert.Equal(t, 0, s.Days.OnTarget)

	require.Len(t, s.Allocations, 2)
	require.Len(t, s.FixedBreakdown, 1)
	assert.Equal(t, "Rent", s.FixedBreakdown[0].Name)
	require.Len(t, s.DiscretionaryBreakdown, 2)

	// Reconciliation: the ledger's view and the transaction log agree.
	txTotal, err := engine.Store.DiscretionaryTotal(ctx, period.ID)
	require.NoError(t, err)
	assert.True(t, s.DiscretionarySpent.Equal(txTotal))
}

func TestSummary_FreshPeriodDefaultsRemainingToRate(t *testing.T) {
	// GIVEN: A period whose today entry exists but is untouched
	// WHEN: Summarizing
	// THEN: RemainingToday equals the per-diem rate

	engine, user, _ := newTestEngine(t)
	period := tenDayPeriod(t, engine, user.ID)

	reporter := budget.NewReporter(engine.Store)
	reporter.Now = engine.Now

	s, err := reporter.Summary(context.Background(), period.ID)
	require.NoError(t, err)
	assert.True(t, s.RemainingToday.Equal(m("40")))
	assert.True(t, s.DiscretionarySpent.IsZero())
}

func TestSummary_RejectsCorruptedLedger(t *testing.T) {
	// GIVEN: A ledger row whose stored arithmetic no longer holds
	// WHEN: Building the period summary
	// THEN: The report refuses rather than aggregating bad numbers

	engine, user, _ := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	broken := budget.LedgerEntry{
		ID:          "corrupt",
		PayPeriodID: period.ID,
		Date:        d("2025-03-01"),
		PerDiem:     m("40"),
		Rollover:    m("0"),
		SpentToday:  m("5"),
		Remaining:   m("40"), // should be 35
	}
	require.NoError(t, engine.Store.UpsertEntry(ctx, broken))

	reporter := budget.NewReporter(engine.Store)
	reporter.Now = engine.Now
	_, err := reporter.Summary(ctx, period.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, budget.ErrStorage))
}
