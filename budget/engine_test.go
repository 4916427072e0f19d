package budget_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsend/budget-engine/budget"
	"github.com/spendsend/budget-engine/budget/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func m(s string) budget.Money {
	return budget.MustParseMoney(s)
}

func d(s string) budget.Date {
	date, err := budget.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return date
}

// newTestEngine returns an engine pinned to a controllable "today" plus
// a bootstrapped user.
func newTestEngine(t *testing.T) (*budget.Engine, *budget.User, *budget.Date) {
	t.Helper()

	engine := budget.NewEngine(store.NewMemory())

	today := d("2025-03-01")
	engine.Now = func() budget.Date { return today }

	var seq atomic.Int64
	engine.NewID = func() string {
		return fmt.Sprintf("id-%03d", seq.Add(1))
	}
	engine.Ledger = budget.NewLedger(engine.Store, engine.NewID)
	engine.Classifier = budget.NewClassifier(engine.Store, engine.NewID)

	user, err := engine.BootstrapUser(context.Background(), "tester", "")
	require.NoError(t, err)
	return engine, user, &today
}

// tenDayPeriod opens the canonical cycle: 1000 income, 600 fixed costs,
// 10 days from March 1 to March 11.
func tenDayPeriod(t *testing.T, engine *budget.Engine, userID budget.UserID) *budget.PayPeriod {
	t.Helper()
	period, err := engine.CreatePayPeriod(context.Background(), budget.CreatePayPeriodInput{
		UserID:    userID,
		StartDate: d("2025-03-01"),
		EndDate:   d("2025-03-11"),
		Income:    m("1000"),
		Allocations: []budget.FixedAllocationInput{
			{Category: "Rent", Allocated: m("450")},
			{Category: "Utilities", Allocated: m("150")},
		},
	})
	require.NoError(t, err)
	return period
}

// =============================================================================
// PAY PERIOD CREATION
// =============================================================================

func TestCreatePayPeriod_DerivesPerDiemRate(t *testing.T) {
	// GIVEN: 1000 income, 600 fixed costs, 10 spendable days
	// WHEN: Creating the pay period
	// THEN: Pool is 400 and the per-diem rate is 40.00

	engine, user, _ := newTestEngine(t)
	period := tenDayPeriod(t, engine, user.ID)

	assert.True(t, period.DiscretionaryPool.Equal(m("400")),
		"pool should be income minus fixed costs, got %s", period.DiscretionaryPool)
	assert.True(t, period.PerDiemRate.Equal(m("40")),
		"per-diem should be pool/days, got %s", period.PerDiemRate)
	assert.Equal(t, 10, period.DaysUntilPayday)
	assert.True(t, period.Active)
}

func TestCreatePayPeriod_DeactivatesPriorPeriod(t *testing.T) {
	// GIVEN: An existing active period
	// WHEN: Creating a second period
	// THEN: Only the new one remains active

	engine, user, _ := newTestEngine(t)
	ctx := context.Background()

	first := tenDayPeriod(t, engine, user.ID)
	second, err := engine.CreatePayPeriod(ctx, budget.CreatePayPeriodInput{
		UserID:    user.ID,
		StartDate: d("2025-03-11"),
		EndDate:   d("2025-03-25"),
		Income:    m("1000"),
	})
	require.NoError(t, err)

	active, err := engine.ActivePayPeriod(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	old, err := engine.Store.PayPeriod(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.Active, "prior period should be deactivated")
}

func TestCreatePayPeriod_SeedsTodaysEntry(t *testing.T) {
	// GIVEN: A fresh pay period
	// WHEN: Reading today's ledger entry
	// THEN: It exists with the full rate remaining and zero rollover

	engine, user, _ := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	entry, err := engine.Store.Entry(ctx, period.ID, d("2025-03-01"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.PerDiem.Equal(m("40")))
	assert.True(t, entry.Remaining.Equal(m("40")))
	assert.True(t, entry.SpentToday.IsZero())
	assert.True(t, entry.Rollover.IsZero())
}

func TestCreatePayPeriod_RejectsInvalidInput(t *testing.T) {
	engine, user, _ := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input budget.CreatePayPeriodInput
	}{
		{"negative income", budget.CreatePayPeriodInput{
			UserID: user.ID, StartDate: d("2025-03-01"), EndDate: d("2025-03-11"),
			Income: m("-100"),
		}},
		{"end before start", budget.CreatePayPeriodInput{
			UserID: user.ID, StartDate: d("2025-03-11"), EndDate: d("2025-03-01"),
			Income: m("1000"),
		}},
		{"negative fixed cost total", budget.CreatePayPeriodInput{
			UserID: user.ID, StartDate: d("2025-03-01"), EndDate: d("2025-03-11"),
			Income: m("1000"), FixedCostTotal: m("-1"),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.CreatePayPeriod(ctx, tc.input)
			assert.Error(t, err)
			assert.True(t, budget.IsClientError(err), "should be a validation error: %v", err)
		})
	}
}

// =============================================================================
// LAZY DAY ROLLOVER
// =============================================================================

func TestEnsureTodayEntry_Idempotent(t *testing.T) {
	// GIVEN: Today's entry already exists with spending on it
	// WHEN: EnsureTodayEntry runs again
	// THEN: The entry is returned unchanged

	engine, user, _ := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	require.NoError(t, engine.PostDiscretionarySpend(ctx, period.ID, m("15")))

	first, err := engine.EnsureTodayEntry(ctx, period.ID, period.PerDiemRate)
	require.NoError(t, err)
	second, err := engine.EnsureTodayEntry(ctx, period.ID, period.PerDiemRate)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.SpentToday.Equal(m("15")))
	assert.True(t, second.Remaining.Equal(m("25")))
}

func TestEnsureTodayEntry_ConcurrentWithSpending(t *testing.T) {
	// GIVEN: Spends and ensure calls racing on the same day
	// WHEN: They interleave freely
	// THEN: No spend is lost to a stale create-from-scratch write

	engine, user, _ := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, engine.PostDiscretionarySpend(ctx, period.ID, m("1")))
		}()
		go func() {
			defer wg.Done()
			_, err := engine.EnsureTodayEntry(ctx, period.ID, period.PerDiemRate)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entry, err := engine.Store.Entry(ctx, period.ID, engine.Now())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.SpentToday.Equal(m("20")), "got %s", entry.SpentToday)
	assert.True(t, entry.Remaining.Equal(m("20")), "got %s", entry.Remaining)
}

func TestEnsureTodayEntry_PositiveRollover(t *testing.T) {
	// GIVEN: Yesterday ended with 25 of 40 remaining
	// WHEN: The day turns over
	// THEN: Today starts at 40 + 25 = 65

	engine, user, today := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	require.NoError(t, engine.PostDiscretionarySpend(ctx, period.ID, m("15")))

	*today = d("2025-03-02")
	entry, err := engine.EnsureTodayEntry(ctx, period.ID, period.PerDiemRate)
	require.NoError(t, err)

	assert.True(t, entry.Rollover.Equal(m("25")), "rollover should carry yesterday's remaining, got %s", entry.Rollover)
	assert.True(t, entry.Remaining.Equal(m("65")))
	assert.True(t, entry.SpentToday.IsZero())
}

func TestEnsureTodayEntry_NegativeRolloverPreservesSign(t *testing.T) {
	// GIVEN: Yesterday overspent by 5 (spent 45 of 40)
	// WHEN: The day turns over
	// THEN: Today starts at 40 - 5 = 35, not clamped to 40

	engine, user, today := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	require.NoError(t, engine.PostDiscretionarySpend(ctx, period.ID, m("45")))

	*today = d("2025-03-02")
	entry, err := engine.EnsureTodayEntry(ctx, period.ID, period.PerDiemRate)
	require.NoError(t, err)

	assert.True(t, entry.Rollover.Equal(m("-5")), "debt must roll forward, got %s", entry.Rollover)
	assert.True(t, entry.Remaining.Equal(m("35")))
}

func TestEnsureTodayEntry_SkippedDaysUseMostRecentEntry(t *testing.T) {
	// GIVEN: The user last interacted on March 1 (20 remaining) and was
	// absent March 2-3
	// WHEN: They return on March 4
	// THEN: Rollover comes from March 1's entry, not a compounding chain

	engine, user, today := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	require.NoError(t, engine.PostDiscretionarySpend(ctx, period.ID, m("20")))

	*today = d("2025-03-04")
	entry, err := engine.EnsureTodayEntry(ctx, period.ID, period.PerDiemRate)
	require.NoError(t, err)

	assert.True(t, entry.Rollover.Equal(m("20")))
	assert.True(t, entry.Remaining.Equal(m("60")))

	entries, err := engine.Store.Entries(ctx, period.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "skipped days should not be backfilled")
}

// =============================================================================
// POSTING
// =============================================================================

func TestPostDiscretionarySpend_MaintainsLedgerInvariant(t *testing.T) {
	// GIVEN: A sequence of spends across two days
	// WHEN: Reading back every ledger entry
	// THEN: remaining == perDiem + rollover - spentToday on each

	engine, user, today := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	require.NoError(t, engine.PostDiscretionarySpend(ctx, period.ID, m("12.50")))
	require.NoError(t, engine.PostDiscretionarySpend(ctx, period.ID, m("7.25")))

	*today = d("2025-03-02")
	require.NoError(t, engine.PostDiscretionarySpend(ctx, period.ID, m("41.00")))

	entries, err := engine.Store.Entries(ctx, period.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, e := range entries {
		want := e.PerDiem.Add(e.Rollover).Sub(e.SpentToday)
		assert.True(t, e.Remaining.Equal(want),
			"%s: remaining %s != perDiem %s + rollover %s - spent %s",
			e.Date, e.Remaining, e.PerDiem, e.Rollover, e.SpentToday)
	}
}

func TestPostDiscretionarySpend_RejectsNonPositiveAmounts(t *testing.T) {
	engine, user, _ := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	for _, amount := range []string{"0", "-10"} {
		err := engine.PostDiscretionarySpend(ctx, period.ID, m(amount))
		assert.Error(t, err, "amount %s should be rejected", amount)
		assert.True(t, budget.IsClientError(err))
	}
}

func TestPostFixedCostSpend_TracksEnvelopeNotLedger(t *testing.T) {
	// GIVEN: A period with a Rent envelope
	// WHEN: Posting a fixed-cost spend
	// THEN: The envelope's spent rises and today's per-diem is untouched

	engine, user, _ := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	require.NoError(t, engine.PostFixedCostSpend(ctx, period.ID, "Rent", m("450")))

	allocs, err := engine.Store.Allocations(ctx, period.ID)
	require.NoError(t, err)
	var rent *budget.FixedAllocation
	for i := range allocs {
		if allocs[i].Category == "Rent" {
			rent = &allocs[i]
		}
	}
	require.NotNil(t, rent)
	assert.True(t, rent.Spent.Equal(m("450")))

	entry, err := engine.Store.Entry(ctx, period.ID, d("2025-03-01"))
	require.NoError(t, err)
	assert.True(t, entry.SpentToday.IsZero(), "fixed costs must not hit the per-diem ledger")
	assert.True(t, entry.Remaining.Equal(m("40")))
}

func TestPostFixedCostSpend_UnknownCategory(t *testing.T) {
	// GIVEN: No "Gym" envelope exists
	// WHEN: Posting a fixed-cost spend against it
	// THEN: The error names the category and reads as a client error

	engine, user, _ := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	err := engine.PostFixedCostSpend(ctx, period.ID, "Gym", m("30"))
	require.Error(t, err)

	var catErr *budget.CategoryNotFoundError
	assert.ErrorAs(t, err, &catErr)
	assert.Equal(t, "Gym", catErr.Category)
	assert.True(t, budget.IsClientError(err))
}

// =============================================================================
// CLASSIFIED TRANSACTION ROUTING
// =============================================================================

func TestHandleClassifiedTransaction_DiscretionaryRoute(t *testing.T) {
	// GIVEN: A classified discretionary transaction
	// WHEN: Handling it
	// THEN: A transaction is recorded and today's ledger reflects the spend

	engine, user, _ := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	tx, err := engine.HandleClassifiedTransaction(ctx, user.ID, period.ID, budget.ClassifiedTransaction{
		Amount:   m("18.40"),
		Category: "Dining",
		Merchant: "Cafe Luna",
	})
	require.NoError(t, err)
	assert.Equal(t, budget.TxExpense, tx.Type)
	assert.False(t, tx.IsFixedCost)
	assert.False(t, tx.CreatedAt.IsZero(), "activity feed ordering needs a creation time")

	entry, err := engine.Store.Entry(ctx, period.ID, d("2025-03-01"))
	require.NoError(t, err)
	assert.True(t, entry.SpentToday.Equal(m("18.40")))
	assert.True(t, entry.Remaining.Equal(m("21.60")))
}

func TestHandleClassifiedTransaction_FixedRoute(t *testing.T) {
	engine, user, _ := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	tx, err := engine.HandleClassifiedTransaction(ctx, user.ID, period.ID, budget.ClassifiedTransaction{
		Amount:      m("150"),
		Category:    "Utilities",
		IsFixedCost: true,
	})
	require.NoError(t, err)
	assert.Equal(t, budget.TxFixedCost, tx.Type)
	assert.True(t, tx.IsFixedCost)

	entry, err := engine.Store.Entry(ctx, period.ID, d("2025-03-01"))
	require.NoError(t, err)
	assert.True(t, entry.SpentToday.IsZero())
}

func TestHandleClassifiedTransaction_CreatesUnknownCategoryAsDiscretionary(t *testing.T) {
	// GIVEN: "Hobbies" is not in the user's vocabulary
	// WHEN: A discretionary transaction arrives with that label
	// THEN: The category is created (discretionary) and reused case-insensitively

	engine, user, _ := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	first, err := engine.HandleClassifiedTransaction(ctx, user.ID, period.ID, budget.ClassifiedTransaction{
		Amount:   m("10"),
		Category: "Hobbies",
	})
	require.NoError(t, err)

	second, err := engine.HandleClassifiedTransaction(ctx, user.ID, period.ID, budget.ClassifiedTransaction{
		Amount:   m("5"),
		Category: "HOBBIES",
	})
	require.NoError(t, err)
	assert.Equal(t, first.CategoryID, second.CategoryID)

	cat, err := engine.Store.CategoryByName(ctx, user.ID, "hobbies")
	require.NoError(t, err)
	require.NotNil(t, cat)
	assert.False(t, cat.IsFixedCost, "unknown categories default to discretionary")
}

func TestHandleClassifiedTransaction_UnknownFixedCategoryRollsBack(t *testing.T) {
	// GIVEN: A fixed-cost transaction against a category with no envelope
	// WHEN: Handling fails
	// THEN: No transaction row exists either (reconciliation holds)

	engine, user, _ := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	_, err := engine.HandleClassifiedTransaction(ctx, user.ID, period.ID, budget.ClassifiedTransaction{
		Amount:      m("99"),
		Category:    "Gym",
		IsFixedCost: true,
	})
	require.Error(t, err)

	txs, err := engine.Store.TransactionsByPeriod(ctx, period.ID)
	require.NoError(t, err)
	assert.Empty(t, txs, "failed posting must not leave a transaction behind")
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestReconciliation_LedgerMatchesTransactions(t *testing.T) {
	// GIVEN: A mix of discretionary and fixed postings over two days
	// WHEN: Summing ledger spentToday and discretionary transactions
	// THEN: The two totals are identical

	engine, user, today := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	post := func(amount, category string, fixed bool) {
		_, err := engine.HandleClassifiedTransaction(ctx, user.ID, period.ID, budget.ClassifiedTransaction{
			Amount:      m(amount),
			Category:    category,
			IsFixedCost: fixed,
		})
		require.NoError(t, err)
	}

	post("12.30", "Groceries", false)
	post("450", "Rent", true)
	post("8.15", "Dining", false)

	*today = d("2025-03-02")
	post("22.55", "Transport", false)

	entries, err := engine.Store.Entries(ctx, period.ID)
	require.NoError(t, err)
	ledgerTotal := budget.Zero()
	for _, e := range entries {
		ledgerTotal = ledgerTotal.Add(e.SpentToday)
	}

	txTotal, err := engine.Store.DiscretionaryTotal(ctx, period.ID)
	require.NoError(t, err)

	assert.True(t, ledgerTotal.Equal(txTotal),
		"ledger total %s != discretionary transaction total %s", ledgerTotal, txTotal)
	assert.True(t, ledgerTotal.Equal(m("43.00")))
}

// =============================================================================
// STATUS
// =============================================================================

func TestTodaysStatus_NoActivePeriod(t *testing.T) {
	// GIVEN: A user with no pay period
	// WHEN: Asking for today's status
	// THEN: A zeroed status comes back with no error

	engine, user, _ := newTestEngine(t)

	status, err := engine.TodaysStatus(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, status.PerDiemRate.IsZero())
	assert.True(t, status.RemainingToday.IsZero())
	assert.True(t, status.SpentToday.IsZero())
	assert.True(t, status.ProjectedTomorrow.IsZero())
	assert.Zero(t, status.DaysUntilPayday)
}

func TestTodaysStatus_ActivePeriod(t *testing.T) {
	engine, user, _ := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	require.NoError(t, engine.PostDiscretionarySpend(ctx, period.ID, m("10")))

	status, err := engine.TodaysStatus(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, status.PerDiemRate.Equal(m("40")))
	assert.True(t, status.SpentToday.Equal(m("10")))
	assert.True(t, status.RemainingToday.Equal(m("30")))
	assert.Equal(t, 10, status.DaysUntilPayday)

	// 30 remaining spread over the 9 days after today
	assert.True(t, status.ProjectedTomorrow.Equal(m("3.33")), "got %s", status.ProjectedTomorrow)
}

func TestTodaysStatus_ProjectionOnLastDay(t *testing.T) {
	// GIVEN: The final day before payday
	// WHEN: Asking for today's status
	// THEN: The projection divisor floors at 1 instead of hitting zero

	engine, user, today := newTestEngine(t)
	ctx := context.Background()
	tenDayPeriod(t, engine, user.ID)

	*today = d("2025-03-10")
	status, err := engine.TodaysStatus(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.DaysUntilPayday)

	// 40 per-diem + 40 rollover from March 1, divided by the floored 1
	assert.True(t, status.ProjectedTomorrow.Equal(m("80")), "got %s", status.ProjectedTomorrow)
	assert.True(t, status.ProjectedTomorrow.Equal(status.RemainingToday))
}

func TestTodaysStatus_MaterializesTodayLazily(t *testing.T) {
	// GIVEN: Days passed with no interaction
	// WHEN: Status is queried
	// THEN: Today's entry now exists with rollover applied

	engine, user, today := newTestEngine(t)
	ctx := context.Background()
	period := tenDayPeriod(t, engine, user.ID)

	*today = d("2025-03-03")
	status, err := engine.TodaysStatus(ctx, user.ID)
	require.NoError(t, err)

	// 40 per-diem + 40 rolled over from the untouched March 1 entry
	assert.True(t, status.RemainingToday.Equal(m("80")), "got %s", status.RemainingToday)

	entry, err := engine.Store.Entry(ctx, period.ID, d("2025-03-03"))
	require.NoError(t, err)
	require.NotNil(t, entry)
}
