/*
scenarios_test.go - Tests for the demo scenario loaders

PURPOSE:
	Tests that each scenario sets up a consistent state:
	- A user and an active pay period exist
	- The per-day ledger keeps its rollover chain intact
	- The transaction log reconciles with the ledger
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsend/budget-engine/budget"
)

func loadScenario(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
}

func TestListScenarios(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	assert.Len(t, list, 4)
}

func TestLoadScenario_Unknown(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadScenario_FreshStart(t *testing.T) {
	router, _ := newTestAPI(t)
	loadScenario(t, router, "fresh-start")

	rec := do(t, router, http.MethodGet, "/api/periods/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	period := decode[PeriodDTO](t, rec)
	assert.Equal(t, "1500.00", period.FixedCostTotal)

	// Nothing spent: today's remaining equals the rate
	rec = do(t, router, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[StatusDTO](t, rec)
	assert.Equal(t, period.PerDiemRate, status.RemainingToday)
	assert.Equal(t, "0.00", status.SpentToday)
}

func TestLoadScenario_MidPeriodReconciles(t *testing.T) {
	// GIVEN: Five replayed days of spending plus today
	router, h := newTestAPI(t)
	loadScenario(t, router, "mid-period")

	ctx := context.Background()
	user, err := h.Store.CurrentUser(ctx)
	require.NoError(t, err)
	period, err := h.Store.ActivePayPeriod(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, period)

	entries, err := h.Store.Entries(ctx, period.ID)
	require.NoError(t, err)
	require.Len(t, entries, 6)

	// THEN: Every entry satisfies remaining = perDiem + rollover - spent
	ledgerSpent := budget.Zero()
	for _, e := range entries {
		want := e.PerDiem.Add(e.Rollover).Sub(e.SpentToday)
		assert.True(t, e.Remaining.Equal(want), "entry %s: %s != %s", e.Date, e.Remaining, want)
		ledgerSpent = ledgerSpent.Add(e.SpentToday)
	}

	// AND: The rollover chain links consecutive entries
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i].Rollover.Equal(entries[i-1].Remaining),
			"entry %s rollover broken", entries[i].Date)
	}

	// AND: The transaction log agrees with the ledger
	txTotal, err := h.Store.DiscretionaryTotal(ctx, period.ID)
	require.NoError(t, err)
	assert.True(t, txTotal.Equal(ledgerSpent), "transactions %s vs ledger %s", txTotal, ledgerSpent)

	// AND: Every envelope is fully paid
	allocs, err := h.Store.Allocations(ctx, period.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	for _, a := range allocs {
		assert.True(t, a.Spent.Equal(a.Allocated), "%s not fully paid", a.Category)
	}
}

func TestLoadScenario_OverspentGoesNegative(t *testing.T) {
	router, h := newTestAPI(t)
	loadScenario(t, router, "overspent")

	ctx := context.Background()
	user, err := h.Store.CurrentUser(ctx)
	require.NoError(t, err)
	period, err := h.Store.ActivePayPeriod(ctx, user.ID)
	require.NoError(t, err)

	today, err := h.Store.Entry(ctx, period.ID, h.Engine.Now())
	require.NoError(t, err)
	require.NotNil(t, today)
	assert.True(t, today.Rollover.IsNegative(), "rollover should be negative, got %s", today.Rollover)
}

func TestLoadScenario_ResetsPreviousData(t *testing.T) {
	router, h := newTestAPI(t)
	loadScenario(t, router, "mid-period")
	loadScenario(t, router, "fresh-start")

	ctx := context.Background()
	user, err := h.Store.CurrentUser(ctx)
	require.NoError(t, err)
	period, err := h.Store.ActivePayPeriod(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, period)

	// The mid-period history is gone
	txs, err := h.Store.RecentTransactions(ctx, user.ID, 100)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
