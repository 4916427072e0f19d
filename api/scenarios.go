/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates a user, a pay period,
	and a spending history that demonstrates specific engine behavior.

AVAILABLE SCENARIOS:

	fresh-start:  Pay period opened today, nothing spent yet
	mid-period:   Five days of mixed spending with rollover history
	tight-month:  Fixed costs consume most of the income, low per-diem
	overspent:    A streak of over-target days driving rollover negative

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Bootstrap the user with default categories
 3. Open a pay period with fixed-cost envelopes
 4. Seed per-day ledger entries with a consistent rollover chain
 5. Record the matching transactions so the ledger reconciles

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "mid-period"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: The request handlers the seeded data shows up in
  - budget/engine.go: The semantics the seeded history follows
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/spendsend/budget-engine/budget"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-start",
		Name:        "Fresh Start",
		Description: "Pay period opened today with nothing spent yet",
	},
	{
		ID:          "mid-period",
		Name:        "Mid-Period",
		Description: "Five days of mixed spending with rollover history",
	},
	{
		ID:          "tight-month",
		Name:        "Tight Month",
		Description: "Fixed costs consume most of the income, low per-diem",
	},
	{
		ID:          "overspent",
		Name:        "Overspent",
		Description: "A streak of over-target days driving rollover negative",
	},
}

// resetter is implemented by stores that can wipe all data. The demo
// loaders refuse to run against a store that cannot.
type resetter interface {
	Reset(ctx context.Context) error
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the database and loads the requested scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rs, ok := h.Store.(resetter)
	if !ok {
		writeError(w, http.StatusConflict, "Store does not support reset", nil)
		return
	}

	ctx := r.Context()
	if err := rs.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "fresh-start":
		err = h.loadFreshStart(ctx)
	case "mid-period":
		err = h.loadMidPeriod(ctx)
	case "tight-month":
		err = h.loadTightMonth(ctx)
	case "overspent":
		err = h.loadOverspent(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadFreshStart(ctx context.Context) error {
	user, err := h.Engine.BootstrapUser(ctx, "Demo User", "demo@example.com")
	if err != nil {
		return err
	}

	today := h.Engine.Now()
	_, err = h.Engine.CreatePayPeriod(ctx, budget.CreatePayPeriodInput{
		UserID:    user.ID,
		StartDate: today,
		EndDate:   today.AddDays(14),
		Income:    budget.MustParseMoney("2600"),
		Allocations: []budget.FixedAllocationInput{
			{Category: "Rent", Allocated: budget.MustParseMoney("1200")},
			{Category: "Utilities", Allocated: budget.MustParseMoney("180")},
			{Category: "Insurance", Allocated: budget.MustParseMoney("120")},
		},
	})
	return err
}

func (h *Handler) loadMidPeriod(ctx context.Context) error {
	// Hovering around target: some under days banking surplus, one
	// restaurant night spending it again.
	return h.loadHistory(ctx, "2600",
		[]budget.FixedAllocationInput{
			{Category: "Rent", Allocated: budget.MustParseMoney("1200")},
			{Category: "Utilities", Allocated: budget.MustParseMoney("180")},
		},
		[]demoDay{
			{spends: []demoSpend{{"Groceries", "42.80", "Corner Store"}}},
			{spends: []demoSpend{{"Transport", "18.00", "Metro"}}},
			{spends: []demoSpend{
				{"Dining", "96.40", "Trattoria"},
				{"Entertainment", "24.00", "Cinema"},
			}},
			{spends: nil}, // a no-spend day
			{spends: []demoSpend{{"Groceries", "61.25", "Supermarket"}}},
		})
}

func (h *Handler) loadTightMonth(ctx context.Context) error {
	// 150 left over 15 days: a 10/day rate where every coffee counts.
	return h.loadHistory(ctx, "1800",
		[]budget.FixedAllocationInput{
			{Category: "Rent", Allocated: budget.MustParseMoney("1450")},
			{Category: "Utilities", Allocated: budget.MustParseMoney("140")},
			{Category: "Insurance", Allocated: budget.MustParseMoney("60")},
		},
		[]demoDay{
			{spends: []demoSpend{{"Groceries", "8.50", "Discounter"}}},
			{spends: []demoSpend{{"Transport", "2.80", "Metro"}}},
			{spends: []demoSpend{{"Groceries", "11.20", "Discounter"}}},
		})
}

func (h *Handler) loadOverspent(ctx context.Context) error {
	// Every day over target; the rollover goes negative and stays there.
	return h.loadHistory(ctx, "2600",
		[]budget.FixedAllocationInput{
			{Category: "Rent", Allocated: budget.MustParseMoney("1200")},
		},
		[]demoDay{
			{spends: []demoSpend{{"Dining", "120.00", "Steakhouse"}}},
			{spends: []demoSpend{{"Entertainment", "135.50", "Concert"}}},
			{spends: []demoSpend{{"Dining", "110.75", "Sushi Bar"}}},
		})
}

// =============================================================================
// HISTORY SEEDING
// =============================================================================

type demoSpend struct {
	category string
	amount   string
	merchant string
}

type demoDay struct {
	spends []demoSpend
}

// loadHistory opens a period that started len(days) days ago and replays
// one spending day per entry, maintaining the rollover chain and
// recording the matching transactions so ledger and log reconcile.
func (h *Handler) loadHistory(ctx context.Context, income string, allocs []budget.FixedAllocationInput, days []demoDay) error {
	user, err := h.Engine.BootstrapUser(ctx, "Demo User", "demo@example.com")
	if err != nil {
		return err
	}

	today := h.Engine.Now()
	start := today.AddDays(-len(days))
	period, err := h.Engine.CreatePayPeriod(ctx, budget.CreatePayPeriodInput{
		UserID:      user.ID,
		StartDate:   start,
		EndDate:     start.AddDays(15),
		Income:      budget.MustParseMoney(income),
		Allocations: allocs,
	})
	if err != nil {
		return err
	}

	// CreatePayPeriod seeded an entry for today; the replay rebuilds the
	// whole chain from the period's first day, today included.
	rollover := budget.Zero()
	for i, day := range days {
		date := start.AddDays(i)

		spent := budget.Zero()
		for _, s := range day.spends {
			amount := budget.MustParseMoney(s.amount)
			spent = spent.Add(amount)

			cat, err := h.Engine.Classifier.ResolveOrCreateCategory(ctx, s.category, user.ID)
			if err != nil {
				return err
			}
			tx := budget.Transaction{
				ID:          budget.TransactionID(uuid.NewString()),
				UserID:      user.ID,
				PayPeriodID: period.ID,
				CategoryID:  cat.ID,
				Type:        budget.TxExpense,
				Amount:      amount,
				Merchant:    s.merchant,
				Date:        date,
			}
			if err := h.Store.SaveTransaction(ctx, tx); err != nil {
				return err
			}
		}

		entry := budget.LedgerEntry{
			ID:          uuid.NewString(),
			PayPeriodID: period.ID,
			Date:        date,
			PerDiem:     period.PerDiemRate,
			Rollover:    rollover,
			SpentToday:  spent,
			Remaining:   period.PerDiemRate.Add(rollover).Sub(spent),
		}
		if err := h.Store.UpsertEntry(ctx, entry); err != nil {
			return err
		}
		rollover = entry.Remaining
	}

	todayEntry := budget.LedgerEntry{
		ID:          uuid.NewString(),
		PayPeriodID: period.ID,
		Date:        today,
		PerDiem:     period.PerDiemRate,
		Rollover:    rollover,
		SpentToday:  budget.Zero(),
		Remaining:   period.PerDiemRate.Add(rollover),
	}
	if err := h.Store.UpsertEntry(ctx, todayEntry); err != nil {
		return err
	}

	return h.payFixedCosts(ctx, user.ID, period, allocs)
}

// payFixedCosts records one payment per envelope, as if the bills for
// the period had already cleared.
func (h *Handler) payFixedCosts(ctx context.Context, userID budget.UserID, period *budget.PayPeriod, allocs []budget.FixedAllocationInput) error {
	for _, a := range allocs {
		cat, err := h.Engine.Classifier.ResolveOrCreateCategory(ctx, a.Category, userID)
		if err != nil {
			return err
		}
		if _, err := h.Store.AddToAllocationSpent(ctx, period.ID, a.Category, a.Allocated); err != nil {
			return err
		}
		tx := budget.Transaction{
			ID:          budget.TransactionID(uuid.NewString()),
			UserID:      userID,
			PayPeriodID: period.ID,
			CategoryID:  cat.ID,
			Type:        budget.TxFixedCost,
			Amount:      a.Allocated,
			IsFixedCost: true,
			Date:        period.StartDate,
		}
		if err := h.Store.SaveTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}
