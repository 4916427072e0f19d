package budget

import (
	"context"
	"fmt"
)

// =============================================================================
// PERIOD SUMMARY - Aggregated reporting, pure read
// =============================================================================

// PeriodSummary aggregates a pay period's ledger and transaction history.
type PeriodSummary struct {
	Income                 Money
	FixedAllocated         Money
	FixedSpent             Money
	Allocations            []FixedAllocation
	FixedBreakdown         []CategoryTotal
	DiscretionarySpent     Money
	DiscretionaryBreakdown []CategoryTotal
	PerDiemRate            Money
	RemainingToday         Money
	DaysUntilPayday        int
	Days                   DayTallies
}

// Reporter answers period-level summary queries. It never mutates; a
// status query (which may materialize today's entry) belongs to the
// Engine.
type Reporter struct {
	Store Store
	Now   func() Date
}

func NewReporter(store Store) *Reporter {
	return &Reporter{Store: store, Now: Today}
}

// Summary builds the period summary. Discretionary spend comes from the
// ledger, the source of truth for per-day consumption; the per-category
// breakdown comes from transactions. The two views reconcile by
// construction because postings write both in one transaction.
func (r *Reporter) Summary(ctx context.Context, periodID PayPeriodID) (PeriodSummary, error) {
	period, err := r.Store.PayPeriod(ctx, periodID)
	if err != nil {
		return PeriodSummary{}, err
	}
	if period == nil {
		return PeriodSummary{}, fmt.Errorf("pay period %s: %w", periodID, ErrNotFound)
	}

	allocations, err := r.Store.Allocations(ctx, periodID)
	if err != nil {
		return PeriodSummary{}, err
	}

	entries, err := r.Store.Entries(ctx, periodID)
	if err != nil {
		return PeriodSummary{}, err
	}

	totals, err := r.Store.CategoryTotals(ctx, periodID)
	if err != nil {
		return PeriodSummary{}, err
	}

	tallies, err := r.Store.DayTallies(ctx, periodID)
	if err != nil {
		return PeriodSummary{}, err
	}

	s := PeriodSummary{
		Income:          period.Income,
		PerDiemRate:     period.PerDiemRate,
		RemainingToday:  period.PerDiemRate,
		DaysUntilPayday: period.DaysUntilPayday,
		Days:            tallies,
	}

	s.Allocations = allocations
	for _, a := range allocations {
		s.FixedAllocated = s.FixedAllocated.Add(a.Allocated)
		s.FixedSpent = s.FixedSpent.Add(a.Spent)
	}

	today := r.Now()
	for _, e := range entries {
		// Entries are stored denormalized; a row that breaks the ledger
		// arithmetic means the store was edited out-of-band.
		if !e.checkInvariant() {
			return PeriodSummary{}, StorageError(
				fmt.Sprintf("ledger entry %s/%s", e.PayPeriodID, e.Date),
				fmt.Errorf("remaining %s != perDiem %s + rollover %s - spent %s",
					e.Remaining, e.PerDiem, e.Rollover, e.SpentToday))
		}
		s.DiscretionarySpent = s.DiscretionarySpent.Add(e.SpentToday)
		if e.Date.Equal(today) {
			s.RemainingToday = e.Remaining
		}
	}

	for _, t := range totals {
		if t.IsFixedCost {
			s.FixedBreakdown = append(s.FixedBreakdown, t)
		} else {
			s.DiscretionaryBreakdown = append(s.DiscretionaryBreakdown, t)
		}
	}

	return s, nil
}
