/*
ledger.go - Per-day tracking log for a pay period

PURPOSE:
  The Ledger holds one entry per (pay period, calendar date): how much the
  day was allotted, how much was spent, and what rolled in from the prior
  day. It is the single source of truth for "today's remaining spend" -
  never derived by summing transactions, because rollover makes that sum
  diverge from the per-day view.

CRITICAL INVARIANTS:
  1. Remaining = PerDiem + Rollover - SpentToday, after every mutation
  2. (pay period, date) is unique - at most one entry per day
  3. Entries are created lazily and updated in place, never deleted
  4. A new day never rewrites yesterday's finalized entry

ROLLOVER:
  Yesterday's Remaining becomes today's Rollover, sign preserved. A
  negative remaining (overspend) tightens the next day's budget instead
  of being forgiven.

SEE ALSO:
  - store.go: Persistence interface the ledger writes through
  - engine.go: Creates today's entry lazily and posts spending
*/
package budget

import "context"

// =============================================================================
// LEDGER ENTRY - One day of per-diem tracking
// =============================================================================

type LedgerEntry struct {
	ID          string
	PayPeriodID PayPeriodID
	Date        Date
	PerDiem     Money // the day's allotment; normally the period rate
	Remaining   Money // PerDiem + Rollover - SpentToday
	SpentToday  Money
	Rollover    Money // prior day's remaining, may be negative
}

// checkInvariant reports whether the entry's arithmetic holds.
func (e LedgerEntry) checkInvariant() bool {
	return e.Remaining.Equal(e.PerDiem.Add(e.Rollover).Sub(e.SpentToday))
}

// DayTallies counts days relative to their allotment for reporting.
type DayTallies struct {
	Under    int // SpentToday < PerDiem
	Over     int // SpentToday > PerDiem
	OnTarget int // SpentToday == PerDiem
}

// =============================================================================
// LEDGER - Mutation surface over stored entries
// =============================================================================

// Ledger is the only mutation path for per-day entries. All higher-level
// operations are expressed through Upsert and AddSpending.
type Ledger interface {
	// Entry returns the entry for (period, date), or nil if none exists.
	Entry(ctx context.Context, periodID PayPeriodID, date Date) (*LedgerEntry, error)

	// LatestBefore returns the most recent entry strictly before date,
	// or nil. This is what lazy rollover reads from.
	LatestBefore(ctx context.Context, periodID PayPeriodID, date Date) (*LedgerEntry, error)

	// Upsert writes an entry for (period, date), computing
	// Remaining = perDiem + rollover - spentToday. Updates in place when
	// the day already exists, inserts otherwise.
	Upsert(ctx context.Context, periodID PayPeriodID, date Date, perDiem, spentToday, rollover Money) (LedgerEntry, error)

	// AddSpending atomically increments SpentToday and decrements
	// Remaining by the same amount. Rejects amount <= 0.
	AddSpending(ctx context.Context, periodID PayPeriodID, date Date, amount Money) error

	// Entries returns all entries for the period, oldest first.
	Entries(ctx context.Context, periodID PayPeriodID) ([]LedgerEntry, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using EntryStore
// =============================================================================

type DefaultLedger struct {
	Store EntryStore
	NewID func() string
}

func NewLedger(store EntryStore, newID func() string) *DefaultLedger {
	return &DefaultLedger{Store: store, NewID: newID}
}

func (l *DefaultLedger) Entry(ctx context.Context, periodID PayPeriodID, date Date) (*LedgerEntry, error) {
	return l.Store.Entry(ctx, periodID, date)
}

func (l *DefaultLedger) LatestBefore(ctx context.Context, periodID PayPeriodID, date Date) (*LedgerEntry, error) {
	return l.Store.LatestEntryBefore(ctx, periodID, date)
}

func (l *DefaultLedger) Upsert(ctx context.Context, periodID PayPeriodID, date Date, perDiem, spentToday, rollover Money) (LedgerEntry, error) {
	entry := LedgerEntry{
		ID:          l.NewID(),
		PayPeriodID: periodID,
		Date:        date,
		PerDiem:     perDiem,
		Remaining:   perDiem.Add(rollover).Sub(spentToday),
		SpentToday:  spentToday,
		Rollover:    rollover,
	}

	if existing, err := l.Store.Entry(ctx, periodID, date); err != nil {
		return LedgerEntry{}, err
	} else if existing != nil {
		entry.ID = existing.ID
	}

	if err := l.Store.UpsertEntry(ctx, entry); err != nil {
		return LedgerEntry{}, err
	}
	return entry, nil
}

func (l *DefaultLedger) AddSpending(ctx context.Context, periodID PayPeriodID, date Date, amount Money) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return l.Store.AddSpending(ctx, periodID, date, amount)
}

func (l *DefaultLedger) Entries(ctx context.Context, periodID PayPeriodID) ([]LedgerEntry, error) {
	return l.Store.Entries(ctx, periodID)
}
