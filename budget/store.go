/*
store.go - Persistence interfaces for the budget engine

PURPOSE:
  Defines the interface between domain logic and the database. The
  concerns are split per table group so implementations and tests can
  depend on the narrow slice they need; Store composes them all.

ATOMICITY CONTRACT:
  AddSpending must increment SpentToday and decrement Remaining in a
  single statement (or serialized transaction): two concurrent postings
  against the same day must never both read a stale Remaining and
  overwrite each other's decrement. Multi-row writes (period creation)
  run inside WithTx.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - budget/store:  In-memory, for testing

SEE ALSO:
  - ledger.go: Higher-level mutation surface over EntryStore
  - engine.go: Orchestrates the interfaces
*/
package budget

import "context"

// =============================================================================
// PER-TABLE INTERFACES
// =============================================================================

// PeriodStore persists pay periods. Lookups return nil when absent.
type PeriodStore interface {
	SavePayPeriod(ctx context.Context, p PayPeriod) error

	// DeactivatePayPeriods clears the active flag on every period the
	// user owns. Last writer wins; no soft concurrency.
	DeactivatePayPeriods(ctx context.Context, userID UserID) error

	PayPeriod(ctx context.Context, id PayPeriodID) (*PayPeriod, error)
	ActivePayPeriod(ctx context.Context, userID UserID) (*PayPeriod, error)
}

// AllocationStore persists per-category fixed-cost budgets.
type AllocationStore interface {
	SaveAllocation(ctx context.Context, a FixedAllocation) error
	Allocations(ctx context.Context, periodID PayPeriodID) ([]FixedAllocation, error)

	// AddToAllocationSpent atomically increments the allocation's spent
	// amount. Returns false when no allocation exists for the category.
	AddToAllocationSpent(ctx context.Context, periodID PayPeriodID, category string, amount Money) (bool, error)
}

// EntryStore persists per-day ledger entries.
type EntryStore interface {
	Entry(ctx context.Context, periodID PayPeriodID, date Date) (*LedgerEntry, error)
	LatestEntryBefore(ctx context.Context, periodID PayPeriodID, date Date) (*LedgerEntry, error)
	Entries(ctx context.Context, periodID PayPeriodID) ([]LedgerEntry, error)
	UpsertEntry(ctx context.Context, e LedgerEntry) error

	// AddSpending performs the atomic same-statement increment/decrement.
	// Returns ErrNotFound if no entry exists for (period, date).
	AddSpending(ctx context.Context, periodID PayPeriodID, date Date, amount Money) error

	DayTallies(ctx context.Context, periodID PayPeriodID) (DayTallies, error)
}

// CategoryStore persists spending categories.
type CategoryStore interface {
	// CategoryByName looks up by case-insensitive exact match; nil if absent.
	CategoryByName(ctx context.Context, userID UserID, name string) (*Category, error)
	SaveCategory(ctx context.Context, c Category) error
	Categories(ctx context.Context, userID UserID) ([]Category, error)
}

// TransactionStore persists classified transactions.
type TransactionStore interface {
	SaveTransaction(ctx context.Context, tx Transaction) error
	RecentTransactions(ctx context.Context, userID UserID, limit int) ([]Transaction, error)
	TransactionsByPeriod(ctx context.Context, periodID PayPeriodID) ([]Transaction, error)
	CategoryTotals(ctx context.Context, periodID PayPeriodID) ([]CategoryTotal, error)

	// DiscretionaryTotal sums discretionary transaction amounts for the
	// period. Must reconcile with the ledger's SpentToday sum.
	DiscretionaryTotal(ctx context.Context, periodID PayPeriodID) (Money, error)
}

// UserStore persists user records.
type UserStore interface {
	SaveUser(ctx context.Context, u User) error
	CurrentUser(ctx context.Context) (*User, error)
}

// SettingsStore is the per-user key-value preference store. It is
// consulted only for cross-cutting preferences, never accounting math.
type SettingsStore interface {
	Setting(ctx context.Context, userID UserID, key string) (string, bool, error)
	SetSetting(ctx context.Context, userID UserID, key, value string) error
	Settings(ctx context.Context, userID UserID) (map[string]string, error)
	DeleteSetting(ctx context.Context, userID UserID, key string) error
}

// =============================================================================
// COMPOSED STORE
// =============================================================================

// Store is the full persistence surface.
type Store interface {
	PeriodStore
	AllocationStore
	EntryStore
	CategoryStore
	TransactionStore
	UserStore
	SettingsStore
}

// TxStore wraps Store with transaction support for multi-row writes.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
