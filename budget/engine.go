/*
engine.go - The per-diem accounting core

PURPOSE:
  The Engine is the single place that decides what "today" owes and is
  owed. It creates pay periods, lazily materializes today's ledger entry
  (applying rollover from the most recent prior day), posts classified
  spending, and answers status queries.

LAZY DAY ROLLOVER:
  No background scheduler runs. State transitions happen synchronously on
  interaction: every operation that depends on "today" calls
  EnsureTodayEntry first. A user absent for several days gets rollover
  from the single most recent existing entry, not a compounding chain
  through the skipped days.

ROUTING:
  HandleClassifiedTransaction is the only branch point: the fixed-cost
  flag routes to the allocation tracker, everything else to the per-diem
  ledger. No other transaction types participate in per-diem accounting.

SEE ALSO:
  - ledger.go: The per-day entries the engine reads and writes
  - classifier.go: Category resolution for incoming transactions
  - summary.go: Period-level reporting
*/
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store      TxStore
	Ledger     Ledger
	Classifier *Classifier

	// NewID mints identifiers for persisted rows.
	NewID func() string

	// Now supplies the current UTC calendar day. Overridable so tests can
	// simulate day advances.
	Now func() Date
}

func NewEngine(store TxStore) *Engine {
	newID := func() string { return uuid.NewString() }
	return &Engine{
		Store:      store,
		Ledger:     NewLedger(store, newID),
		Classifier: NewClassifier(store, newID),
		NewID:      newID,
		Now:        Today,
	}
}

// =============================================================================
// PAY PERIOD LIFECYCLE
// =============================================================================

// CreatePayPeriodInput carries everything needed to open a new income cycle.
type CreatePayPeriodInput struct {
	UserID    UserID
	StartDate Date
	EndDate   Date
	Income    Money

	// FixedCostTotal may be left zero; it then derives from Allocations.
	FixedCostTotal Money
	Allocations    []FixedAllocationInput
}

// CreatePayPeriod opens a new income cycle: deactivates any prior active
// period for the user, persists the period with its derived per-diem
// rate, creates one FixedAllocation per category, and seeds today's
// ledger entry with rollover 0. All writes happen in one transaction.
func (e *Engine) CreatePayPeriod(ctx context.Context, in CreatePayPeriodInput) (*PayPeriod, error) {
	fixedTotal := in.FixedCostTotal
	if fixedTotal.IsZero() {
		for _, a := range in.Allocations {
			fixedTotal = fixedTotal.Add(a.Allocated)
		}
	}

	period, err := NewPayPeriod(PayPeriodID(e.NewID()), in.UserID, in.StartDate, in.EndDate, in.Income, fixedTotal)
	if err != nil {
		return nil, err
	}

	err = e.Store.WithTx(ctx, func(s Store) error {
		if err := s.DeactivatePayPeriods(ctx, in.UserID); err != nil {
			return err
		}
		if err := s.SavePayPeriod(ctx, period); err != nil {
			return err
		}
		for _, a := range in.Allocations {
			alloc := FixedAllocation{
				ID:          e.NewID(),
				PayPeriodID: period.ID,
				Category:    a.Category,
				Allocated:   a.Allocated,
				Spent:       Zero(),
			}
			if err := s.SaveAllocation(ctx, alloc); err != nil {
				return err
			}
		}

		ledger := NewLedger(s, e.NewID)
		_, err := ledger.Upsert(ctx, period.ID, e.Now(), period.PerDiemRate, Zero(), Zero())
		return err
	})
	if err != nil {
		return nil, err
	}

	return &period, nil
}

// ActivePayPeriod returns the user's single active period.
func (e *Engine) ActivePayPeriod(ctx context.Context, userID UserID) (*PayPeriod, error) {
	p, err := e.Store.ActivePayPeriod(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("active pay period for user %s: %w", userID, ErrNotFound)
	}
	return p, nil
}

// =============================================================================
// LAZY DAY ROLLOVER
// =============================================================================

// EnsureTodayEntry makes sure a ledger entry exists for today, creating
// it with rollover from the most recent prior entry if the day has
// turned over. Idempotent; safe to call on every interaction. Must run
// before any read or write that depends on today's state.
func (e *Engine) EnsureTodayEntry(ctx context.Context, periodID PayPeriodID, rate Money) (LedgerEntry, error) {
	existing, err := e.Ledger.Entry(ctx, periodID, e.Now())
	if err != nil {
		return LedgerEntry{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	// Creation races other writers (the posting paths, the rollover
	// scheduler), so the check-and-create runs under the store's
	// transaction lock with a second check inside. Without it a stale
	// "no entry" read followed by Upsert would reset a day that another
	// writer had already created and spent against.
	var entry LedgerEntry
	err = e.Store.WithTx(ctx, func(s Store) error {
		var err error
		entry, err = e.ensureTodayEntry(ctx, NewLedger(s, e.NewID), periodID, rate)
		return err
	})
	return entry, err
}

func (e *Engine) ensureTodayEntry(ctx context.Context, ledger Ledger, periodID PayPeriodID, rate Money) (LedgerEntry, error) {
	today := e.Now()

	existing, err := ledger.Entry(ctx, periodID, today)
	if err != nil {
		return LedgerEntry{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	// Rollover carries the prior day's remaining, sign preserved: an
	// overspent day tightens today instead of being forgiven.
	rollover := Zero()
	prev, err := ledger.LatestBefore(ctx, periodID, today)
	if err != nil {
		return LedgerEntry{}, err
	}
	if prev != nil {
		rollover = prev.Remaining
	}

	return ledger.Upsert(ctx, periodID, today, rate, Zero(), rollover)
}

// =============================================================================
// POSTING
// =============================================================================

// PostDiscretionarySpend records discretionary spending against today's
// per-diem. Side effect only; callers re-query status as needed. Runs
// in a transaction so the lazy entry creation and the spend commit as
// one write.
func (e *Engine) PostDiscretionarySpend(ctx context.Context, periodID PayPeriodID, amount Money) error {
	return e.Store.WithTx(ctx, func(s Store) error {
		return e.postDiscretionary(ctx, s, periodID, amount)
	})
}

func (e *Engine) postDiscretionary(ctx context.Context, s Store, periodID PayPeriodID, amount Money) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	// Cent precision keeps the stored ledger arithmetic exact.
	amount = amount.Round2()

	period, err := s.PayPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if period == nil {
		return fmt.Errorf("pay period %s: %w", periodID, ErrNotFound)
	}

	ledger := NewLedger(s, e.NewID)
	entry, err := e.ensureTodayEntry(ctx, ledger, periodID, period.PerDiemRate)
	if err != nil {
		return err
	}
	return ledger.AddSpending(ctx, periodID, entry.Date, amount)
}

// PostFixedCostSpend records fixed-cost spending against the category's
// allocation. Fixed costs are out-of-band from per-diem: the ledger is
// never touched.
func (e *Engine) PostFixedCostSpend(ctx context.Context, periodID PayPeriodID, category string, amount Money) error {
	return e.postFixedCost(ctx, e.Store, periodID, category, amount)
}

func (e *Engine) postFixedCost(ctx context.Context, s Store, periodID PayPeriodID, category string, amount Money) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}

	ok, err := s.AddToAllocationSpent(ctx, periodID, category, amount.Round2())
	if err != nil {
		return err
	}
	if !ok {
		return &CategoryNotFoundError{PayPeriodID: periodID, Category: category}
	}
	return nil
}

// HandleClassifiedTransaction is the dispatch point for the
// conversational front end: it resolves the category, records the
// transaction, and routes the amount by the fixed-cost flag. The
// transaction row and the ledger/allocation update commit together, so
// the reconciliation invariant (ledger spend == discretionary
// transaction sum) survives a mid-operation failure.
func (e *Engine) HandleClassifiedTransaction(ctx context.Context, userID UserID, periodID PayPeriodID, in ClassifiedTransaction) (*Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	in.Amount = in.Amount.Round2()

	category, err := e.Classifier.ResolveOrCreateCategory(ctx, in.Category, userID)
	if err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = e.Now()
	}

	txType := TxExpense
	if in.IsFixedCost {
		txType = TxFixedCost
	}

	tx := Transaction{
		ID:          TransactionID(e.NewID()),
		UserID:      userID,
		PayPeriodID: periodID,
		CategoryID:  category.ID,
		Amount:      in.Amount,
		Description: in.Description,
		Merchant:    in.Merchant,
		Date:        date,
		Type:        txType,
		IsFixedCost: in.IsFixedCost,
		CreatedAt:   time.Now().UTC(),
	}

	err = e.Store.WithTx(ctx, func(s Store) error {
		if in.IsFixedCost {
			if err := e.postFixedCost(ctx, s, periodID, in.Category, in.Amount); err != nil {
				return err
			}
		} else {
			if err := e.postDiscretionary(ctx, s, periodID, in.Amount); err != nil {
				return err
			}
		}
		return s.SaveTransaction(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	return &tx, nil
}

// =============================================================================
// STATUS
// =============================================================================

// Status is the answer to "where do I stand today".
type Status struct {
	PerDiemRate       Money
	RemainingToday    Money
	SpentToday        Money
	DaysUntilPayday   int
	ProjectedTomorrow Money
}

// TodaysStatus reports the user's current position. "No active period"
// is a valid, displayable state: it yields a zeroed status, not an
// error. ProjectedTomorrow is a forward-looking estimate of tomorrow's
// effective rate if today's remaining were redistributed across the rest
// of the period; informational only, recomputed fresh each call.
func (e *Engine) TodaysStatus(ctx context.Context, userID UserID) (Status, error) {
	period, err := e.Store.ActivePayPeriod(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	if period == nil {
		return Status{
			PerDiemRate:       Zero(),
			RemainingToday:    Zero(),
			SpentToday:        Zero(),
			ProjectedTomorrow: Zero(),
		}, nil
	}

	entry, err := e.EnsureTodayEntry(ctx, period.ID, period.PerDiemRate)
	if err != nil {
		return Status{}, err
	}

	daysLeft := DaysBetween(e.Now(), period.EndDate)
	if daysLeft < 0 {
		daysLeft = 0
	}

	divisor := daysLeft - 1
	if divisor < 1 {
		divisor = 1
	}

	return Status{
		PerDiemRate:       period.PerDiemRate,
		RemainingToday:    entry.Remaining,
		SpentToday:        entry.SpentToday,
		DaysUntilPayday:   daysLeft,
		ProjectedTomorrow: entry.Remaining.Div(divisor).Round2(),
	}, nil
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// defaultCategories are seeded for every new user so the classifier has
// a vocabulary before the first transaction arrives.
var defaultCategories = []struct {
	Name        string
	IsFixedCost bool
}{
	{"Rent", true},
	{"Utilities", true},
	{"Insurance", true},
	{"Groceries", false},
	{"Dining", false},
	{"Transport", false},
	{"Entertainment", false},
	{"Misc", false},
}

// BootstrapUser returns the existing user, or creates one with the
// default category set. Called once at startup in single-user mode.
func (e *Engine) BootstrapUser(ctx context.Context, name, email string) (*User, error) {
	existing, err := e.Store.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	user := User{ID: UserID(e.NewID()), Name: name, Email: email}
	err = e.Store.WithTx(ctx, func(s Store) error {
		if err := s.SaveUser(ctx, user); err != nil {
			return err
		}
		for _, c := range defaultCategories {
			cat := Category{
				ID:          CategoryID(e.NewID()),
				UserID:      user.ID,
				Name:        c.Name,
				IsFixedCost: c.IsFixedCost,
				IsDefault:   true,
			}
			if err := s.SaveCategory(ctx, cat); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
