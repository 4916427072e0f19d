/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements budget.Store and budget.TxStore using SQLite. The same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  users:             Account records
  pay_periods:       Budget windows (one active per user)
  fixed_allocations: Fixed-cost envelopes per pay period
  ledger_entries:    One row per period+day; UNIQUE(pay_period_id, entry_date)
  categories:        Spending categories, name unique per user (case-insensitive)
  transactions:      Every classified spend/income event
  settings:          Per-user key/value preferences

MONEY AND DATES:
  Monetary amounts are stored as decimal strings (TEXT) to avoid float
  drift; calendar days as YYYY-MM-DD TEXT, which sorts correctly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Transaction-scoped reads and writes
  go through unexported helpers that operate on a dbtx, so code running
  inside WithTx never re-acquires the store lock.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/budget.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := budget.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - budget/store.go: Interface definitions
  - budget/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spendsend/budget-engine/budget"
)

// Store implements budget.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbtx is the subset of *sql.DB and *sql.Tx the query helpers need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pay_periods (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		income TEXT NOT NULL,
		fixed_cost_total TEXT NOT NULL,
		discretionary_pool TEXT NOT NULL,
		per_diem_rate TEXT NOT NULL,
		days_until_payday INTEGER NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pay_periods_user_active
		ON pay_periods(user_id, active);

	CREATE TABLE IF NOT EXISTS fixed_allocations (
		id TEXT PRIMARY KEY,
		pay_period_id TEXT NOT NULL,
		category TEXT NOT NULL COLLATE NOCASE,
		allocated TEXT NOT NULL,
		spent TEXT NOT NULL DEFAULT '0',
		UNIQUE(pay_period_id, category)
	);

	CREATE INDEX IF NOT EXISTS idx_fixed_allocations_period
		ON fixed_allocations(pay_period_id);

	-- One ledger row per budget day. The unique index is what makes
	-- day creation idempotent under concurrent writers.
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		pay_period_id TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		per_diem TEXT NOT NULL,
		remaining TEXT NOT NULL,
		spent_today TEXT NOT NULL DEFAULT '0',
		rollover TEXT NOT NULL DEFAULT '0',
		UNIQUE(pay_period_id, entry_date)
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_period_date
		ON ledger_entries(pay_period_id, entry_date DESC);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL COLLATE NOCASE,
		is_fixed_cost BOOLEAN NOT NULL DEFAULT FALSE,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE(user_id, name)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		pay_period_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		is_fixed_cost BOOLEAN NOT NULL DEFAULT FALSE,
		description TEXT,
		merchant TEXT,
		tx_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_period
		ON transactions(pay_period_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_created
		ON transactions(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS settings (
		user_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY(user_id, key)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PAY PERIODS
// =============================================================================

func (s *Store) SavePayPeriod(ctx context.Context, p budget.PayPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePayPeriod(ctx, s.db, p)
}

func savePayPeriod(ctx context.Context, db dbtx, p budget.PayPeriod) error {
	query := `
		INSERT INTO pay_periods
		(id, user_id, start_date, end_date, income, fixed_cost_total,
		 discretionary_pool, per_diem_rate, days_until_payday, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			income = excluded.income,
			fixed_cost_total = excluded.fixed_cost_total,
			discretionary_pool = excluded.discretionary_pool,
			per_diem_rate = excluded.per_diem_rate,
			days_until_payday = excluded.days_until_payday,
			active = excluded.active
	`

	_, err := db.ExecContext(ctx, query,
		p.ID, p.UserID,
		p.StartDate.String(), p.EndDate.String(),
		p.Income.String(), p.FixedCostTotal.String(),
		p.DiscretionaryPool.String(), p.PerDiemRate.String(),
		p.DaysUntilPayday, p.Active,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return budget.StorageError("save pay period", err)
	}
	return nil
}

func (s *Store) DeactivatePayPeriods(ctx context.Context, userID budget.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deactivatePayPeriods(ctx, s.db, userID)
}

func deactivatePayPeriods(ctx context.Context, db dbtx, userID budget.UserID) error {
	_, err := db.ExecContext(ctx,
		"UPDATE pay_periods SET active = FALSE WHERE user_id = ? AND active = TRUE",
		userID,
	)
	if err != nil {
		return budget.StorageError("deactivate pay periods", err)
	}
	return nil
}

func (s *Store) PayPeriod(ctx context.Context, id budget.PayPeriodID) (*budget.PayPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return payPeriod(ctx, s.db, id)
}

const payPeriodColumns = `id, user_id, start_date, end_date, income, fixed_cost_total,
	discretionary_pool, per_diem_rate, days_until_payday, active`

func payPeriod(ctx context.Context, db dbtx, id budget.PayPeriodID) (*budget.PayPeriod, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+payPeriodColumns+" FROM pay_periods WHERE id = ?", id)
	return scanPayPeriod(row)
}

func (s *Store) ActivePayPeriod(ctx context.Context, userID budget.UserID) (*budget.PayPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activePayPeriod(ctx, s.db, userID)
}

func activePayPeriod(ctx context.Context, db dbtx, userID budget.UserID) (*budget.PayPeriod, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+payPeriodColumns+` FROM pay_periods
		 WHERE user_id = ? AND active = TRUE
		 ORDER BY start_date DESC LIMIT 1`, userID)
	return scanPayPeriod(row)
}

func scanPayPeriod(row *sql.Row) (*budget.PayPeriod, error) {
	var (
		p                                  budget.PayPeriod
		startDate, endDate                 string
		income, fixedTotal, pool, perDiem  string
	)

	err := row.Scan(&p.ID, &p.UserID, &startDate, &endDate,
		&income, &fixedTotal, &pool, &perDiem,
		&p.DaysUntilPayday, &p.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, budget.StorageError("scan pay period", err)
	}

	if p.StartDate, err = budget.ParseDate(startDate); err != nil {
		return nil, budget.StorageError("parse start date", err)
	}
	if p.EndDate, err = budget.ParseDate(endDate); err != nil {
		return nil, budget.StorageError("parse end date", err)
	}
	p.Income = budget.MustParseMoney(income)
	p.FixedCostTotal = budget.MustParseMoney(fixedTotal)
	p.DiscretionaryPool = budget.MustParseMoney(pool)
	p.PerDiemRate = budget.MustParseMoney(perDiem)
	return &p, nil
}

// =============================================================================
// FIXED ALLOCATIONS
// =============================================================================

func (s *Store) SaveAllocation(ctx context.Context, a budget.FixedAllocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAllocation(ctx, s.db, a)
}

func saveAllocation(ctx context.Context, db dbtx, a budget.FixedAllocation) error {
	query := `
		INSERT INTO fixed_allocations (id, pay_period_id, category, allocated, spent)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pay_period_id, category) DO UPDATE SET
			allocated = excluded.allocated,
			spent = excluded.spent
	`
	_, err := db.ExecContext(ctx, query,
		a.ID, a.PayPeriodID, a.Category, a.Allocated.String(), a.Spent.String())
	if err != nil {
		return budget.StorageError("save allocation", err)
	}
	return nil
}

func (s *Store) Allocations(ctx context.Context, periodID budget.PayPeriodID) ([]budget.FixedAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return allocations(ctx, s.db, periodID)
}

func allocations(ctx context.Context, db dbtx, periodID budget.PayPeriodID) ([]budget.FixedAllocation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, pay_period_id, category, allocated, spent
		 FROM fixed_allocations WHERE pay_period_id = ? ORDER BY category`, periodID)
	if err != nil {
		return nil, budget.StorageError("query allocations", err)
	}
	defer rows.Close()

	var out []budget.FixedAllocation
	for rows.Next() {
		var a budget.FixedAllocation
		var allocated, spent string
		if err := rows.Scan(&a.ID, &a.PayPeriodID, &a.Category, &allocated, &spent); err != nil {
			return nil, budget.StorageError("scan allocation", err)
		}
		a.Allocated = budget.MustParseMoney(allocated)
		a.Spent = budget.MustParseMoney(spent)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AddToAllocationSpent(ctx context.Context, periodID budget.PayPeriodID, category string, amount budget.Money) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addToAllocationSpent(ctx, s.db, periodID, category, amount)
}

// addToAllocationSpent bumps the envelope's spent total in a single
// statement. SQLite has no DECIMAL type, so the arithmetic goes through
// CAST to REAL and is re-rounded on read; envelope totals tolerate that.
func addToAllocationSpent(ctx context.Context, db dbtx, periodID budget.PayPeriodID, category string, amount budget.Money) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE fixed_allocations
		 SET spent = CAST(ROUND(CAST(spent AS REAL) + CAST(? AS REAL), 2) AS TEXT)
		 WHERE pay_period_id = ? AND category = ?`,
		amount.String(), periodID, category)
	if err != nil {
		return false, budget.StorageError("add to allocation spent", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, budget.StorageError("add to allocation spent", err)
	}
	return n > 0, nil
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

const entryColumns = "id, pay_period_id, entry_date, per_diem, remaining, spent_today, rollover"

func (s *Store) Entry(ctx context.Context, periodID budget.PayPeriodID, date budget.Date) (*budget.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entry(ctx, s.db, periodID, date)
}

func entry(ctx context.Context, db dbtx, periodID budget.PayPeriodID, date budget.Date) (*budget.LedgerEntry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM ledger_entries WHERE pay_period_id = ? AND entry_date = ?",
		periodID, date.String())
	if err != nil {
		return nil, budget.StorageError("query ledger entry", err)
	}
	defer rows.Close()
	return scanOneEntry(rows)
}

func (s *Store) LatestEntryBefore(ctx context.Context, periodID budget.PayPeriodID, date budget.Date) (*budget.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestEntryBefore(ctx, s.db, periodID, date)
}

func latestEntryBefore(ctx context.Context, db dbtx, periodID budget.PayPeriodID, date budget.Date) (*budget.LedgerEntry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+entryColumns+` FROM ledger_entries
		 WHERE pay_period_id = ? AND entry_date < ?
		 ORDER BY entry_date DESC LIMIT 1`,
		periodID, date.String())
	if err != nil {
		return nil, budget.StorageError("query latest ledger entry", err)
	}
	defer rows.Close()
	return scanOneEntry(rows)
}

func (s *Store) Entries(ctx context.Context, periodID budget.PayPeriodID) ([]budget.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entries(ctx, s.db, periodID)
}

func entries(ctx context.Context, db dbtx, periodID budget.PayPeriodID) ([]budget.LedgerEntry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM ledger_entries WHERE pay_period_id = ? ORDER BY entry_date ASC",
		periodID)
	if err != nil {
		return nil, budget.StorageError("query ledger entries", err)
	}
	defer rows.Close()

	var out []budget.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanOneEntry(rows *sql.Rows) (*budget.LedgerEntry, error) {
	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanEntry(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEntry(rows *sql.Rows) (budget.LedgerEntry, error) {
	var (
		e                                     budget.LedgerEntry
		entryDate                             string
		perDiem, remaining, spent, rollover   string
	)
	if err := rows.Scan(&e.ID, &e.PayPeriodID, &entryDate,
		&perDiem, &remaining, &spent, &rollover); err != nil {
		return e, budget.StorageError("scan ledger entry", err)
	}

	var err error
	if e.Date, err = budget.ParseDate(entryDate); err != nil {
		return e, budget.StorageError("parse entry date", err)
	}
	e.PerDiem = budget.MustParseMoney(perDiem)
	e.Remaining = budget.MustParseMoney(remaining)
	e.SpentToday = budget.MustParseMoney(spent)
	e.Rollover = budget.MustParseMoney(rollover)
	return e, nil
}

func (s *Store) UpsertEntry(ctx context.Context, e budget.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertEntry(ctx, s.db, e)
}

func upsertEntry(ctx context.Context, db dbtx, e budget.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries
		(id, pay_period_id, entry_date, per_diem, remaining, spent_today, rollover)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pay_period_id, entry_date) DO UPDATE SET
			per_diem = excluded.per_diem,
			remaining = excluded.remaining,
			spent_today = excluded.spent_today,
			rollover = excluded.rollover
	`
	_, err := db.ExecContext(ctx, query,
		e.ID, e.PayPeriodID, e.Date.String(),
		e.PerDiem.String(), e.Remaining.String(),
		e.SpentToday.String(), e.Rollover.String())
	if err != nil {
		return budget.StorageError("upsert ledger entry", err)
	}
	return nil
}

func (s *Store) AddSpending(ctx context.Context, periodID budget.PayPeriodID, date budget.Date, amount budget.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addSpending(ctx, s.db, periodID, date, amount)
}

// addSpending bumps spent_today and drops remaining in one statement so
// the day stays internally consistent under concurrent posts.
func addSpending(ctx context.Context, db dbtx, periodID budget.PayPeriodID, date budget.Date, amount budget.Money) error {
	res, err := db.ExecContext(ctx,
		`UPDATE ledger_entries
		 SET spent_today = CAST(ROUND(CAST(spent_today AS REAL) + CAST(? AS REAL), 2) AS TEXT),
		     remaining   = CAST(ROUND(CAST(remaining AS REAL) - CAST(? AS REAL), 2) AS TEXT)
		 WHERE pay_period_id = ? AND entry_date = ?`,
		amount.String(), amount.String(), periodID, date.String())
	if err != nil {
		return budget.StorageError("add spending", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return budget.StorageError("add spending", err)
	}
	if n == 0 {
		return fmt.Errorf("ledger entry %s/%s: %w", periodID, date, budget.ErrNotFound)
	}
	return nil
}

func (s *Store) DayTallies(ctx context.Context, periodID budget.PayPeriodID) (budget.DayTallies, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return dayTallies(ctx, s.db, periodID)
}

// dayTallies compares each day's spend against its per-diem in Go;
// the amounts are decimal strings, so SQL comparison would be textual.
func dayTallies(ctx context.Context, db dbtx, periodID budget.PayPeriodID) (budget.DayTallies, error) {
	all, err := entries(ctx, db, periodID)
	if err != nil {
		return budget.DayTallies{}, err
	}

	var t budget.DayTallies
	for _, e := range all {
		switch {
		case e.SpentToday.LessThan(e.PerDiem):
			t.Under++
		case e.SpentToday.GreaterThan(e.PerDiem):
			t.Over++
		default:
			t.OnTarget++
		}
	}
	return t, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (s *Store) CategoryByName(ctx context.Context, userID budget.UserID, name string) (*budget.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return categoryByName(ctx, s.db, userID, name)
}

func categoryByName(ctx context.Context, db dbtx, userID budget.UserID, name string) (*budget.Category, error) {
	var c budget.Category
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, name, is_fixed_cost, is_default
		 FROM categories WHERE user_id = ? AND name = ? COLLATE NOCASE`,
		userID, name,
	).Scan(&c.ID, &c.UserID, &c.Name, &c.IsFixedCost, &c.IsDefault)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, budget.StorageError("query category", err)
	}
	return &c, nil
}

func (s *Store) SaveCategory(ctx context.Context, c budget.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCategory(ctx, s.db, c)
}

func saveCategory(ctx context.Context, db dbtx, c budget.Category) error {
	query := `
		INSERT INTO categories (id, user_id, name, is_fixed_cost, is_default)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, name) DO UPDATE SET
			is_fixed_cost = excluded.is_fixed_cost
	`
	_, err := db.ExecContext(ctx, query, c.ID, c.UserID, c.Name, c.IsFixedCost, c.IsDefault)
	if err != nil {
		return budget.StorageError("save category", err)
	}
	return nil
}

func (s *Store) Categories(ctx context.Context, userID budget.UserID) ([]budget.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return categories(ctx, s.db, userID)
}

func categories(ctx context.Context, db dbtx, userID budget.UserID) ([]budget.Category, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, user_id, name, is_fixed_cost, is_default FROM categories WHERE user_id = ? ORDER BY name",
		userID)
	if err != nil {
		return nil, budget.StorageError("query categories", err)
	}
	defer rows.Close()

	var out []budget.Category
	for rows.Next() {
		var c budget.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.IsFixedCost, &c.IsDefault); err != nil {
			return nil, budget.StorageError("scan category", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const transactionColumns = `id, user_id, pay_period_id, category_id, tx_type, amount,
	is_fixed_cost, description, merchant, tx_date, created_at`

func (s *Store) SaveTransaction(ctx context.Context, tx budget.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveTransaction(ctx, s.db, tx)
}

func saveTransaction(ctx context.Context, db dbtx, tx budget.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, user_id, pay_period_id, category_id, tx_type, amount,
		 is_fixed_cost, description, merchant, tx_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, query,
		tx.ID, tx.UserID, tx.PayPeriodID, tx.CategoryID,
		tx.Type, tx.Amount.String(), tx.IsFixedCost,
		nullString(tx.Description), nullString(tx.Merchant),
		tx.Date.String(), createdAt.Format(time.RFC3339))
	if err != nil {
		return budget.StorageError("save transaction", err)
	}
	return nil
}

func (s *Store) RecentTransactions(ctx context.Context, userID budget.UserID, limit int) ([]budget.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + transactionColumns + ` FROM transactions
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`
	return queryTransactions(ctx, s.db, query, userID, limit)
}

func (s *Store) TransactionsByPeriod(ctx context.Context, periodID budget.PayPeriodID) ([]budget.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + transactionColumns + ` FROM transactions
		WHERE pay_period_id = ? ORDER BY tx_date ASC, created_at ASC`
	return queryTransactions(ctx, s.db, query, periodID)
}

func queryTransactions(ctx context.Context, db dbtx, query string, args ...any) ([]budget.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, budget.StorageError("query transactions", err)
	}
	defer rows.Close()

	var out []budget.Transaction
	for rows.Next() {
		var (
			tx                     budget.Transaction
			amount, txDate         string
			description, merchant  sql.NullString
			createdAt              string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.PayPeriodID, &tx.CategoryID,
			&tx.Type, &amount, &tx.IsFixedCost,
			&description, &merchant, &txDate, &createdAt); err != nil {
			return nil, budget.StorageError("scan transaction", err)
		}
		tx.Amount = budget.MustParseMoney(amount)
		tx.Description = description.String
		tx.Merchant = merchant.String
		if tx.Date, err = budget.ParseDate(txDate); err != nil {
			return nil, budget.StorageError("parse transaction date", err)
		}
		tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) CategoryTotals(ctx context.Context, periodID budget.PayPeriodID) ([]budget.CategoryTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return categoryTotals(ctx, s.db, periodID)
}

func categoryTotals(ctx context.Context, db dbtx, periodID budget.PayPeriodID) ([]budget.CategoryTotal, error) {
	query := `
		SELECT c.name, t.is_fixed_cost,
		       CAST(ROUND(SUM(CAST(t.amount AS REAL)), 2) AS TEXT), COUNT(*)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.pay_period_id = ?
		GROUP BY c.name, t.is_fixed_cost
		ORDER BY SUM(CAST(t.amount AS REAL)) DESC
	`
	rows, err := db.QueryContext(ctx, query, periodID)
	if err != nil {
		return nil, budget.StorageError("query category totals", err)
	}
	defer rows.Close()

	var out []budget.CategoryTotal
	for rows.Next() {
		var t budget.CategoryTotal
		var total string
		if err := rows.Scan(&t.Name, &t.IsFixedCost, &total, &t.Count); err != nil {
			return nil, budget.StorageError("scan category total", err)
		}
		t.Total = budget.MustParseMoney(total)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DiscretionaryTotal(ctx context.Context, periodID budget.PayPeriodID) (budget.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return discretionaryTotal(ctx, s.db, periodID)
}

func discretionaryTotal(ctx context.Context, db dbtx, periodID budget.PayPeriodID) (budget.Money, error) {
	var total sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT CAST(ROUND(SUM(CAST(amount AS REAL)), 2) AS TEXT)
		 FROM transactions
		 WHERE pay_period_id = ? AND is_fixed_cost = FALSE AND tx_type = ?`,
		periodID, budget.TxExpense,
	).Scan(&total)
	if err != nil {
		return budget.Zero(), budget.StorageError("query discretionary total", err)
	}
	if !total.Valid {
		return budget.Zero(), nil
	}
	return budget.MustParseMoney(total.String), nil
}

// =============================================================================
// USERS AND SETTINGS
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u budget.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUser(ctx, s.db, u)
}

func saveUser(ctx context.Context, db dbtx, u budget.User) error {
	query := `
		INSERT INTO users (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email
	`
	_, err := db.ExecContext(ctx, query, u.ID, u.Name, nullString(u.Email),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return budget.StorageError("save user", err)
	}
	return nil
}

func (s *Store) CurrentUser(ctx context.Context) (*budget.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return currentUser(ctx, s.db)
}

func currentUser(ctx context.Context, db dbtx) (*budget.User, error) {
	var u budget.User
	var email sql.NullString
	err := db.QueryRowContext(ctx,
		"SELECT id, name, email FROM users ORDER BY created_at ASC LIMIT 1",
	).Scan(&u.ID, &u.Name, &email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, budget.StorageError("query user", err)
	}
	u.Email = email.String
	return &u, nil
}

func (s *Store) Setting(ctx context.Context, userID budget.UserID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setting(ctx, s.db, userID, key)
}

func setting(ctx context.Context, db dbtx, userID budget.UserID, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE user_id = ? AND key = ?", userID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, budget.StorageError("query setting", err)
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, userID budget.UserID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setSetting(ctx, s.db, userID, key, value)
}

func setSetting(ctx context.Context, db dbtx, userID budget.UserID, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (user_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`,
		userID, key, value)
	if err != nil {
		return budget.StorageError("set setting", err)
	}
	return nil
}

func (s *Store) Settings(ctx context.Context, userID budget.UserID) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return allSettings(ctx, s.db, userID)
}

func allSettings(ctx context.Context, db dbtx, userID budget.UserID) (map[string]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT key, value FROM settings WHERE user_id = ?", userID)
	if err != nil {
		return nil, budget.StorageError("query settings", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, budget.StorageError("scan setting", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *Store) DeleteSetting(ctx context.Context, userID budget.UserID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteSetting(ctx, s.db, userID, key)
}

func deleteSetting(ctx context.Context, db dbtx, userID budget.UserID, key string) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM settings WHERE user_id = ? AND key = ?", userID, key)
	if err != nil {
		return budget.StorageError("delete setting", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (budget.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. The store
// passed to fn operates on the transaction directly and must not be
// retained after fn returns.
func (s *Store) WithTx(ctx context.Context, fn func(budget.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return budget.StorageError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return budget.StorageError("commit transaction", err)
	}
	return nil
}

// txStore runs every operation against the open sql.Tx. It takes no
// locks: WithTx already holds the store-wide write lock.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SavePayPeriod(ctx context.Context, p budget.PayPeriod) error {
	return savePayPeriod(ctx, ts.tx, p)
}

func (ts *txStore) DeactivatePayPeriods(ctx context.Context, userID budget.UserID) error {
	return deactivatePayPeriods(ctx, ts.tx, userID)
}

func (ts *txStore) PayPeriod(ctx context.Context, id budget.PayPeriodID) (*budget.PayPeriod, error) {
	return payPeriod(ctx, ts.tx, id)
}

func (ts *txStore) ActivePayPeriod(ctx context.Context, userID budget.UserID) (*budget.PayPeriod, error) {
	return activePayPeriod(ctx, ts.tx, userID)
}

func (ts *txStore) SaveAllocation(ctx context.Context, a budget.FixedAllocation) error {
	return saveAllocation(ctx, ts.tx, a)
}

func (ts *txStore) Allocations(ctx context.Context, periodID budget.PayPeriodID) ([]budget.FixedAllocation, error) {
	return allocations(ctx, ts.tx, periodID)
}

func (ts *txStore) AddToAllocationSpent(ctx context.Context, periodID budget.PayPeriodID, category string, amount budget.Money) (bool, error) {
	return addToAllocationSpent(ctx, ts.tx, periodID, category, amount)
}

func (ts *txStore) Entry(ctx context.Context, periodID budget.PayPeriodID, date budget.Date) (*budget.LedgerEntry, error) {
	return entry(ctx, ts.tx, periodID, date)
}

func (ts *txStore) LatestEntryBefore(ctx context.Context, periodID budget.PayPeriodID, date budget.Date) (*budget.LedgerEntry, error) {
	return latestEntryBefore(ctx, ts.tx, periodID, date)
}

func (ts *txStore) Entries(ctx context.Context, periodID budget.PayPeriodID) ([]budget.LedgerEntry, error) {
	return entries(ctx, ts.tx, periodID)
}

func (ts *txStore) UpsertEntry(ctx context.Context, e budget.LedgerEntry) error {
	return upsertEntry(ctx, ts.tx, e)
}

func (ts *txStore) AddSpending(ctx context.Context, periodID budget.PayPeriodID, date budget.Date, amount budget.Money) error {
	return addSpending(ctx, ts.tx, periodID, date, amount)
}

func (ts *txStore) DayTallies(ctx context.Context, periodID budget.PayPeriodID) (budget.DayTallies, error) {
	return dayTallies(ctx, ts.tx, periodID)
}

func (ts *txStore) CategoryByName(ctx context.Context, userID budget.UserID, name string) (*budget.Category, error) {
	return categoryByName(ctx, ts.tx, userID, name)
}

func (ts *txStore) SaveCategory(ctx context.Context, c budget.Category) error {
	return saveCategory(ctx, ts.tx, c)
}

func (ts *txStore) Categories(ctx context.Context, userID budget.UserID) ([]budget.Category, error) {
	return categories(ctx, ts.tx, userID)
}

func (ts *txStore) SaveTransaction(ctx context.Context, tx budget.Transaction) error {
	return saveTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) RecentTransactions(ctx context.Context, userID budget.UserID, limit int) ([]budget.Transaction, error) {
	query := "SELECT " + transactionColumns + ` FROM transactions
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`
	return queryTransactions(ctx, ts.tx, query, userID, limit)
}

func (ts *txStore) TransactionsByPeriod(ctx context.Context, periodID budget.PayPeriodID) ([]budget.Transaction, error) {
	query := "SELECT " + transactionColumns + ` FROM transactions
		WHERE pay_period_id = ? ORDER BY tx_date ASC, created_at ASC`
	return queryTransactions(ctx, ts.tx, query, periodID)
}

func (ts *txStore) CategoryTotals(ctx context.Context, periodID budget.PayPeriodID) ([]budget.CategoryTotal, error) {
	return categoryTotals(ctx, ts.tx, periodID)
}

func (ts *txStore) DiscretionaryTotal(ctx context.Context, periodID budget.PayPeriodID) (budget.Money, error) {
	return discretionaryTotal(ctx, ts.tx, periodID)
}

func (ts *txStore) SaveUser(ctx context.Context, u budget.User) error {
	return saveUser(ctx, ts.tx, u)
}

func (ts *txStore) CurrentUser(ctx context.Context) (*budget.User, error) {
	return currentUser(ctx, ts.tx)
}

func (ts *txStore) Setting(ctx context.Context, userID budget.UserID, key string) (string, bool, error) {
	return setting(ctx, ts.tx, userID, key)
}

func (ts *txStore) SetSetting(ctx context.Context, userID budget.UserID, key, value string) error {
	return setSetting(ctx, ts.tx, userID, key, value)
}

func (ts *txStore) Settings(ctx context.Context, userID budget.UserID) (map[string]string, error) {
	return allSettings(ctx, ts.tx, userID)
}

func (ts *txStore) DeleteSetting(ctx context.Context, userID budget.UserID, key string) error {
	return deleteSetting(ctx, ts.tx, userID, key)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"transactions", "ledger_entries", "fixed_allocations",
		"pay_periods", "categories", "settings", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return budget.StorageError("reset "+table, err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
