// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spendsend/budget-engine/budget"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	users        []budget.User
	periods      map[budget.PayPeriodID]budget.PayPeriod
	allocations  map[budget.PayPeriodID][]budget.FixedAllocation
	entries      map[entryKey]budget.LedgerEntry
	categories   map[budget.UserID][]budget.Category
	transactions []budget.Transaction
	settings     map[settingKey]string

	// txMu serializes WithTx blocks. The memory store offers atomicity by
	// serialization, not rollback; tests that need rollback semantics use
	// the sqlite store.
	txMu sync.Mutex
}

type entryKey struct {
	PeriodID budget.PayPeriodID
	Date     string
}

type settingKey struct {
	UserID budget.UserID
	Key    string
}

func NewMemory() *Memory {
	return &Memory{
		periods:     make(map[budget.PayPeriodID]budget.PayPeriod),
		allocations: make(map[budget.PayPeriodID][]budget.FixedAllocation),
		entries:     make(map[entryKey]budget.LedgerEntry),
		categories:  make(map[budget.UserID][]budget.Category),
		settings:    make(map[settingKey]string),
	}
}

// WithTx runs fn against the store itself. Serialized, not transactional:
// a failing fn leaves earlier writes in place.
func (m *Memory) WithTx(ctx context.Context, fn func(budget.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

// =============================================================================
// PAY PERIODS
// =============================================================================

func (m *Memory) SavePayPeriod(_ context.Context, p budget.PayPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods[p.ID] = p
	return nil
}

func (m *Memory) DeactivatePayPeriods(_ context.Context, userID budget.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.periods {
		if p.UserID == userID && p.Active {
			p.Active = false
			m.periods[id] = p
		}
	}
	return nil
}

func (m *Memory) PayPeriod(_ context.Context, id budget.PayPeriodID) (*budget.PayPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.periods[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) ActivePayPeriod(_ context.Context, userID budget.UserID) (*budget.PayPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *budget.PayPeriod
	for _, p := range m.periods {
		if p.UserID != userID || !p.Active {
			continue
		}
		p := p
		if latest == nil || p.StartDate.After(latest.StartDate) {
			latest = &p
		}
	}
	return latest, nil
}

// =============================================================================
// FIXED ALLOCATIONS
// =============================================================================

func (m *Memory) SaveAllocation(_ context.Context, a budget.FixedAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[a.PayPeriodID] = append(m.allocations[a.PayPeriodID], a)
	return nil
}

func (m *Memory) Allocations(_ context.Context, periodID budget.PayPeriodID) ([]budget.FixedAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]budget.FixedAllocation, len(m.allocations[periodID]))
	copy(out, m.allocations[periodID])
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (m *Memory) AddToAllocationSpent(_ context.Context, periodID budget.PayPeriodID, category string, amount budget.Money) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	allocs := m.allocations[periodID]
	for i := range allocs {
		if strings.EqualFold(allocs[i].Category, category) {
			allocs[i].Spent = allocs[i].Spent.Add(amount)
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

func (m *Memory) Entry(_ context.Context, periodID budget.PayPeriodID, date budget.Date) (*budget.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[entryKey{periodID, date.String()}]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *Memory) LatestEntryBefore(_ context.Context, periodID budget.PayPeriodID, date budget.Date) (*budget.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *budget.LedgerEntry
	for k, e := range m.entries {
		if k.PeriodID != periodID || !e.Date.Before(date) {
			continue
		}
		e := e
		if latest == nil || e.Date.After(latest.Date) {
			latest = &e
		}
	}
	return latest, nil
}

func (m *Memory) Entries(_ context.Context, periodID budget.PayPeriodID) ([]budget.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []budget.LedgerEntry
	for k, e := range m.entries {
		if k.PeriodID == periodID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) UpsertEntry(_ context.Context, e budget.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := entryKey{e.PayPeriodID, e.Date.String()}
	if existing, ok := m.entries[k]; ok {
		e.ID = existing.ID
	}
	m.entries[k] = e
	return nil
}

func (m *Memory) AddSpending(_ context.Context, periodID budget.PayPeriodID, date budget.Date, amount budget.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := entryKey{periodID, date.String()}
	e, ok := m.entries[k]
	if !ok {
		return budget.ErrNotFound
	}
	e.SpentToday = e.SpentToday.Add(amount)
	e.Remaining = e.Remaining.Sub(amount)
	m.entries[k] = e
	return nil
}

func (m *Memory) DayTallies(_ context.Context, periodID budget.PayPeriodID) (budget.DayTallies, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var t budget.DayTallies
	for k, e := range m.entries {
		if k.PeriodID != periodID {
			continue
		}
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

func (m *Memory) CategoryByName(_ context.Context, userID budget.UserID, name string) (*budget.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.categories[userID] {
		if strings.EqualFold(c.Name, name) {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveCategory(_ context.Context, c budget.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.UserID] = append(m.categories[c.UserID], c)
	return nil
}

func (m *Memory) Categories(_ context.Context, userID budget.UserID) ([]budget.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]budget.Category, len(m.categories[userID]))
	copy(out, m.categories[userID])
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) SaveTransaction(_ context.Context, tx budget.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *Memory) RecentTransactions(_ context.Context, userID budget.UserID, limit int) ([]budget.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []budget.Transaction
	for i := len(m.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.transactions[i].UserID == userID {
			out = append(out, m.transactions[i])
		}
	}
	return out, nil
}

func (m *Memory) TransactionsByPeriod(_ context.Context, periodID budget.PayPeriodID) ([]budget.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []budget.Transaction
	for _, tx := range m.transactions {
		if tx.PayPeriodID == periodID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *Memory) CategoryTotals(_ context.Context, periodID budget.PayPeriodID) ([]budget.CategoryTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byCategory := make(map[budget.CategoryID]*budget.CategoryTotal)
	for _, tx := range m.transactions {
		if tx.PayPeriodID != periodID {
			continue
		}
		t, ok := byCategory[tx.CategoryID]
		if !ok {
			t = &budget.CategoryTotal{
				Name:        m.categoryName(tx.UserID, tx.CategoryID),
				IsFixedCost: tx.IsFixedCost,
			}
			byCategory[tx.CategoryID] = t
		}
		t.Total = t.Total.Add(tx.Amount)
		t.Count++
	}

	out := make([]budget.CategoryTotal, 0, len(byCategory))
	for _, t := range byCategory {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total.GreaterThan(out[j].Total) })
	return out, nil
}

func (m *Memory) categoryName(userID budget.UserID, id budget.CategoryID) string {
	for _, c := range m.categories[userID] {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

func (m *Memory) DiscretionaryTotal(_ context.Context, periodID budget.PayPeriodID) (budget.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := budget.Zero()
	for _, tx := range m.transactions {
		if tx.PayPeriodID == periodID && !tx.IsFixedCost && tx.Type == budget.TxExpense {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

// =============================================================================
// USERS AND SETTINGS
// =============================================================================

func (m *Memory) SaveUser(_ context.Context, u budget.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == u.ID {
			m.users[i] = u
			return nil
		}
	}
	m.users = append(m.users, u)
	return nil
}

func (m *Memory) CurrentUser(_ context.Context) (*budget.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.users) == 0 {
		return nil, nil
	}
	u := m.users[0]
	return &u, nil
}

func (m *Memory) Setting(_ context.Context, userID budget.UserID, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[settingKey{userID, key}]
	return v, ok, nil
}

func (m *Memory) SetSetting(_ context.Context, userID budget.UserID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[settingKey{userID, key}] = value
	return nil
}

func (m *Memory) Settings(_ context.Context, userID budget.UserID) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string)
	for k, v := range m.settings {
		if k.UserID == userID {
			out[k.Key] = v
		}
	}
	return out, nil
}

func (m *Memory) DeleteSetting(_ context.Context, userID budget.UserID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.settings, settingKey{userID, key})
	return nil
}
