/*
scheduler.go - Day rollover scheduler

PURPOSE:
  Periodically materializes today's ledger entry for the active pay
  period so the day turns over at midnight even when no transaction or
  status request arrives. Without it the rollover still happens lazily
  on the next interaction; the scheduler just keeps the ledger current.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick resolves the bootstrapped user's active period and calls
    the engine's idempotent ensure-today operation
  - Skips quietly when no user or no active period exists

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRolloverScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - budget/engine.go: EnsureTodayEntry, the operation each tick runs
  - handlers.go: The request paths that trigger the same rollover lazily
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// RolloverScheduler keeps today's ledger entry materialized.
type RolloverScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRolloverScheduler creates a new scheduler.
func NewRolloverScheduler(handler *Handler) *RolloverScheduler {
	return &RolloverScheduler{
		Handler:       handler,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *RolloverScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *RolloverScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RolloverScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndRoll()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndRoll()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RolloverScheduler) checkAndRoll() {
	ctx := context.Background()

	user, err := rs.Handler.Store.CurrentUser(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error loading user: %v", err)
		return
	}
	if user == nil {
		return
	}

	period, err := rs.Handler.Store.ActivePayPeriod(ctx, user.ID)
	if err != nil {
		log.Printf("[Scheduler] Error loading active period: %v", err)
		return
	}
	if period == nil {
		return
	}

	entry, err := rs.Handler.Engine.EnsureTodayEntry(ctx, period.ID, period.PerDiemRate)
	if err != nil {
		log.Printf("[Scheduler] Error ensuring today's entry: %v", err)
		return
	}
	if entry.SpentToday.IsZero() && !entry.Rollover.IsZero() {
		log.Printf("[Scheduler] Day rolled over: %s carries %s into %s",
			period.ID, entry.Rollover, entry.Date)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *RolloverScheduler) RunNow() {
	rs.checkAndRoll()
}

// NextRunTime returns when the next scheduled check will occur.
func (rs *RolloverScheduler) NextRunTime() time.Time {
	return time.Now().Add(rs.CheckInterval)
}
