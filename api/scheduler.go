/*
scheduler.go - Daily sweep scheduler

PURPOSE:
  Runs the two maintenance sweeps once per day at configured hours:
  lease expirations at ExpirationHour, overdue payments at OverdueHour.

DESIGN:
  - Background goroutine woken by a short ticker
  - A sweep fires the first tick at or after its hour, once per day;
    firing late (after downtime) is fine because sweeps are idempotent
  - Each job failure is logged, never stops the scheduler

CONFIGURATION:
  - ExpirationHour: Hour of day for the expiration sweep (default: 2)
  - OverdueHour:    Hour of day for the overdue sweep (default: 3)
  - CheckInterval:  Tick granularity (default: 1 minute)
  - Enabled:        Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSweepScheduler(engine)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Manual sweep trigger endpoints
  - lifecycle/sweep.go: The sweep implementations
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lodgia/lease-engine/dates"
	"github.com/lodgia/lease-engine/lifecycle"
)

// SweepScheduler runs the daily expiration and overdue sweeps.
type SweepScheduler struct {
	Engine         *lifecycle.Orchestrator
	ExpirationHour int
	OverdueHour    int
	CheckInterval  time.Duration
	Enabled        bool

	lastExpiration time.Time
	lastOverdue    time.Time

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweepScheduler creates a scheduler with the default daily hours.
func NewSweepScheduler(engine *lifecycle.Orchestrator) *SweepScheduler {
	return &SweepScheduler{
		Engine:         engine,
		ExpirationHour: 2,
		OverdueHour:    3,
		CheckInterval:  time.Minute,
		Enabled:        true,
		stop:           make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started: expirations at %02d:00, overdue at %02d:00",
		ss.ExpirationHour, ss.OverdueHour)
}

// Stop stops the scheduler.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SweepScheduler) run() {
	defer ss.wg.Done()

	for {
		select {
		case <-ss.ticker.C:
			ss.check()
		case <-ss.stop:
			return
		}
	}
}

// check fires each due job at most once per day. Fire hours and the
// once-per-day bucket both read the UTC clock, so a zoned Engine.Now
// cannot fire in the wrong hour.
func (ss *SweepScheduler) check() {
	now := ss.Engine.Now().UTC()
	today := dates.Day(now)

	if now.Hour() >= ss.ExpirationHour && !dates.SameDay(ss.lastExpiration, today) {
		ss.lastExpiration = today
		ss.runJob("expiration", func(ctx context.Context) error {
			_, err := ss.Engine.SweepExpirations(ctx)
			return err
		})
	}

	if now.Hour() >= ss.OverdueHour && !dates.SameDay(ss.lastOverdue, today) {
		ss.lastOverdue = today
		ss.runJob("overdue", func(ctx context.Context) error {
			_, err := ss.Engine.SweepOverdue(ctx)
			return err
		})
	}
}

func (ss *SweepScheduler) runJob(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := job(ctx); err != nil {
		log.Printf("[Scheduler] %s sweep failed: %v", name, err)
	}
}

// RunNow triggers both sweeps immediately (for testing/admin).
func (ss *SweepScheduler) RunNow() {
	ss.runJob("expiration", func(ctx context.Context) error {
		_, err := ss.Engine.SweepExpirations(ctx)
		return err
	})
	ss.runJob("overdue", func(ctx context.Context) error {
		_, err := ss.Engine.SweepOverdue(ctx)
		return err
	})
}
