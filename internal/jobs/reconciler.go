package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"tallyboard/internal/service"
)

// Reconciler periodically re-runs the deduplication pass. The mandatory pass
// runs once at startup before the server accepts requests; this job covers
// long-running deployments where other writers share the store. The pass is
// idempotent, so an extra run can only repair, never corrupt.
type Reconciler struct {
	tally   *service.TallyService
	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	// Metrics
	passes    atomic.Int64
	errors    atomic.Int64
	startTime time.Time

	interval time.Duration
}

// ReconcilerConfig holds configuration for the reconciler
type ReconcilerConfig struct {
	Interval time.Duration // Default: 5m
}

// NewReconciler creates a new reconciler
func NewReconciler(tally *service.TallyService, config ReconcilerConfig) *Reconciler {
	if config.Interval == 0 {
		config.Interval = 5 * time.Minute
	}

	return &Reconciler{
		tally:    tally,
		stopCh:   make(chan struct{}),
		interval: config.Interval,
	}
}

// Start begins the reconciliation loop
func (r *Reconciler) Start(ctx context.Context) error {
	if r.running.Load() {
		return fmt.Errorf("reconciler already running")
	}

	r.startTime = time.Now()
	r.running.Store(true)

	log.Printf("Reconciler started (interval: %v)", r.interval)

	r.wg.Add(1)
	go r.loop(ctx)

	return nil
}

// Stop gracefully stops the reconciler
func (r *Reconciler) Stop() {
	if !r.running.Load() {
		return
	}

	r.running.Store(false)
	close(r.stopCh)
	r.wg.Wait()

	log.Printf("Reconciler stopped (passes: %d, errors: %d, uptime: %v)",
		r.passes.Load(), r.errors.Load(), time.Since(r.startTime).Round(time.Second))
}

// IsRunning returns whether the reconciler is currently running
func (r *Reconciler) IsRunning() bool {
	return r.running.Load()
}

// GetMetrics returns current reconciler metrics
func (r *Reconciler) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"running": r.running.Load(),
		"passes":  r.passes.Load(),
		"errors":  r.errors.Load(),
		"uptime":  time.Since(r.startTime).String(),
	}
}

func (r *Reconciler) loop(ctx context.Context) {
	defer r.wg.Done()

	r.ticker = time.NewTicker(r.interval)
	defer r.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-r.stopCh:
			return

		case <-r.ticker.C:
			r.passes.Add(1)
			if _, err := r.tally.Deduplicate(ctx); err != nil {
				r.errors.Add(1)
				log.Printf("Reconciliation pass failed: %v", err)
			}
		}
	}
}
