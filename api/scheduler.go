/*
scheduler.go - Automated trash retention scheduler

PURPOSE:
  Periodically purges scenarios that have been in the trash longer than the
  retention window, so the trash does not grow without bound.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each check calls Service.Purge with the service clock
  - Purging is idempotent; a check with nothing to purge is a no-op

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRetentionScheduler(service, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: PurgeTrash endpoint (manual purge)
  - scenario/service.go: Purge
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/carbon-engine/scenario"
	"go.uber.org/zap"
)

// RetentionScheduler purges expired trash on a timer.
type RetentionScheduler struct {
	Service       *scenario.Service
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRetentionScheduler creates a new scheduler.
func NewRetentionScheduler(svc *scenario.Service, logger *zap.Logger) *RetentionScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionScheduler{
		Service:       svc,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler. Calling Start on a running scheduler does
// nothing.
func (rs *RetentionScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("retention scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info("retention scheduler started",
		zap.Duration("check_interval", rs.CheckInterval),
		zap.Duration("retention", rs.Service.Retention()))
}

// Stop stops the scheduler and waits for a running check to finish.
func (rs *RetentionScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info("retention scheduler stopped")
	}
}

func (rs *RetentionScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndPurge()

	for {
		select {
		case <-ticker.C:
			rs.checkAndPurge()
		case <-stop:
			return
		}
	}
}

func (rs *RetentionScheduler) checkAndPurge() []scenario.ID {
	ctx := context.Background()
	now := rs.Service.Now()

	rs.Logger.Debug("checking trash retention", zap.Time("now", now))

	purged, err := rs.Service.Purge(ctx, now)
	if err != nil {
		rs.Logger.Error("retention purge failed", zap.Error(err))
		return nil
	}
	return purged
}

// RunNow triggers an immediate check (for testing/admin) and returns the
// purged scenario IDs.
func (rs *RetentionScheduler) RunNow() []scenario.ID {
	return rs.checkAndPurge()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *RetentionScheduler) GetNextRunTime() time.Time {
	return rs.Service.Now().Add(rs.CheckInterval)
}
