// Package scheduler ticks write cycles at a fixed interval.
//
// One cycle runs at a time. A tick that arrives while the previous cycle
// is still writing is skipped and counted, so a slow rrdtool never piles
// up concurrent writers on the same databases.
//
// Key features:
//   - Optional immediate first cycle
//   - Overlap protection with skipped-tick accounting
//   - Graceful shutdown with drain timeout
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/rrdsink/config"
	"github.com/xtxerr/rrdsink/internal/logging"
)

var log = logging.Component("scheduler")

// =============================================================================
// Scheduler Configuration
// =============================================================================

// Config holds scheduler configuration.
type Config struct {
	// Interval between cycle starts.
	Interval time.Duration

	// DrainTimeout is how long Stop waits for an in-flight cycle before
	// cancelling it.
	DrainTimeout time.Duration

	// RunImmediately starts the first cycle on Start instead of after
	// one interval.
	RunImmediately bool
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval:       config.DefaultCycleInterval,
		DrainTimeout:   time.Duration(config.DefaultDrainTimeoutSec) * time.Second,
		RunImmediately: true,
	}
}

// CycleFunc runs one cycle. ctx is cancelled when shutdown gives up
// waiting for it.
type CycleFunc func(ctx context.Context)

// =============================================================================
// Scheduler
// =============================================================================

// Scheduler runs a CycleFunc periodically.
//
// Scheduler is safe for concurrent use.
type Scheduler struct {
	cycleFunc CycleFunc

	interval       time.Duration
	drainTimeout   time.Duration
	runImmediately bool

	ctx    context.Context
	cancel context.CancelFunc

	shutdown chan struct{}
	stopOnce sync.Once
	loopWG   sync.WaitGroup
	cycleWG  sync.WaitGroup
	inflight atomic.Bool

	// Metrics
	cyclesStarted atomic.Int64
	cyclesSkipped atomic.Int64
}

// New creates a new Scheduler.
func New(cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = config.DefaultCycleInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		interval:       interval,
		drainTimeout:   cfg.DrainTimeout,
		runImmediately: cfg.RunImmediately,
		ctx:            ctx,
		cancel:         cancel,
		shutdown:       make(chan struct{}),
	}
}

// SetCycleFunc sets the function executed every cycle. It must be called
// before Start.
func (s *Scheduler) SetCycleFunc(fn CycleFunc) {
	s.cycleFunc = fn
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start starts the scheduler loop.
func (s *Scheduler) Start() {
	s.loopWG.Add(1)
	go s.loop()

	log.Info("scheduler started", "interval", s.interval)
}

// Stop stops the scheduler gracefully, waiting for the in-flight cycle.
// Uses the configured drain timeout.
func (s *Scheduler) Stop() {
	s.StopWithContext(context.Background())
}

// StopWithContext stops the scheduler with a custom context.
// The drain timeout from config is still respected as a maximum.
// Calling it more than once is a no-op.
func (s *Scheduler) StopWithContext(ctx context.Context) {
	s.stopOnce.Do(func() {
		log.Info("scheduler stopping")

		// Signal shutdown (no new cycles start after this)
		close(s.shutdown)
		s.loopWG.Wait()

		drainCtx, cancel := context.WithTimeout(ctx, s.drainTimeout)
		defer cancel()

		done := make(chan struct{})
		go func() {
			s.cycleWG.Wait()
			close(done)
		}()

		select {
		case <-done:
			log.Info("scheduler stopped gracefully")
		case <-drainCtx.Done():
			log.Warn("scheduler drain timeout, cancelling cycle")
			s.cancel()
			<-done
		}
		s.cancel()
	})
}

// =============================================================================
// Loop
// =============================================================================

func (s *Scheduler) loop() {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.runImmediately {
		s.trigger()
	}

	for {
		select {
		case <-ticker.C:
			s.trigger()
		case <-s.shutdown:
			return
		}
	}
}

// trigger starts a cycle unless one is still running.
func (s *Scheduler) trigger() {
	if s.cycleFunc == nil {
		return
	}
	if !s.inflight.CompareAndSwap(false, true) {
		n := s.cyclesSkipped.Add(1)
		log.Warn("previous cycle still running, tick skipped", "skipped_total", n)
		return
	}

	s.cyclesStarted.Add(1)
	s.cycleWG.Add(1)
	go func() {
		defer s.cycleWG.Done()
		defer s.inflight.Store(false)
		s.cycleFunc(s.ctx)
	}()
}

// =============================================================================
// Stats
// =============================================================================

// Stats contains scheduler statistics.
type Stats struct {
	CyclesStarted int64
	CyclesSkipped int64
	Running       bool
}

// Stats returns current scheduler statistics.
func (s *Scheduler) Stats() Stats {
	return Stats{
		CyclesStarted: s.cyclesStarted.Load(),
		CyclesSkipped: s.cyclesSkipped.Load(),
		Running:       s.inflight.Load(),
	}
}
