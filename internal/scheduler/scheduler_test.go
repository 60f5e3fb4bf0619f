package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	rrdtesting "github.com/xtxerr/rrdsink/internal/testing"
)

func TestSchedulerRunsCycles(t *testing.T) {
	sched := New(&Config{
		Interval:       20 * time.Millisecond,
		DrainTimeout:   time.Second,
		RunImmediately: true,
	})

	var cycles atomic.Int32
	sched.SetCycleFunc(func(ctx context.Context) {
		cycles.Add(1)
	})

	sched.Start()
	err := rrdtesting.Eventually(2*time.Second, 5*time.Millisecond, func() bool {
		return cycles.Load() >= 3
	})
	sched.Stop()
	if err != nil {
		t.Fatalf("expected at least 3 cycles: %v", err)
	}

	stopped := cycles.Load()
	time.Sleep(50 * time.Millisecond)
	if n := cycles.Load(); n != stopped {
		t.Errorf("cycles ran after Stop: %d -> %d", stopped, n)
	}
}

func TestSchedulerNeverOverlaps(t *testing.T) {
	sched := New(&Config{
		Interval:       10 * time.Millisecond,
		DrainTimeout:   time.Second,
		RunImmediately: true,
	})

	var active, maxActive atomic.Int32
	sched.SetCycleFunc(func(ctx context.Context) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(35 * time.Millisecond)
		active.Add(-1)
	})

	sched.Start()
	time.Sleep(150 * time.Millisecond)
	sched.Stop()

	if m := maxActive.Load(); m != 1 {
		t.Errorf("expected at most 1 concurrent cycle, got %d", m)
	}
	if s := sched.Stats(); s.CyclesSkipped == 0 {
		t.Errorf("expected skipped ticks, got %+v", s)
	}
}

func TestSchedulerDrainTimeoutCancelsCycle(t *testing.T) {
	sched := New(&Config{
		Interval:       time.Hour,
		DrainTimeout:   20 * time.Millisecond,
		RunImmediately: true,
	})

	started := make(chan struct{})
	var cancelled atomic.Bool
	sched.SetCycleFunc(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
	})

	sched.Start()
	<-started

	err := rrdtesting.WithTimeout(2*time.Second, func() error {
		sched.Stop()
		return nil
	})
	if err != nil {
		t.Fatalf("Stop did not return after drain timeout: %v", err)
	}
	if !cancelled.Load() {
		t.Error("cycle context was not cancelled")
	}
}

func TestSchedulerStopIdempotent(t *testing.T) {
	sched := New(nil)
	sched.Start()
	sched.Stop()
	sched.Stop()
}
