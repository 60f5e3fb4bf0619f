package writer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// sketchAccuracy is the relative accuracy of the latency percentiles.
const sketchAccuracy = 0.01

// Stats tracks runtime statistics for one output.
//
// Stats is safe for concurrent use. Counters use atomic operations, the
// latency sketch is protected by a mutex.
type Stats struct {
	CyclesTotal    atomic.Int64
	CyclesFailed   atomic.Int64
	NothingToWrite atomic.Int64
	Updates        atomic.Int64
	Creates        atomic.Int64
	Dropped        atomic.Int64

	// Run timing - protected by mu
	mu        sync.Mutex
	runs      int64
	runErrors int64
	sketch    *ddsketch.DDSketch
}

// NewStats creates empty statistics.
func NewStats() *Stats {
	s := &Stats{}
	// NewDefaultDDSketch only fails for accuracies outside (0, 1).
	s.sketch, _ = ddsketch.NewDefaultDDSketch(sketchAccuracy)
	return s
}

// ObserveRun records one rrdtool invocation.
func (s *Stats) ObserveRun(op string, d time.Duration, err error) {
	switch {
	case err != nil:
	case op == "create":
		s.Creates.Add(1)
	case op == "update":
		s.Updates.Add(1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs++
	if err != nil {
		s.runErrors++
	}
	if s.sketch != nil {
		_ = s.sketch.Add(float64(d) / float64(time.Millisecond))
	}
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	CyclesTotal    int64
	CyclesFailed   int64
	NothingToWrite int64
	Updates        int64
	Creates        int64
	Dropped        int64
	Runs           int64
	RunErrors      int64

	// Run latency percentiles in milliseconds, zero before the first run.
	P50Ms float64
	P95Ms float64
	P99Ms float64
}

// Snapshot returns the current statistics.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		CyclesTotal:    s.CyclesTotal.Load(),
		CyclesFailed:   s.CyclesFailed.Load(),
		NothingToWrite: s.NothingToWrite.Load(),
		Updates:        s.Updates.Load(),
		Creates:        s.Creates.Load(),
		Dropped:        s.Dropped.Load(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Runs = s.runs
	snap.RunErrors = s.runErrors
	if s.sketch != nil && !s.sketch.IsEmpty() {
		snap.P50Ms, _ = s.sketch.GetValueAtQuantile(0.50)
		snap.P95Ms, _ = s.sketch.GetValueAtQuantile(0.95)
		snap.P99Ms, _ = s.sketch.GetValueAtQuantile(0.99)
	}

	return snap
}
