// Package manager drives every configured output through one cycle at a
// time.
//
// Each output has its own Writer. A cycle hands the same result set to all
// writers concurrently; outputs never share a database, so they never
// contend for a file. A failing output does not stop the others.
package manager

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/logging"
	"github.com/xtxerr/rrdsink/internal/metrics"
	"github.com/xtxerr/rrdsink/internal/rrd/writer"
	"github.com/xtxerr/rrdsink/internal/sample"
)

var log = logging.Component("manager")

// Manager owns the writers of all outputs.
//
// Cycle must not be called concurrently with itself; the scheduler
// guarantees this.
type Manager struct {
	writers []*writer.Writer
}

// New creates one writer per output. m may be nil.
func New(cfgs []writer.Config, m *metrics.Metrics) (*Manager, error) {
	mgr := &Manager{}
	for _, cfg := range cfgs {
		w, err := writer.New(cfg, writer.WithMetrics(m.Output(cfg.OutputName())))
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", cfg.OutputName(), err)
		}
		mgr.writers = append(mgr.writers, w)
	}
	return mgr, nil
}

// Writers returns the writers in configuration order.
func (m *Manager) Writers() []*writer.Writer {
	return m.writers
}

// CycleResult summarizes one cycle over all outputs.
type CycleResult struct {
	ID       string
	Duration time.Duration

	// Reports holds one entry per output, in configuration order.
	Reports []*writer.Report

	// Failed counts outputs that returned an error.
	Failed int
}

// Cycle writes results to every output. The returned error joins the
// errors of all failed outputs; the result is always non-nil.
func (m *Manager) Cycle(ctx context.Context, results []sample.Result) (*CycleResult, error) {
	start := time.Now()

	id := uuid.NewString()
	ctx = logging.ContextWithCycleID(ctx, id)
	clog := logging.FromContext(ctx, log)

	res := &CycleResult{
		ID:      id,
		Reports: make([]*writer.Report, len(m.writers)),
	}
	errs := make([]error, len(m.writers))

	// Plain Group: one failing output must not cancel the others.
	var g errgroup.Group
	for i, w := range m.writers {
		g.Go(func() error {
			report, err := w.Write(ctx, results)
			res.Reports[i] = report
			if err != nil {
				errs[i] = fmt.Errorf("output %s: %w", w.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err == nil {
			continue
		}
		res.Failed++
		if errors.IsFatal(err) {
			clog.Debug("output skipped", "error", err)
		} else {
			clog.Error("output write failed", "error", err, "kind", errors.Kind(err))
		}
	}

	res.Duration = time.Since(start)
	clog.Info("cycle complete",
		"outputs", len(m.writers),
		"failed", res.Failed,
		"results", len(results),
		"duration", res.Duration)

	return res, errors.Join(errs...)
}

// OutputStats pairs an output name with its writer statistics.
type OutputStats struct {
	Name  string
	State writer.State
	Stats writer.StatsSnapshot
}

// Stats returns statistics for every output, sorted by name. It must not
// be called while a cycle runs.
func (m *Manager) Stats() []OutputStats {
	out := make([]OutputStats, 0, len(m.writers))
	for _, w := range m.writers {
		out = append(out, OutputStats{Name: w.Name(), State: w.State(), Stats: w.Stats()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
