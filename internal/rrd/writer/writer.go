// Package writer persists one cycle of samples into one rrd database.
//
// A Writer owns one output: a database file, the template it is created
// from and the rrdtool binary that manipulates it. On first use it loads
// the template and creates the database if the file does not exist; every
// cycle it resolves samples to declared data sources and issues a single
// update.
//
// State machine:
//
//	Uninitialized ──load──▶ SchemaLoaded ──create/exists──▶ DatabaseEnsured ──update──▶ Ready
//	      │                      │
//	      └──────── failure ─────┴──────▶ Disabled (for the rest of the run)
//
// Update failures are returned per cycle and never disable the writer.
//
// A Writer is not safe for concurrent use. Callers must not write to the
// same database from two goroutines; rrdtool does not lock its files.
package writer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/logging"
	"github.com/xtxerr/rrdsink/internal/metrics"
	"github.com/xtxerr/rrdsink/internal/rrd/command"
	"github.com/xtxerr/rrdsink/internal/rrd/dsname"
	"github.com/xtxerr/rrdsink/internal/rrd/runner"
	"github.com/xtxerr/rrdsink/internal/rrd/template"
	"github.com/xtxerr/rrdsink/internal/sample"
)

var log = logging.Component("writer")

// =============================================================================
// State
// =============================================================================

// State is the lifecycle position of a Writer.
type State int

const (
	StateUninitialized State = iota
	StateSchemaLoaded
	StateDatabaseEnsured
	StateReady
	StateDisabled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSchemaLoaded:
		return "schema_loaded"
	case StateDatabaseEnsured:
		return "database_ensured"
	case StateReady:
		return "ready"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// =============================================================================
// Writer
// =============================================================================

// DeriveFunc maps sample coordinates to a data source name.
type DeriveFunc func(seriesGroup, metricName, subKey string) string

// Writer writes cycles of samples to one rrd database.
type Writer struct {
	cfg        Config
	outputPath string

	runner  *runner.Runner
	derive  DeriveFunc
	metrics *metrics.Output
	stats   *Stats

	state   State
	tmpl    *template.Template
	names   map[string]struct{}
	initErr error
}

// Option configures a Writer.
type Option func(*Writer)

// WithMetrics records cycle and invocation metrics to m.
func WithMetrics(m *metrics.Output) Option {
	return func(w *Writer) { w.metrics = m }
}

// WithDeriver replaces dsname.Derive.
func WithDeriver(fn DeriveFunc) Option {
	return func(w *Writer) { w.derive = fn }
}

// New creates a Writer for cfg. No file is read or created before the
// first Write.
func New(cfg Config, opts ...Option) (*Writer, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	path, err := canonicalPath(cfg.OutputFile)
	if err != nil {
		return nil, errors.Wrapf(err, "output %s", cfg.Name)
	}

	w := &Writer{
		cfg:        cfg,
		outputPath: path,
		derive:     dsname.Derive,
		stats:      NewStats(),
	}
	for _, opt := range opts {
		opt(w)
	}

	observers := observerList{w.stats}
	if w.metrics != nil {
		observers = append(observers, w.metrics)
	}
	w.runner = runner.New(
		runner.WithTimeout(cfg.Timeout),
		runner.WithObserver(observers),
	)

	return w, nil
}

// Name returns the output name.
func (w *Writer) Name() string { return w.cfg.Name }

// OutputPath returns the canonical database path.
func (w *Writer) OutputPath() string { return w.outputPath }

// State returns the lifecycle state.
func (w *Writer) State() State { return w.state }

// Template returns the loaded template, nil before the first Write.
func (w *Writer) Template() *template.Template { return w.tmpl }

// Stats returns a snapshot of the writer statistics.
func (w *Writer) Stats() StatsSnapshot { return w.stats.Snapshot() }

// Report describes the outcome of one Write.
type Report struct {
	Output  string
	CycleID string

	// Created is set when this call created the database.
	Created bool

	// Identifiers written, in update order.
	Identifiers []string

	// Dropped counts numeric samples with undeclared identifiers.
	Dropped int

	// NothingToWrite is set when no sample matched the template.
	NothingToWrite bool
}

// Write persists one cycle of results.
//
// A failure to load the template or create the database disables the
// writer; that error and every later call return an error matching
// errors.ErrOutputDisabled. Other failures only affect this cycle.
func (w *Writer) Write(ctx context.Context, results []sample.Result) (*Report, error) {
	ctx = logging.ContextWithOutput(ctx, w.cfg.Name)
	clog := logging.FromContext(ctx, log)

	report := &Report{
		Output:  w.cfg.Name,
		CycleID: logging.CycleID(ctx),
	}
	w.stats.CyclesTotal.Add(1)

	created, err := w.ensure(ctx, clog)
	report.Created = created
	if err != nil {
		return report, w.fail(report, err)
	}

	samples := sample.Flatten(results, w.cfg.TypeNames)

	if w.cfg.Generate && clog.Enabled(ctx, slog.LevelDebug) {
		w.generate(ctx, clog, samples)
	}

	ids, values, err := w.resolve(clog, samples, report)
	if err != nil {
		return report, w.fail(report, err)
	}

	if len(ids) == 0 {
		report.NothingToWrite = true
		w.stats.NothingToWrite.Add(1)
		w.metrics.RecordCycle(metrics.ResultNothing, report.Dropped, nil)
		clog.Warn("nothing to write this cycle", "samples", len(samples), "dropped", report.Dropped)
		return report, nil
	}

	args, err := command.BuildUpdate(w.outputPath, w.cfg.BinaryDir, ids, values)
	if err != nil {
		return report, w.fail(report, err)
	}
	if err := w.runner.Run(ctx, args); err != nil {
		return report, w.fail(report, errors.Wrap(err, "update"))
	}

	report.Identifiers = ids
	w.state = StateReady
	w.metrics.RecordCycle(metrics.ResultOK, report.Dropped, nil)
	clog.Debug("update written", "identifiers", len(ids), "dropped", report.Dropped)

	return report, nil
}

func (w *Writer) fail(report *Report, err error) error {
	w.stats.CyclesFailed.Add(1)
	w.metrics.RecordCycle(metrics.ResultFailed, report.Dropped, err)
	return err
}

// =============================================================================
// Initialization
// =============================================================================

// ensure walks the writer to DatabaseEnsured. It reports whether the
// database was created by this call.
func (w *Writer) ensure(ctx context.Context, clog *slog.Logger) (bool, error) {
	switch w.state {
	case StateDisabled:
		return false, errors.Disabled(w.cfg.Name, w.initErr)
	case StateDatabaseEnsured, StateReady:
		return false, nil
	}

	if w.state == StateUninitialized {
		t, err := template.Load(w.cfg.TemplateFile)
		if err != nil {
			return false, w.disable(clog, err)
		}
		w.tmpl = t
		w.names = t.Names()
		w.state = StateSchemaLoaded
		clog.Debug("template loaded", "path", w.cfg.TemplateFile,
			"step", t.Step, "datasources", len(t.DataSources), "archives", len(t.Archives))
	}

	_, err := os.Stat(w.outputPath)
	switch {
	case err == nil:
		w.state = StateDatabaseEnsured
		return false, nil
	case !os.IsNotExist(err):
		return false, w.disable(clog, err)
	}

	if err := os.MkdirAll(filepath.Dir(w.outputPath), 0o755); err != nil {
		return false, w.disable(clog, err)
	}

	args, err := command.BuildCreate(w.tmpl, w.outputPath, w.cfg.BinaryDir)
	if err != nil {
		return false, w.disable(clog, err)
	}
	if err := w.runner.Run(ctx, args); err != nil {
		// Cancellation is the caller's, not the output's; retry next cycle.
		if ctx.Err() != nil {
			return false, errors.Wrap(err, "create")
		}
		return false, w.disable(clog, errors.Wrap(err, "create"))
	}

	w.state = StateDatabaseEnsured
	clog.Info("database created", "path", w.outputPath, "step", w.tmpl.Step)

	return true, nil
}

func (w *Writer) disable(clog *slog.Logger, err error) error {
	w.initErr = err
	w.state = StateDisabled
	w.metrics.SetDisabled(true)
	clog.Error("output disabled for the rest of the run", "error", err)
	return errors.Disabled(w.cfg.Name, err)
}

// =============================================================================
// Resolution
// =============================================================================

type resolved struct {
	value  string
	sample sample.Sample
}

// resolve derives identifiers for the numeric samples, keeps the declared
// ones and returns them with their values in lexicographic order.
func (w *Writer) resolve(clog *slog.Logger, samples []sample.Sample, report *Report) ([]string, []string, error) {
	kept := make(map[string]resolved)

	for _, s := range samples {
		if !sample.IsNumeric(s.Value) {
			continue
		}

		id := w.derive(s.SeriesGroup, s.MetricName, s.SubKey)
		if _, ok := w.names[id]; !ok {
			report.Dropped++
			clog.Debug("undeclared data source", "id", id, "sample", s.String(), "value", s.Value)
			continue
		}

		if prev, dup := kept[id]; dup {
			return nil, nil, &errors.DuplicateIdentifierError{
				Identifier: id,
				First:      prev.sample.String(),
				Second:     s.String(),
			}
		}
		kept[id] = resolved{value: sample.FormatValue(s.Value), sample: s}
	}

	w.stats.Dropped.Add(int64(report.Dropped))

	ids := make([]string, 0, len(kept))
	for id := range kept {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = kept[id].value
	}

	return ids, values, nil
}

// =============================================================================
// Helpers
// =============================================================================

// canonicalPath makes p absolute and resolves symlinks in its directory.
// The file itself may not exist yet.
func canonicalPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	dir, file := filepath.Split(abs)
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		return filepath.Join(real, file), nil
	}
	return abs, nil
}

// observerList fans run observations out to several observers.
type observerList []runner.Observer

func (l observerList) ObserveRun(op string, d time.Duration, err error) {
	for _, o := range l {
		o.ObserveRun(op, d, err)
	}
}
