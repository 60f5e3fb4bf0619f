// Package metrics exports rrdsink activity to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xtxerr/rrdsink/internal/errors"
)

// Cycle outcomes used as the "result" label.
const (
	ResultOK      = "ok"
	ResultNothing = "nothing"
	ResultFailed  = "failed"
)

// Metrics holds the collectors shared by all outputs.
type Metrics struct {
	cycles     *prometheus.CounterVec
	failures   *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	runSeconds *prometheus.HistogramVec
	disabled   *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rrdsink_cycles_total",
			Help: "Write cycles per output by result.",
		}, []string{"output", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rrdsink_failures_total",
			Help: "Failed cycles per output by error kind.",
		}, []string{"output", "kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rrdsink_dropped_identifiers_total",
			Help: "Numeric samples whose identifier is not declared in the template.",
		}, []string{"output"}),
		runSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rrdsink_rrdtool_seconds",
			Help:    "Duration of rrdtool invocations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"output", "op"}),
		disabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rrdsink_output_disabled",
			Help: "1 when an output failed to initialize and is skipped for the rest of the run.",
		}, []string{"output"}),
	}

	reg.MustRegister(m.cycles, m.failures, m.dropped, m.runSeconds, m.disabled)
	return m
}

// Output returns the recorder for one output. A nil Metrics yields a nil
// recorder whose methods do nothing.
func (m *Metrics) Output(name string) *Output {
	if m == nil {
		return nil
	}
	return &Output{m: m, name: name}
}

// Output records metrics for one output.
type Output struct {
	m    *Metrics
	name string
}

// ObserveRun records one rrdtool invocation.
func (o *Output) ObserveRun(op string, d time.Duration, err error) {
	if o == nil {
		return
	}
	o.m.runSeconds.WithLabelValues(o.name, op).Observe(d.Seconds())
}

// RecordCycle records the outcome of one cycle.
func (o *Output) RecordCycle(result string, dropped int, err error) {
	if o == nil {
		return
	}
	o.m.cycles.WithLabelValues(o.name, result).Inc()
	if dropped > 0 {
		o.m.dropped.WithLabelValues(o.name).Add(float64(dropped))
	}
	if err != nil {
		o.m.failures.WithLabelValues(o.name, errors.Kind(err)).Inc()
	}
}

// SetDisabled flags the output as disabled.
func (o *Output) SetDisabled(disabled bool) {
	if o == nil {
		return
	}
	v := 0.0
	if disabled {
		v = 1
	}
	o.m.disabled.WithLabelValues(o.name).Set(v)
}
