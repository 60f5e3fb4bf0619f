package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xtxerr/rrdsink/internal/errors"
)

func TestOutputMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	out := m.Output("jvm")

	out.RecordCycle(ResultOK, 3, nil)
	out.RecordCycle(ResultFailed, 0, &errors.ExternalToolError{Message: "ERROR: boom"})
	out.ObserveRun("update", 20*time.Millisecond, nil)
	out.SetDisabled(true)

	if got := testutil.ToFloat64(m.cycles.WithLabelValues("jvm", ResultOK)); got != 1 {
		t.Fatalf("expected ok cycles 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.dropped.WithLabelValues("jvm")); got != 3 {
		t.Fatalf("expected dropped 3, got %f", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("jvm", "external_tool")); got != 1 {
		t.Fatalf("expected external_tool failures 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.disabled.WithLabelValues("jvm")); got != 1 {
		t.Fatalf("expected disabled gauge 1, got %f", got)
	}
	if n := testutil.CollectAndCount(m.runSeconds); n != 1 {
		t.Fatalf("expected 1 histogram series, got %d", n)
	}
}

func TestNilOutputIsNoop(t *testing.T) {
	var m *Metrics
	out := m.Output("x")

	out.RecordCycle(ResultOK, 1, nil)
	out.ObserveRun("update", time.Millisecond, nil)
	out.SetDisabled(true)
}
