package writer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/logging"
	"github.com/xtxerr/rrdsink/internal/metrics"
	"github.com/xtxerr/rrdsink/internal/sample"
	rrdtesting "github.com/xtxerr/rrdsink/internal/testing"
)

// Identifiers derived by dsname.Derive with an empty series group.
const (
	idCPU  = "cpuUsage26a6422e291"
	idHeap = "HeapMemoryUsaged3bb"
)

const jvmTemplate = `<rrd_def>
  <step>300</step>
  <datasource><name>cpuUsage26a6422e291</name><type>GAUGE</type><heartbeat>600</heartbeat><min>0</min><max>U</max></datasource>
  <datasource><name>HeapMemoryUsaged3bb</name><type>GAUGE</type><heartbeat>600</heartbeat><min>U</min><max>U</max></datasource>
  <archive><cf>AVERAGE</cf><xff>0.5</xff><steps>1</steps><rows>576</rows></archive>
</rrd_def>
`

func jvmResults() []sample.Result {
	return []sample.Result{
		{Attribute: "cpuUsage", Values: map[string]any{"": 42.5}},
		{
			Attribute: "HeapMemoryUsage",
			Values: map[string]any{
				"used":      1024,
				"committed": 2048,
				"max":       "n/a",
			},
		},
	}
}

type fixture struct {
	fake *rrdtesting.FakeRRDTool
	cfg  Config
}

func newFixture(t *testing.T, tmpl string, opts rrdtesting.FakeOptions) *fixture {
	t.Helper()

	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "jvm.xml")
	require.NoError(t, os.WriteFile(tmplPath, []byte(tmpl), 0o644))

	fake := rrdtesting.NewFakeRRDTool(t, opts)
	return &fixture{
		fake: fake,
		cfg: Config{
			OutputFile:   filepath.Join(dir, "data", "jvm.rrd"),
			TemplateFile: tmplPath,
			BinaryDir:    fake.Dir,
		},
	}
}

func (f *fixture) writer(t *testing.T, opts ...Option) *Writer {
	t.Helper()
	w, err := New(f.cfg, opts...)
	require.NoError(t, err)
	return w
}

func TestWriteCreatesThenUpdates(t *testing.T) {
	f := newFixture(t, jvmTemplate, rrdtesting.FakeOptions{})
	w := f.writer(t)
	ctx := logging.ContextWithCycleID(context.Background(), "cycle-1")

	report, err := w.Write(ctx, jvmResults())
	require.NoError(t, err)

	assert.True(t, report.Created)
	assert.Equal(t, "jvm", report.Output)
	assert.Equal(t, "cycle-1", report.CycleID)
	assert.Equal(t, []string{idHeap, idCPU}, report.Identifiers)
	assert.Equal(t, 1, report.Dropped, "committed is numeric but undeclared")
	assert.Equal(t, StateReady, w.State())

	calls := f.fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{
		"create", w.OutputPath(), "-s", "300",
		"DS:" + idCPU + ":GAUGE:600:0:U",
		"DS:" + idHeap + ":GAUGE:600:U:U",
		"RRA:AVERAGE:0.5:1:576",
	}, calls[0])
	assert.Equal(t, []string{
		"update", w.OutputPath(), "-t", idHeap + ":" + idCPU, "N:1024:42.5",
	}, calls[1])

	report, err = w.Write(context.Background(), jvmResults())
	require.NoError(t, err)
	assert.False(t, report.Created)
	assert.Len(t, f.fake.CallsTo("create"), 1)
	assert.Len(t, f.fake.CallsTo("update"), 2)

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.CyclesTotal)
	assert.Equal(t, int64(1), stats.Creates)
	assert.Equal(t, int64(2), stats.Updates)
	assert.Equal(t, int64(2), stats.Dropped)
}

func TestWriteExistingDatabaseSkipsCreate(t *testing.T) {
	f := newFixture(t, jvmTemplate, rrdtesting.FakeOptions{})
	require.NoError(t, os.MkdirAll(filepath.Dir(f.cfg.OutputFile), 0o755))
	require.NoError(t, os.WriteFile(f.cfg.OutputFile, nil, 0o644))

	w := f.writer(t)
	report, err := w.Write(context.Background(), jvmResults())
	require.NoError(t, err)

	assert.False(t, report.Created)
	assert.Empty(t, f.fake.CallsTo("create"))
	assert.Len(t, f.fake.CallsTo("update"), 1)
}

func TestWriteNothingToWrite(t *testing.T) {
	f := newFixture(t, jvmTemplate, rrdtesting.FakeOptions{})
	w := f.writer(t)

	results := []sample.Result{
		{Attribute: "ThreadCount", Values: map[string]any{"": 12}},
		{Attribute: "Uptime", Values: map[string]any{"": "forever"}},
	}

	report, err := w.Write(context.Background(), results)
	require.NoError(t, err)

	assert.True(t, report.NothingToWrite)
	assert.Equal(t, 1, report.Dropped)
	assert.Empty(t, report.Identifiers)
	assert.Empty(t, f.fake.CallsTo("update"))
	assert.Equal(t, StateDatabaseEnsured, w.State())
	assert.Equal(t, int64(1), w.Stats().NothingToWrite)
}

func TestWriteDuplicateIdentifier(t *testing.T) {
	const collide = "cpuUsageab12cd34ef5"
	tmpl := strings.NewReplacer(idCPU, collide).Replace(jvmTemplate)

	f := newFixture(t, tmpl, rrdtesting.FakeOptions{})
	w := f.writer(t, WithDeriver(func(group, metric, subKey string) string {
		return collide
	}))

	results := []sample.Result{
		{Attribute: "cpuUsage", Values: map[string]any{"user": 1, "system": 2}},
	}

	_, err := w.Write(context.Background(), results)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateIdentifier))
	assert.Contains(t, err.Error(), collide)
	assert.Empty(t, f.fake.CallsTo("update"))

	var dup *errors.DuplicateIdentifierError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, ":cpuUsage:system", dup.First)
	assert.Equal(t, ":cpuUsage:user", dup.Second)
}

func TestWriteUpdateFailureKeepsOutputEnabled(t *testing.T) {
	f := newFixture(t, jvmTemplate, rrdtesting.FakeOptions{
		Stderr: "ERROR: illegal attempt to update using time 1 when last update time is 2",
		FailOn: "update",
	})
	w := f.writer(t)

	_, err := w.Write(context.Background(), jvmResults())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrExternalTool))
	assert.False(t, errors.IsFatal(err))
	assert.Contains(t, err.Error(), "illegal attempt")

	_, err = w.Write(context.Background(), jvmResults())
	require.Error(t, err)
	assert.Len(t, f.fake.CallsTo("update"), 2, "update retried next cycle")
	assert.NotEqual(t, StateDisabled, w.State())
	assert.Equal(t, int64(2), w.Stats().CyclesFailed)
}

func TestWriteCreateFailureDisablesOutput(t *testing.T) {
	f := newFixture(t, jvmTemplate, rrdtesting.FakeOptions{
		Stderr:   "ERROR: you must define at least one Round Robin Archive",
		ExitCode: 1,
		FailOn:   "create",
	})
	w := f.writer(t)

	_, err := w.Write(context.Background(), jvmResults())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.True(t, errors.Is(err, errors.ErrExternalTool))
	assert.Equal(t, StateDisabled, w.State())

	_, err = w.Write(context.Background(), jvmResults())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOutputDisabled))
	assert.Len(t, f.fake.Calls(), 1, "disabled output never invokes rrdtool again")
}

func TestWriteCancelledCreateKeepsOutputEnabled(t *testing.T) {
	f := newFixture(t, jvmTemplate, rrdtesting.FakeOptions{})
	w := f.writer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Write(ctx, jvmResults())
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, errors.ErrProcessStart))
	assert.Equal(t, StateSchemaLoaded, w.State())

	report, err := w.Write(context.Background(), jvmResults())
	require.NoError(t, err)
	assert.True(t, report.Created)
	assert.Equal(t, StateReady, w.State())
}

func TestWriteMissingTemplateDisablesOutput(t *testing.T) {
	f := newFixture(t, jvmTemplate, rrdtesting.FakeOptions{})
	f.cfg.TemplateFile = filepath.Join(t.TempDir(), "missing.xml")
	w := f.writer(t)

	_, err := w.Write(context.Background(), jvmResults())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchemaLoad))
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, StateDisabled, w.State())
	assert.Nil(t, w.Template())
	assert.Empty(t, f.fake.Calls())
}

func TestWriteRecordsMetrics(t *testing.T) {
	f := newFixture(t, jvmTemplate, rrdtesting.FakeOptions{})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	w := f.writer(t, WithMetrics(m.Output("jvm")))

	_, err := w.Write(context.Background(), jvmResults())
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "rrdsink_cycles_total", "rrdsink_dropped_identifiers_total", "rrdsink_rrdtool_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, n, "one cycle series, one dropped series, create and update histograms")
}

func TestGenerateDoesNotChangeWrite(t *testing.T) {
	f := newFixture(t, jvmTemplate, rrdtesting.FakeOptions{})
	f.cfg.Generate = true
	w := f.writer(t)

	report, err := w.Write(context.Background(), jvmResults())
	require.NoError(t, err)
	assert.Equal(t, []string{idHeap, idCPU}, report.Identifiers)
}

func TestSnippet(t *testing.T) {
	got := Snippet(idCPU, ":cpuUsage:")
	assert.Equal(t,
		"<datasource><!-- :cpuUsage: --><name>cpuUsage26a6422e291</name><type>GAUGE</type><heartbeat>400</heartbeat><min>U</min><max>U</max></datasource>",
		got)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "valid",
			cfg:  Config{OutputFile: "a.rrd", TemplateFile: "a.xml", BinaryDir: "/usr/bin"},
		},
		{
			name:    "missing output",
			cfg:     Config{TemplateFile: "a.xml", BinaryDir: "/usr/bin"},
			wantErr: errors.ErrMissingField,
		},
		{
			name:    "missing binary dir",
			cfg:     Config{OutputFile: "a.rrd", TemplateFile: "a.xml"},
			wantErr: errors.ErrMissingField,
		},
		{
			name:    "negative timeout",
			cfg:     Config{OutputFile: "a.rrd", TemplateFile: "a.xml", BinaryDir: "/usr/bin", Timeout: -1},
			wantErr: errors.ErrInvalidConfig,
		},
		{
			name:    "name with path separator",
			cfg:     Config{Name: "jvm/heap", OutputFile: "a.rrd", TemplateFile: "a.xml", BinaryDir: "/usr/bin"},
			wantErr: errors.ErrInvalidConfig,
		},
		{
			name:    "blank type name",
			cfg:     Config{OutputFile: "a.rrd", TemplateFile: "a.xml", BinaryDir: "/usr/bin", TypeNames: []string{"name", " "}},
			wantErr: errors.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestNewDefaultsName(t *testing.T) {
	w, err := New(Config{OutputFile: "/var/lib/rrd/jvm.heap.rrd", TemplateFile: "t.xml", BinaryDir: "/usr/bin"})
	require.NoError(t, err)
	assert.Equal(t, "jvm.heap", w.Name())
	assert.Equal(t, StateUninitialized, w.State())
}
