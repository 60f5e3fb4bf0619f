package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestDSNameCommand(t *testing.T) {
	assert.Equal(t, "HeapMemoryUsaged3bb\n", execute(t, "dsname", "HeapMemoryUsage", "used"))
}

func TestCreateDryRun(t *testing.T) {
	tmpl := filepath.Join(t.TempDir(), "cpu.yaml")
	require.NoError(t, os.WriteFile(tmpl, []byte(`
path: /var/lib/rrd/cpu.rrd
step: 60
datasource:
  - {name: cpuUsage, type: GAUGE, heartbeat: "120", min: "0", max: U}
archive:
  - {cf: AVERAGE, xff: "0.5", steps: "1", rows: "1440"}
`), 0o644))

	got := execute(t, "create", "--template", tmpl, "--binary-dir", "/opt/bin", "--dry-run")
	assert.Equal(t,
		"/opt/bin/rrdtool create /var/lib/rrd/cpu.rrd -s 60 DS:cpuUsage:GAUGE:120:0:U RRA:AVERAGE:0.5:1:1440\n",
		got)
}
