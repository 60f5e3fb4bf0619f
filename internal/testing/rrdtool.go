// Package testing provides test helpers for rrdsink.
//
// The main helper is a fake rrdtool: a shell script that records every
// invocation and can be told to complain on stderr, exit non-zero or hang.
// "create" invocations touch the database path so existence checks behave
// like they do with the real binary.
package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// FakeOptions controls how the fake rrdtool behaves.
type FakeOptions struct {
	// Stderr is written to stderr when the fake fails.
	Stderr string

	// ExitCode is returned when the fake fails.
	ExitCode int

	// FailOn limits failures to one operation ("create" or "update").
	// Empty means every invocation fails when Stderr or ExitCode is set.
	FailOn string

	// Sleep delays every invocation.
	Sleep time.Duration

	// Fork runs the sleep as a child of the script instead of replacing
	// it, so the sleep keeps stderr open after the script is killed.
	Fork bool
}

// FakeRRDTool is an installed fake binary.
type FakeRRDTool struct {
	// Dir is the directory holding the "rrdtool" script.
	Dir string

	logPath string
	t       *testing.T
}

// NewFakeRRDTool installs a fake rrdtool in a temporary directory.
// The test is skipped on platforms without /bin/sh.
func NewFakeRRDTool(t *testing.T, opts FakeOptions) *FakeRRDTool {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake rrdtool needs /bin/sh")
	}

	dir := t.TempDir()
	f := &FakeRRDTool{
		Dir:     dir,
		logPath: filepath.Join(dir, "calls.log"),
		t:       t,
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "{ for a in \"$@\"; do printf '%%s\\037' \"$a\"; done; printf '\\n'; } >> %s\n", quote(f.logPath))
	b.WriteString("if [ \"$1\" = \"create\" ]; then : > \"$2\"; fi\n")

	if opts.Stderr != "" || opts.ExitCode != 0 {
		fmt.Fprintf(&b, "if [ -z %s ] || [ \"$1\" = %s ]; then\n", quote(opts.FailOn), quote(opts.FailOn))
		if opts.Stderr != "" {
			fmt.Fprintf(&b, "  printf '%%s\\n' %s >&2\n", quote(opts.Stderr))
		}
		fmt.Fprintf(&b, "  exit %d\nfi\n", opts.ExitCode)
	}

	if opts.Sleep > 0 {
		prefix := "exec "
		if opts.Fork {
			prefix = ""
		}
		fmt.Fprintf(&b, "%ssleep %.3f\n", prefix, opts.Sleep.Seconds())
	}
	b.WriteString("exit 0\n")

	if err := os.WriteFile(filepath.Join(dir, "rrdtool"), []byte(b.String()), 0o755); err != nil {
		t.Fatalf("install fake rrdtool: %v", err)
	}

	return f
}

// Binary returns the path of the fake executable.
func (f *FakeRRDTool) Binary() string {
	return filepath.Join(f.Dir, "rrdtool")
}

// Calls returns the arguments of every invocation so far, without argv[0].
func (f *FakeRRDTool) Calls() [][]string {
	f.t.Helper()

	data, err := os.ReadFile(f.logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		f.t.Fatalf("read fake rrdtool log: %v", err)
	}

	var calls [][]string
	for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
		if line == "" {
			calls = append(calls, []string{})
			continue
		}
		calls = append(calls, strings.Split(strings.TrimSuffix(line, "\x1f"), "\x1f"))
	}
	return calls
}

// CallsTo returns the invocations of one operation.
func (f *FakeRRDTool) CallsTo(op string) [][]string {
	f.t.Helper()

	var out [][]string
	for _, c := range f.Calls() {
		if len(c) > 0 && c[0] == op {
			out = append(out, c)
		}
	}
	return out
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
