// Package command builds rrdtool argument lists.
//
// Builders are pure: they neither touch the file system nor resolve paths
// beyond lexical cleaning. The returned slice starts with the binary path
// and can be handed to the runner unchanged.
package command

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/rrd/template"
)

// BinaryName is the executable looked up inside the configured binary directory.
const BinaryName = "rrdtool"

// NowTimestamp tells rrdtool to stamp an update with the current time.
const NowTimestamp = "N"

// Binary returns the rrdtool path inside binaryDir.
func Binary(binaryDir string) string {
	return filepath.Join(binaryDir, BinaryName)
}

// BuildCreate returns the arguments of an "rrdtool create" call for t:
//
//	<binaryDir>/rrdtool create <path> -s <step> DS:... RRA:...
//
// Data sources and archives appear in declaration order.
func BuildCreate(t *template.Template, path, binaryDir string) ([]string, error) {
	if err := t.Complete(); err != nil {
		return nil, err
	}

	args := make([]string, 0, 5+len(t.DataSources)+len(t.Archives))
	args = append(args,
		Binary(binaryDir),
		"create",
		filepath.Clean(path),
		"-s",
		strconv.Itoa(t.Step),
	)

	for _, ds := range t.DataSources {
		args = append(args, fmt.Sprintf("DS:%s:%s:%s:%s:%s", ds.Name, ds.Type, ds.Heartbeat, ds.Min, ds.Max))
	}
	for _, rra := range t.Archives {
		args = append(args, fmt.Sprintf("RRA:%s:%s:%s:%s", rra.CF, rra.XFF, rra.Steps, rra.Rows))
	}

	return args, nil
}

// BuildUpdate returns the arguments of an "rrdtool update" call:
//
//	<binaryDir>/rrdtool update <path> -t id1:id2 N:v1:v2
//
// ids and values are positionally aligned and must have equal length.
// Callers skip the update entirely when there is nothing to write.
func BuildUpdate(path, binaryDir string, ids, values []string) ([]string, error) {
	if len(ids) != len(values) {
		return nil, &errors.ArgumentMismatchError{Identifiers: len(ids), Values: len(values)}
	}
	if len(ids) == 0 {
		return nil, errors.ErrEmptyUpdate
	}

	return []string{
		Binary(binaryDir),
		"update",
		filepath.Clean(path),
		"-t",
		strings.Join(ids, ":"),
		NowTimestamp + ":" + strings.Join(values, ":"),
	}, nil
}
