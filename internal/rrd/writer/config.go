package writer

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/validation"
)

// Config describes one output.
type Config struct {
	// Name identifies the output in logs and metrics. Defaults to the
	// base name of OutputFile without extension.
	Name string

	// OutputFile is the database path.
	OutputFile string

	// TemplateFile is the XML or YAML template the database is created from.
	TemplateFile string

	// BinaryDir is the directory containing the rrdtool executable.
	BinaryDir string

	// TypeNames selects the type-name keys forming the series group.
	TypeNames []string

	// Generate logs a template snippet for every numeric sample at debug
	// level. Used to bootstrap a template from live data.
	Generate bool

	// Timeout bounds each rrdtool invocation. Zero means no bound.
	Timeout time.Duration
}

// OutputName returns Name, or the base name of OutputFile without
// extension when Name is empty.
func (c Config) OutputName() string {
	if c.Name != "" || c.OutputFile == "" {
		return c.Name
	}
	base := filepath.Base(c.OutputFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (c *Config) applyDefaults() {
	c.Name = c.OutputName()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.OutputFile == "" {
		errs = append(errs, errors.NewMissingField("output_file"))
	}
	if c.TemplateFile == "" {
		errs = append(errs, errors.NewMissingField("template_file"))
	}
	if c.BinaryDir == "" {
		errs = append(errs, errors.NewMissingField("binary_path"))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.NewValidation("timeout", "must not be negative"))
	}
	if name := c.OutputName(); name != "" {
		if err := validation.ValidateOutputName(name); err != nil {
			errs = append(errs, errors.NewValidation("name", err.Error()))
		}
	}
	for i, k := range c.TypeNames {
		if err := validation.ValidateTypeNameKey(k); err != nil {
			errs = append(errs, errors.NewValidation("type_names["+strconv.Itoa(i)+"]", err.Error()))
		}
	}

	return errors.Join(errs...)
}
