// Package loader handles host configuration loading and validation.
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Processing include directives
//   - Converting outputs into writer configurations
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/rrdsink/config"
	"github.com/xtxerr/rrdsink/internal/errors"
	"github.com/xtxerr/rrdsink/internal/logging"
	"github.com/xtxerr/rrdsink/internal/rrd/writer"
)

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := processIncludes(cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// processIncludes loads included files and appends their outputs.
func processIncludes(cfg *Config, baseDir string) error {
	for _, pattern := range cfg.Include {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(baseDir, pattern)
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}

		for _, match := range matches {
			if err := loadInclude(cfg, match); err != nil {
				return fmt.Errorf("load include %q: %w", match, err)
			}
		}
	}

	return nil
}

func loadInclude(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial includeFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &partial); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	cfg.Outputs = append(cfg.Outputs, partial.Outputs...)
	return nil
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration, reporting every problem at once.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs.AddField("log.level", err.Error())
	}
	switch strings.ToLower(cfg.Log.Format) {
	case logging.FormatText, logging.FormatJSON, logging.FormatAuto, "":
	default:
		errs.AddField("log.format", fmt.Sprintf("unknown format %q", cfg.Log.Format))
	}

	if cfg.Cycle.Interval.Duration() <= 0 {
		errs.AddField("cycle.interval", "must be positive")
	}
	if cfg.Cycle.DrainTimeout.Duration() < 0 {
		errs.AddField("cycle.drain_timeout", "must not be negative")
	}

	if len(cfg.Outputs) == 0 {
		errs.AddField("outputs", "at least one output is required")
	}

	names := make(map[string]int)
	files := make(map[string]int)
	for i, wc := range ToWriterConfigs(cfg) {
		prefix := fmt.Sprintf("outputs[%d]", i)

		if err := wc.Validate(); err != nil {
			errs.Add(errors.Wrap(err, prefix))
			continue
		}

		name := wc.OutputName()
		if j, dup := names[name]; dup {
			errs.AddField(prefix+".name", fmt.Sprintf("%q already used by outputs[%d]", name, j))
		} else {
			names[name] = i
		}

		// rrdtool does not lock its files; two outputs must not share one.
		file := filepath.Clean(wc.OutputFile)
		if j, dup := files[file]; dup {
			errs.AddField(prefix+".output_file", fmt.Sprintf("%q already used by outputs[%d]", file, j))
		} else {
			files[file] = i
		}
	}

	return errs.Err()
}

// =============================================================================
// Conversion: Config → Writer Config
// =============================================================================

// ToWriterConfigs converts the outputs to writer configurations, applying
// the binary path and timeout defaults.
func ToWriterConfigs(cfg *Config) []writer.Config {
	out := make([]writer.Config, 0, len(cfg.Outputs))
	for _, o := range cfg.Outputs {
		wc := writer.Config{
			Name:         o.Name,
			OutputFile:   o.OutputFile,
			TemplateFile: o.TemplateFile,
			BinaryDir:    o.BinaryPath,
			TypeNames:    o.TypeNames,
			Generate:     o.Generate,
			Timeout:      config.DefaultRunTimeout,
		}
		if wc.BinaryDir == "" {
			wc.BinaryDir = config.DefaultBinaryPath
		}
		if o.Timeout != nil {
			wc.Timeout = o.Timeout.Duration()
		}
		out = append(out, wc)
	}
	return out
}
