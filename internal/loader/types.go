// Package loader - Configuration Types
//
// Defines the YAML host configuration for rrdsinkd.
//
//	┌──────────────────────────────────────────────────────────┐
//	│                      rrdsink.yaml                        │
//	├──────────────────────────────────────────────────────────┤
//	│  log:      level, format                                 │
//	│  cycle:    interval, drain timeout                       │
//	│  feed:     where collectors drop each cycle's results    │
//	│  metrics:  Prometheus endpoint                           │
//	│  include:  globs of files contributing more outputs      │
//	│  outputs:  one rrd database each                         │
//	└──────────────────────────────────────────────────────────┘
package loader

import (
	"time"

	"github.com/xtxerr/rrdsink/config"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for rrdsinkd.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Cycle   CycleConfig   `yaml:"cycle"`
	Feed    FeedConfig    `yaml:"feed"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Include lists glob patterns of files whose outputs are appended.
	// Relative patterns resolve against the including file.
	Include []string `yaml:"include"`

	Outputs []OutputConfig `yaml:"outputs"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level"`

	// Format: text, json, auto
	Format string `yaml:"format"`
}

// CycleConfig controls the write loop.
type CycleConfig struct {
	Interval     Duration `yaml:"interval"`
	DrainTimeout Duration `yaml:"drain_timeout"`
}

// FeedConfig locates the results produced by collectors.
type FeedConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the HTTP address. Empty disables the endpoint.
	Listen string `yaml:"listen"`
}

// OutputConfig describes one rrd database.
type OutputConfig struct {
	Name         string   `yaml:"name"`
	OutputFile   string   `yaml:"output_file"`
	TemplateFile string   `yaml:"template_file"`
	BinaryPath   string   `yaml:"binary_path"`
	TypeNames    []string `yaml:"type_names"`
	Generate     bool     `yaml:"generate"`

	// Timeout bounds each rrdtool invocation. Unset inherits the default;
	// "0s" disables the bound.
	Timeout *Duration `yaml:"timeout"`
}

// includeFile is the shape of an included file.
type includeFile struct {
	Outputs []OutputConfig `yaml:"outputs"`
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  config.DefaultLogLevel,
			Format: config.DefaultLogFormat,
		},
		Cycle: CycleConfig{
			Interval:     Duration(config.DefaultCycleInterval),
			DrainTimeout: Duration(config.DefaultDrainTimeoutSec * time.Second),
		},
		Metrics: MetricsConfig{
			Listen: config.DefaultMetricsListen,
		},
	}
}

// =============================================================================
// Custom Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
// Supports "10s", "1m30s" or plain integers as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var i int
	if err := unmarshal(&i); err == nil {
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}

	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
