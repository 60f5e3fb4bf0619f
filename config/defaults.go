// Package config provides configuration defaults for rrdsinkd.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via the YAML host configuration.
package config

import "time"

// =============================================================================
// Cycle Defaults
// =============================================================================

const (
	// DefaultCycleInterval is how often the feed is read and written.
	// It should match the step of the templates in use.
	// Override via config: cycle.interval
	DefaultCycleInterval = 60 * time.Second

	// DefaultDrainTimeoutSec is how long to wait for an in-flight cycle
	// during shutdown. After this timeout the cycle is abandoned.
	// Override via config: cycle.drain_timeout
	DefaultDrainTimeoutSec = 30
)

// =============================================================================
// rrdtool Defaults
// =============================================================================

const (
	// DefaultBinaryPath is the directory holding the rrdtool executable.
	// Override via config: outputs[].binary_path
	DefaultBinaryPath = "/usr/bin"

	// DefaultRunTimeout bounds a single rrdtool invocation. Zero disables
	// the bound and a hung rrdtool blocks its output indefinitely.
	// Override via config: outputs[].timeout
	DefaultRunTimeout = 10 * time.Second
)

// =============================================================================
// Observability Defaults
// =============================================================================

const (
	// DefaultLogLevel is the minimum level written.
	// Override via config: log.level
	DefaultLogLevel = "info"

	// DefaultLogFormat picks JSON when stdout is not a terminal.
	// Override via config: log.format
	DefaultLogFormat = "auto"

	// DefaultMetricsListen is the Prometheus endpoint address. Empty
	// disables the endpoint.
	// Override via config: metrics.listen
	DefaultMetricsListen = "127.0.0.1:9464"

	// DefaultMetricsPath is the HTTP path metrics are served on.
	DefaultMetricsPath = "/metrics"
)
