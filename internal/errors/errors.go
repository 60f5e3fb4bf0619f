// LOCATION: internal/errors/errors.go
//
// This file provides:
// - Sentinel errors for every failure kind of the rrd write path
// - Typed errors carrying the details of each failure
// - Error category checking functions

package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Schema errors
	ErrSchemaLoad         = errors.New("schema load failed")
	ErrTemplateIncomplete = errors.New("template incomplete")

	// Process errors
	ErrProcessStart = errors.New("process start failed")
	ErrExternalTool = errors.New("external tool reported an error")
	ErrTimeout      = errors.New("timeout")

	// Write path errors
	ErrDuplicateIdentifier = errors.New("duplicate data source identifier")
	ErrArgumentMismatch    = errors.New("identifier and value count mismatch")
	ErrEmptyUpdate         = errors.New("update without identifiers")
	ErrOutputDisabled      = errors.New("output disabled")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")
)

// ============================================================================
// Typed errors
// ============================================================================

// SchemaLoadError reports a template file that could not be read or parsed,
// or that lacks the fields every template must carry.
type SchemaLoadError struct {
	Path string
	Err  error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("load schema %s: %v", e.Path, e.Err)
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

func (e *SchemaLoadError) Is(target error) bool { return target == ErrSchemaLoad }

// TemplateIncompleteError names the first unset field found in a template.
type TemplateIncompleteError struct {
	Field string
}

func (e *TemplateIncompleteError) Error() string {
	return fmt.Sprintf("template incomplete: %s", e.Field)
}

func (e *TemplateIncompleteError) Is(target error) bool { return target == ErrTemplateIncomplete }

// ProcessStartError reports a binary that could not be located or launched.
type ProcessStartError struct {
	Binary string
	Err    error
}

func (e *ProcessStartError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Binary, e.Err)
}

func (e *ProcessStartError) Unwrap() error { return e.Err }

func (e *ProcessStartError) Is(target error) bool { return target == ErrProcessStart }

// ExternalToolError carries the text the external tool wrote to stderr.
type ExternalToolError struct {
	Message string
	Args    []string
}

func (e *ExternalToolError) Error() string {
	if len(e.Args) > 1 {
		return fmt.Sprintf("rrdtool %s: %s", e.Args[1], e.Message)
	}
	return e.Message
}

func (e *ExternalToolError) Is(target error) bool { return target == ErrExternalTool }

// DuplicateIdentifierError names the two samples that derived the same identifier.
type DuplicateIdentifierError struct {
	Identifier string
	First      string
	Second     string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicate data source identifier %q from %s and %s; add type names to make series unique",
		e.Identifier, e.First, e.Second)
}

func (e *DuplicateIdentifierError) Is(target error) bool { return target == ErrDuplicateIdentifier }

// ArgumentMismatchError reports identifier and value lists of different length.
type ArgumentMismatchError struct {
	Identifiers int
	Values      int
}

func (e *ArgumentMismatchError) Error() string {
	return fmt.Sprintf("%d identifiers but %d values", e.Identifiers, e.Values)
}

func (e *ArgumentMismatchError) Is(target error) bool { return target == ErrArgumentMismatch }

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// New is a convenience wrapper for errors.New
var New = errors.New

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// IsSchemaError returns true if err stems from the template.
func IsSchemaError(err error) bool {
	return errors.Is(err, ErrSchemaLoad) ||
		errors.Is(err, ErrTemplateIncomplete)
}

// IsProcessError returns true if err stems from running the external tool.
func IsProcessError(err error) bool {
	return errors.Is(err, ErrProcessStart) ||
		errors.Is(err, ErrExternalTool) ||
		errors.Is(err, ErrTimeout)
}

// IsFatal returns true if err disables an output for the rest of the run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrOutputDisabled)
}

// IsProgrammingError returns true for invariant violations between
// components that never occur in normal operation.
func IsProgrammingError(err error) bool {
	return errors.Is(err, ErrArgumentMismatch) ||
		errors.Is(err, ErrEmptyUpdate)
}

// Kind returns a short label for err, used as a metric label.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrOutputDisabled):
		return "disabled"
	case errors.Is(err, ErrSchemaLoad):
		return "schema_load"
	case errors.Is(err, ErrTemplateIncomplete):
		return "template_incomplete"
	case errors.Is(err, ErrProcessStart):
		return "process_start"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrDuplicateIdentifier):
		return "duplicate_identifier"
	case IsProgrammingError(err):
		return "argument_mismatch"
	default:
		return "other"
	}
}

// ============================================================================
// Wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Disabled wraps the error that disabled an output.
func Disabled(output string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrOutputDisabled, output, cause)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// ============================================================================
// Validation error collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
