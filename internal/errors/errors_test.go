package errors

import (
	"fmt"
	"testing"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     string
	}{
		{"schema load", &SchemaLoadError{Path: "t.xml", Err: New("boom")}, ErrSchemaLoad, "schema_load"},
		{"template incomplete", &TemplateIncompleteError{Field: "step"}, ErrTemplateIncomplete, "template_incomplete"},
		{"process start", &ProcessStartError{Binary: "/x/rrdtool", Err: New("no such file")}, ErrProcessStart, "process_start"},
		{"external tool", &ExternalToolError{Message: "ERROR: x"}, ErrExternalTool, "external_tool"},
		{"duplicate", &DuplicateIdentifierError{Identifier: "a", First: "x", Second: "y"}, ErrDuplicateIdentifier, "duplicate_identifier"},
		{"mismatch", &ArgumentMismatchError{Identifiers: 2, Values: 1}, ErrArgumentMismatch, "argument_mismatch"},
		{"timeout", fmt.Errorf("update: %w", ErrTimeout), ErrTimeout, "timeout"},
		{"empty update", ErrEmptyUpdate, ErrEmptyUpdate, "argument_mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Wrap(tt.err, "context")
			if !Is(wrapped, tt.sentinel) {
				t.Errorf("Is(%v, %v) = false", wrapped, tt.sentinel)
			}
			if got := Kind(wrapped); got != tt.kind {
				t.Errorf("Kind = %q, want %q", got, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestDisabledKeepsCause(t *testing.T) {
	cause := &SchemaLoadError{Path: "t.xml", Err: New("missing")}
	err := Disabled("jvm", cause)

	if !IsFatal(err) {
		t.Error("expected fatal")
	}
	if !Is(err, ErrSchemaLoad) || !IsSchemaError(err) {
		t.Error("cause lost")
	}
	var sle *SchemaLoadError
	if !As(err, &sle) || sle.Path != "t.xml" {
		t.Errorf("As failed: %v", sle)
	}
	if Kind(err) != "disabled" {
		t.Errorf("Kind = %q, want disabled", Kind(err))
	}
}

func TestCategories(t *testing.T) {
	if !IsProcessError(&ExternalToolError{Message: "x"}) {
		t.Error("external tool should be a process error")
	}
	if IsProcessError(ErrDuplicateIdentifier) {
		t.Error("duplicate is not a process error")
	}
	if !IsProgrammingError(&ArgumentMismatchError{}) {
		t.Error("mismatch should be a programming error")
	}
	if Kind(nil) != "none" || Kind(New("x")) != "other" {
		t.Error("unexpected kinds for nil or unknown errors")
	}
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil {
		t.Error("wrapping nil must return nil")
	}
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	if v.Err() != nil {
		t.Fatal("empty collector must return nil")
	}

	v.AddMissing("output_file")
	v.AddField("timeout", "must not be negative")
	v.Add(nil)

	err := v.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if !Is(err, ErrMissingField) || !Is(err, ErrInvalidConfig) {
		t.Errorf("collected errors not reachable: %v", err)
	}
	if len(v.Errors) != 2 {
		t.Errorf("expected 2 errors, got %d", len(v.Errors))
	}
}
