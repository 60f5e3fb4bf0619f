// Package validation checks names that end up in file paths, log lines
// and metric labels.
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for names.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
}

// OutputNameRules returns the rules for output names. Output names default
// to database file names, so dots are allowed.
func OutputNameRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    128,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ValidateName validates a name according to the given rules.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required", rules.MinLength)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed", rules.MaxLength)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("name cannot be '.' or '..'")
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d", i)
		}
		if r == '/' || r == '\\' {
			return fmt.Errorf("name cannot contain path separators at position %d", i)
		}
		if !isAllowedNameChar(r, rules) {
			return fmt.Errorf("invalid character '%c' at position %d", r, i)
		}
	}

	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	}
	return false
}

// ValidateOutputName validates an output name with OutputNameRules.
func ValidateOutputName(name string) error {
	return ValidateName(name, OutputNameRules())
}

// =============================================================================
// Type-Name Key Validation
// =============================================================================

// ValidateTypeNameKey validates a key selected from "k=v,k2=v2" type names.
// Keys containing the separators could never match.
func ValidateTypeNameKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("type-name key cannot be empty")
	}
	if i := strings.IndexAny(key, "=,"); i >= 0 {
		return fmt.Errorf("type-name key cannot contain '%c'", key[i])
	}
	return nil
}
