// Package security validates user-supplied names before they become file
// names, store keys or topic names.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// Limits.
const (
	MaxNameLength = 64
	MaxKeyLength  = 128
)

// ValidationError represents a field validation error.
type ValidationError struct {
	Field      string
	Value      interface{}
	Constraint string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s: %s (got: %v)", e.Field, e.Constraint, e.Value)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Constraint)
}

var (
	// nameRegex matches names embedded in file names: alphanumeric, dot,
	// hyphen, underscore, starting with alphanumeric.
	nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

	// keyRegex additionally allows ':' for namespaced keys.
	keyRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._:-]*$`)
)

// reservedNames are Windows reserved device names that should not be used as filenames.
var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
	"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// ValidateName checks a name used as part of a file or topic name, such as a
// qrel file prefix or a dataset name. field names the setting in errors.
func ValidateName(field, name string) error {
	return validate(field, name, MaxNameLength, nameRegex,
		"must contain only alphanumeric characters, dots, hyphens, and underscores, and start with alphanumeric")
}

// ValidateKey checks a storage key. Keys become file names in file-backed
// stores, so separators and reserved device names are rejected.
func ValidateKey(key string) error {
	return validate("key", key, MaxKeyLength, keyRegex,
		"must contain only alphanumeric characters, dots, colons, hyphens, and underscores, and start with alphanumeric")
}

func validate(field, s string, maxLen int, re *regexp.Regexp, charset string) error {
	if s == "" {
		return &ValidationError{
			Field:      field,
			Constraint: "required",
		}
	}

	if len(s) > maxLen {
		return &ValidationError{
			Field:      field,
			Value:      len(s),
			Constraint: fmt.Sprintf("maximum length is %d characters", maxLen),
		}
	}

	if !re.MatchString(s) {
		return &ValidationError{
			Field:      field,
			Value:      s,
			Constraint: charset,
		}
	}

	base := strings.ToLower(s)
	if idx := strings.Index(base, "."); idx > 0 {
		base = base[:idx]
	}
	if reservedNames[base] {
		return &ValidationError{
			Field:      field,
			Value:      s,
			Constraint: "reserved device name",
		}
	}

	return nil
}
