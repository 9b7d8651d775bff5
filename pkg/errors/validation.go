package errors

import (
	"strings"
	"unicode"
)

// ValidateResourceID validates a resource identifier of the form
// <type>.<name>, optionally suffixed with an instance index (~N).
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - A type segment, a dot, and a non-empty name segment are required
//   - No control characters or null bytes
//   - Maximum length of 256 characters
//
// Provider-specific validation (known type prefixes) is the rule table's
// concern, not this function's.
func ValidateResourceID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidPlan, "resource identifier cannot be empty")
	}

	if len(id) > 256 {
		return New(ErrCodeInvalidPlan, "resource identifier too long (max 256 characters): %q", id)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPlan, "resource identifier contains control characters: %q", id)
		}
	}

	dot := strings.Index(id, ".")
	if dot <= 0 {
		return New(ErrCodeInvalidPlan, "resource identifier must be <type>.<name>: %q", id)
	}

	name := id[dot+1:]
	if idx := strings.Index(name, "~"); idx >= 0 {
		if name[:idx] == "" || name[idx+1:] == "" {
			return New(ErrCodeInvalidPlan, "malformed instance suffix in identifier: %q", id)
		}
		name = name[:idx]
	}
	if name == "" {
		return New(ErrCodeInvalidPlan, "resource identifier has empty name segment: %q", id)
	}

	return nil
}

// ValidateOutputPath validates a file path used for rendered artifacts.
// It prevents path traversal and rejects unreasonable lengths.
func ValidateOutputPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidConfig, "output path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidConfig, "output path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidConfig, "output path contains control characters")
		}
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidConfig, "output path cannot contain traversal sequences")
	}

	return nil
}
