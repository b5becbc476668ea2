// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for security-sensitive
// identifiers.
//
// Graph and trace IDs arrive from external submitters and end up in URL
// paths, log lines, and generated Cypher. Validating them at the boundary
// keeps injection attempts and unbounded garbage out of every layer
// below.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierPattern matches safe external identifiers.
// Allows: letters, digits, dots, hyphens, underscores. Must start with
// an alphanumeric. Max length 128.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,127}$`)

// ValidateIdentifier validates an externally supplied graph or trace ID.
//
// Valid identifiers:
//   - 1-128 characters
//   - Letters and digits
//   - Dots, hyphens, and underscores after the first character
//
// Returns an error naming the field if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateIdentifier("graphId", id); err != nil {
//	    return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
//	}
func ValidateIdentifier(field, id string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid %s: %q (must be 1-128 alphanumeric chars, dots, hyphens, or underscores)", field, id)
	}
	return nil
}

// SanitizeIdentifier trims surrounding whitespace and validates.
// Returns the trimmed identifier if valid.
func SanitizeIdentifier(field, id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if err := ValidateIdentifier(field, trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
