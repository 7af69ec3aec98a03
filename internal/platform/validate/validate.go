// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate collects field-level request errors into one
// VALIDATION_ERROR [apperr.AppError].
//
// The document handler uses it for path and query identifiers; the token
// validator uses it for cheap shape checks before any signature work.
package validate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/lectern/internal/platform/apperr"
)

// Validator accumulates failures across chained rules. Use one per request.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// ID parses value as a positive int64 identifier and returns it.
//
// A missing value is reported as required; anything that is not a positive
// base-10 integer is reported as malformed. On failure it returns 0.
func (v *Validator) ID(field, value string) int64 {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
		return 0
	}

	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		v.add(field, "Must be a positive integer")
		return 0
	}

	return id
}

// Custom records message for field when failed is true.
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns the accumulated failures as a VALIDATION_ERROR, or nil.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// add appends a [apperr.FieldError] to the internal slice.
func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}

