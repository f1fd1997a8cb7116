// Package validator provides a custom Validator type for accumulating
// field-level validation errors, plus the small set of predicates the
// book review API checks its input against.
package validator

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// EmailRX accepts anything shaped like local@domain.tld with no whitespace.
var EmailRX = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	MinPasswordLength = 6

	MinRating = 1
	MaxRating = 5

	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Validator holds a map of field names to their validation error messages.
// A Validator with an empty Errors map is considered valid.
type Validator struct {
	Errors map[string]string
}

// New creates and returns a fresh, empty Validator.
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid returns true if the Errors map contains no entries.
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError records key as failing with the given message.
// If key already has an error it is not overwritten, so the first
// failure for a field is always the one that is reported.
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// Check adds an error for key with message only when ok is false.
// Use this as a single-line guard:
//
//	v.Check(len(title) > 0, "title", "must be provided")
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// Summary joins every recorded error into one "key message" line, ordered by
// key so the output is stable between requests.
func (v *Validator) Summary() string {
	keys := make([]string, 0, len(v.Errors))
	for key := range v.Errors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+" "+v.Errors[key])
	}
	return strings.Join(parts, "; ")
}

// Matches returns true if value matches the provided compiled regexp.
func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

// NotBlank reports whether value has any non-whitespace content.
func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

// ValidRating reports whether rating is a whole star count from 1 to 5.
func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// WholeRating reports whether a JSON number is a whole star count in range,
// so that 4 and 4.0 are both accepted.
func WholeRating(rating float64) bool {
	return rating == math.Trunc(rating) && rating >= MinRating && rating <= MaxRating
}

// ClampPagination forces page to at least 1 and limit into [1, MaxLimit].
// Callers substitute DefaultPage/DefaultLimit for absent or unparseable
// query values before clamping.
func ClampPagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
