package validation

import (
	"errors"
	"sort"
	"strings"
)

// ErrInvalid is matched by errors.Is for every Errors value.
var ErrInvalid = errors.New("validation failed")

// Errors maps a field name to its failure message.
type Errors map[string]string

// Check records err under field when it is non-nil. The first failure for a
// field wins.
func (e Errors) Check(field string, err error) {
	if err == nil {
		return
	}
	if _, exists := e[field]; exists {
		return
	}
	e[field] = err.Error()
}

// Add records a message for field.
func (e Errors) Add(field, message string) {
	if _, exists := e[field]; exists {
		return
	}
	e[field] = message
}

// Empty reports whether no field failed.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Err returns e as an error, or nil when empty.
func (e Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

// Error joins the failures in field order.
func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return strings.Join(parts, "; ")
}

// Is lets callers match any Errors with ErrInvalid.
func (e Errors) Is(target error) bool {
	return target == ErrInvalid
}

// AsErrors extracts field errors from err.
func AsErrors(err error) (Errors, bool) {
	var fieldErrs Errors
	if errors.As(err, &fieldErrs) {
		return fieldErrs, true
	}
	return nil, false
}
