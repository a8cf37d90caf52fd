package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/claimstore/internal/validate"
)

// Sentinels matched with errors.Is against the typed errors below
var (
	ErrValidation   = errors.New("validation failed")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrNotFound     = errors.New("not found")
	ErrInconsistent = errors.New("index inconsistent with repository")
)

// ValidationError rejects a malformed candidate before any state change
type ValidationError struct {
	Violations []validate.Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "invalid entry: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, rule, msg string) *ValidationError {
	return &ValidationError{Violations: []validate.Violation{{Field: field, Rule: rule, Message: msg}}}
}

// DuplicateError reports that an identical candidate was already stored
type DuplicateError struct {
	ExistingID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate entry: identical candidate already stored as %s", e.ExistingID)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// NotFoundError reports a reference to an unknown entry, claim, topic or
// speaker. Suggestions lists close index keys when there are any.
type NotFoundError struct {
	Kind        string
	Key         string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found", e.Kind, e.Key)
	if len(e.Suggestions) > 0 {
		msg += " (did you mean: " + strings.Join(e.Suggestions, ", ") + "?)"
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InconsistencyError reports derived state that disagrees with the entries.
// Rebuild is the only recovery.
type InconsistencyError struct {
	Details []string
}

func (e *InconsistencyError) Error() string {
	const shown = 5
	details := e.Details
	suffix := ""
	if len(details) > shown {
		suffix = fmt.Sprintf(" (and %d more)", len(details)-shown)
		details = details[:shown]
	}
	return "index inconsistent, run rebuild: " + strings.Join(details, "; ") + suffix
}

func (e *InconsistencyError) Is(target error) bool { return target == ErrInconsistent }
