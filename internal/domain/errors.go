// Package domain defines the error taxonomy shared by services and handlers.
// Handlers map these to HTTP statuses; services never import net/http.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports malformed input, keyed by offending field.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, reason := range e.Fields {
		parts = append(parts, f+" "+reason)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, ", ")
}

// NotFoundError reports a missing referenced record.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// PermissionError reports an actor lacking the capability for an operation.
type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("not authorized to %s", e.Action)
}

// PreconditionError reports an operation invoked on an aggregate in the wrong
// lifecycle state. It indicates an orchestration bug, not bad client input.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return "precondition failed: " + e.Msg }

// RenderError reports that document generation could not complete.
type RenderError struct {
	Msg string
	Err error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render failed: %s: %v", e.Msg, e.Err)
	}
	return "render failed: " + e.Msg
}

func (e *RenderError) Unwrap() error { return e.Err }
