// Package apperr is the error taxonomy shared by drafts, validation, storage and rendering.
// None of these errors is fatal: operation boundaries turn them into notifications.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound - a draft id has no snapshot (or list entry)
	ErrNotFound = errors.New("not found")
	// ErrCanceled - the user declined to discard unsaved changes
	ErrCanceled = errors.New("canceled by user")
)

// ValidationError - required fields or signatures missing. Blocks export.
type ValidationError struct {
	Fields     []string // field ids left empty
	Signatures []string // signature pads left blank
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Fields) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Fields, ", "))
	}
	if len(e.Signatures) > 0 {
		parts = append(parts, "missing signatures: "+strings.Join(e.Signatures, ", "))
	}
	if len(parts) == 0 {
		return "validation failed"
	}
	return strings.Join(parts, "; ")
}

// Empty reports whether nothing is missing
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0 && len(e.Signatures) == 0
}

// RenderFailure - rasterizing one section failed. Recovered locally by the renderer.
type RenderFailure struct {
	SectionID string
	Err       error
}

func (e *RenderFailure) Error() string {
	return fmt.Sprintf("render section %q: %v", e.SectionID, e.Err)
}

func (e *RenderFailure) Unwrap() error { return e.Err }

// StorageFailure - a read or write against the key-value store failed. Not retried.
type StorageFailure struct {
	Op  string // "get" | "set" | "remove" | "scan" | "decode"
	Key string
	Err error
}

func (e *StorageFailure) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageFailure) Unwrap() error { return e.Err }

// NotFound wraps ErrNotFound with what was missing
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
