package domain

import "fmt"

// ValidationError reports input rejected before any I/O: out-of-range
// coordinates, malformed coordinate strings, bad query parameters.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// StorageError wraps a database failure. A failing batch insert rolls back
// entirely; no partial batch persists.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
