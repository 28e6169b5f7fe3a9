package store

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by FetchOne when the collection has no document
// with the requested identifier.
var ErrNotFound = errors.New("document not found")

// ValidationError reports a malformed query parameter. It is raised before
// the store is contacted.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Error is a failure of the underlying store call.
type Error struct {
	Backend    string
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %q: %v", e.Backend, e.Op, e.Collection, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func storeErr(backend, op, collection string, err error) error {
	return &Error{Backend: backend, Op: op, Collection: collection, Err: err}
}
