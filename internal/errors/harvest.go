// internal/errors/harvest.go
package errors

import (
	stderrors "errors"
	"fmt"
)

// Class groups harvest failures by how far they propagate.
type Class string

const (
	// ClassInput is a rejected job submission; the engine never ran
	ClassInput Class = "input"
	// ClassSession covers rendering-client acquisition failures
	ClassSession Class = "session"
	// ClassNavigation covers failing to load the target surface
	ClassNavigation Class = "navigation"
	// ClassSignIn covers a failed gated-surface sign-in
	ClassSignIn Class = "signin"
	// ClassCycle is a single reveal cycle failing; recovered by the loop
	ClassCycle Class = "cycle"
	// ClassInternal is an unexpected failure escaping the loop
	ClassInternal Class = "internal"
)

// Sentinel errors
var (
	ErrMissingTarget      = stderrors.New("video_url is required")
	ErrMissingQuery       = stderrors.New("search_term is required")
	ErrMissingCredentials = stderrors.New("credentials are required for this surface")
	ErrSignInFailed       = stderrors.New("login failed")
	ErrInvalidLimit       = stderrors.New("requested record count must be positive")
)

// HarvestError carries the failure class and the operation that failed
type HarvestError struct {
	Class Class
	Op    string
	Err   error
}

// New wraps err with a class and operation name
func New(class Class, op string, err error) *HarvestError {
	return &HarvestError{Class: class, Op: op, Err: err}
}

// Error implements the error interface
func (e *HarvestError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the cause to errors.Is and errors.As
func (e *HarvestError) Unwrap() error {
	return e.Err
}

// ClassOf returns the class of the outermost HarvestError in err's chain
func ClassOf(err error) Class {
	var he *HarvestError
	if stderrors.As(err, &he) {
		return he.Class
	}
	return ""
}

// IsFatal reports whether err ends a harvest job
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return ClassOf(err) != ClassCycle
}
