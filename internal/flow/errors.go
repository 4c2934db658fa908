package flow

import (
	"errors"
	"fmt"
	"time"

	"github.com/v0xg/profilecheck/internal/artifact"
)

var (
	// ErrNoLoginFormFound means no login path or link led to a password field.
	ErrNoLoginFormFound = errors.New("no login form found")
	// ErrCredentialFieldsNotFound means a login form was found but its
	// username or password input could not be located.
	ErrCredentialFieldsNotFound = errors.New("login form found but username/password fields could not be located")
	// ErrNotAuthenticated means neither a profile link nor the profile form
	// was ever observed after logging in.
	ErrNotAuthenticated = errors.New("session is not authenticated")
	// ErrSubmitNotFound means the profile form has no save button.
	ErrSubmitNotFound = errors.New("no save button found")
)

// FieldNotResolvedError is returned when no strategy located a field.
type FieldNotResolvedError struct {
	Label    string
	Artifact *artifact.Artifact
}

func (e *FieldNotResolvedError) Error() string {
	msg := fmt.Sprintf("field /%s/ not resolved by any strategy", e.Label)
	if e.Artifact != nil {
		msg += " (debug: " + e.Artifact.HTML + ")"
	}
	return msg
}

// AssertionTimeoutError is returned when an expected UI state did not show
// up within the assertion timeout.
type AssertionTimeoutError struct {
	What     string
	Expected string
	Actual   string
	After    time.Duration
}

func (e *AssertionTimeoutError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s (waited %s)", e.What, e.Expected, e.Actual, e.After)
}
