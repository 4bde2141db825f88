package application

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute such as an e-mail is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when an e-mail/password pair or token is rejected.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned for sessions past their expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned for sessions that were signed out.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrAuthenticationRequired is returned when an operation needs a signed-in user and none is present.
	ErrAuthenticationRequired = errors.New("application: authentication required")
	// ErrNotProvisioned is returned when the backing store has not been migrated.
	ErrNotProvisioned = errors.New("application: store not provisioned")
	// ErrConstraint is returned when the store rejects a record as inconsistent.
	ErrConstraint = errors.New("application: constraint violation")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// FailureKind classifies a Failure.
type FailureKind string

const (
	// FailureTransient covers network and store errors that may succeed on a later attempt.
	FailureTransient FailureKind = "transient"
	// FailurePrecondition covers missing sessions and unprovisioned stores.
	FailurePrecondition FailureKind = "precondition"
	// FailureResolution covers a profile that could not be resolved for a session.
	FailureResolution FailureKind = "resolution"
)

// Failure is the structured error returned by the history and statistics adapters. Message
// is safe to show to end users.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	if f.Err == nil {
		return f.Message
	}
	return f.Message + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// newFailure classifies err into a Failure carrying message.
func newFailure(message string, err error) *Failure {
	switch {
	case errors.Is(err, ErrAuthenticationRequired), errors.Is(err, ErrUnauthorized):
		return &Failure{Kind: FailurePrecondition, Message: "Authentication required", Err: err}
	case errors.Is(err, ErrNotProvisioned):
		return &Failure{Kind: FailurePrecondition, Message: "Database setup required", Err: err}
	}
	return &Failure{Kind: FailureTransient, Message: message, Err: err}
}
