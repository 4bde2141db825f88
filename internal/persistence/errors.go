package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("persistence: conflict")
	// ErrConstraintViolation is returned when a record is missing required fields or
	// references a row that does not exist.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrNotProvisioned is returned when the backing table has not been created yet.
	ErrNotProvisioned = errors.New("persistence: table not provisioned")
)
