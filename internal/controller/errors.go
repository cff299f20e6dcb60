package controller

import "errors"

// Domain-specific errors for controller persistence.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when a controller does not exist.
	ErrNotFound = errors.New("controller: not found")

	// ErrExists is returned when creating a controller whose ID, or
	// brand + vendor identity pair, is already registered.
	ErrExists = errors.New("controller: already exists")

	// ErrInvalidStatus is returned when an unknown status value is used.
	ErrInvalidStatus = errors.New("controller: invalid status")
)
