package repository

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned by the versioned ticket update when the
	// expected version no longer matches the stored one.
	ErrVersionConflict = errors.New("version conflict")
)
