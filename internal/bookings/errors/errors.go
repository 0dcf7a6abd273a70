package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid ID format")

	// ErrStatusChanged means a status update lost the race against another
	// transition on the same booking.
	ErrStatusChanged = errors.New("booking status changed concurrently")
)
