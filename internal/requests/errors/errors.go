package errors

import "errors"

var (
	ErrNotFound = errors.New("consultation request not found")

	ErrInvalidID = errors.New("invalid ID format")

	// ErrStatusChanged means a respond lost the race: the request no longer
	// holds the status the consultant read.
	ErrStatusChanged = errors.New("request status changed concurrently")
)
