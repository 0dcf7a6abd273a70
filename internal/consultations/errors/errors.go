package errors

import "errors"

var (
	ErrSlotNotFound = errors.New("slot not found")

	ErrConsultationNotFound = errors.New("consultation not found")

	ErrInvalidID = errors.New("invalid ID format")

	// ErrAlreadyBooked is returned by the conditional booked-flag update
	// when the slot was claimed between the caller's read and its write.
	ErrAlreadyBooked = errors.New("slot is already booked")

	// ErrSlotBooked rejects provider edits and deletes of a claimed slot.
	ErrSlotBooked = errors.New("slot is booked and cannot be modified")

	// ErrLockHeld means another claim currently holds the slot's advisory
	// lock.
	ErrLockHeld = errors.New("slot lock is held by another claim")

	// ErrNotReleased is returned when releasing a slot that was not booked.
	ErrNotReleased = errors.New("slot was not booked")

	// ErrStatusChanged means a status transition lost the race: the
	// consultation no longer holds the status the caller read.
	ErrStatusChanged = errors.New("consultation status changed concurrently")
)
