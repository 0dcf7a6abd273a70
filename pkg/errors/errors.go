package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeInvalidInput = "INVALID_INPUT"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"

	// Booking-core taxonomy. Each failure mode keeps a stable code so a
	// client UI can branch on cause.
	CodeInvalidInterval   = "INVALID_INTERVAL"
	CodePastStart         = "PAST_START"
	CodeOverlapConflict   = "OVERLAP_CONFLICT"
	CodeSelfBooking       = "SELF_BOOKING_FORBIDDEN"
	CodeSlotExpired       = "SLOT_EXPIRED"
	CodeAlreadyBooked     = "ALREADY_BOOKED"
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeNotAuthorized     = "NOT_AUTHORIZED"
	CodeBusy              = "BUSY"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	response := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
	data, _ := json.Marshal(response)
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Unavailable(service string) *AppError {
	return &AppError{
		Code:       CodeUnavailable,
		Message:    fmt.Sprintf("%s is temporarily unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// InvalidInterval rejects a slot whose start is not strictly before its end.
func InvalidInterval(start, end time.Time) *AppError {
	return &AppError{
		Code:       CodeInvalidInterval,
		Message:    "start_time must be before end_time",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"start_time": start.Format(time.RFC3339),
			"end_time":   end.Format(time.RFC3339),
		},
	}
}

// PastStart rejects a slot whose start is not strictly in the future.
func PastStart(start time.Time) *AppError {
	return &AppError{
		Code:       CodePastStart,
		Message:    "start_time must be in the future",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"start_time": start.Format(time.RFC3339),
		},
	}
}

// OverlapConflict rejects a slot intersecting an existing slot of the same
// provider.
func OverlapConflict(existingStart, existingEnd time.Time) *AppError {
	return &AppError{
		Code:       CodeOverlapConflict,
		Message:    "slot overlaps an existing slot",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"existing_start": existingStart.Format(time.RFC3339),
			"existing_end":   existingEnd.Format(time.RFC3339),
		},
	}
}

// SelfBooking rejects a provider claiming their own slot.
func SelfBooking() *AppError {
	return &AppError{
		Code:       CodeSelfBooking,
		Message:    "providers cannot book their own slots",
		HTTPStatus: http.StatusConflict,
	}
}

// SlotExpired rejects a claim on a slot whose start time has passed.
func SlotExpired(slotID string) *AppError {
	return &AppError{
		Code:       CodeSlotExpired,
		Message:    "slot start time has passed",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"slot_id": slotID,
		},
	}
}

// AlreadyBooked is what a losing claim contender observes.
func AlreadyBooked(slotID string) *AppError {
	return &AppError{
		Code:       CodeAlreadyBooked,
		Message:    "slot is already booked, pick another slot",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"slot_id": slotID,
		},
	}
}

// IllegalTransition rejects a state change the lifecycle table forbids,
// naming both states.
func IllegalTransition(current, requested string) *AppError {
	return &AppError{
		Code:       CodeIllegalTransition,
		Message:    fmt.Sprintf("cannot transition from %s to %s", current, requested),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"current_status":   current,
			"requested_status": requested,
		},
	}
}

// NotAuthorized rejects an actor who is not allowed to perform the
// operation on this record. Distinct from Unauthorized: the identity is
// trusted, the actor just lacks authority here.
func NotAuthorized(message string) *AppError {
	return &AppError{
		Code:       CodeNotAuthorized,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// Busy surfaces a lock-wait timeout; the caller should retry shortly.
func Busy(message string) *AppError {
	return &AppError{
		Code:       CodeBusy,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// CodeOf returns the stable code of err, or empty when err is not an
// AppError.
func CodeOf(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ""
}
