package errors

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("database connection failed")
	wrapped := Wrap(originalErr, CodeInternal, "internal error", http.StatusInternalServerError)

	if wrapped.Err != originalErr {
		t.Errorf("expected wrapped error to contain original error")
	}
	if !errors.Is(wrapped, originalErr) {
		t.Errorf("expected errors.Is to reach the original error")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "resource not found",
			},
			expected: "NOT_FOUND: resource not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDomainConstructors(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"invalid interval", InvalidInterval(now, now), CodeInvalidInterval, http.StatusUnprocessableEntity},
		{"past start", PastStart(now), CodePastStart, http.StatusUnprocessableEntity},
		{"overlap", OverlapConflict(now, now.Add(time.Hour)), CodeOverlapConflict, http.StatusConflict},
		{"self booking", SelfBooking(), CodeSelfBooking, http.StatusConflict},
		{"slot expired", SlotExpired("abc"), CodeSlotExpired, http.StatusConflict},
		{"already booked", AlreadyBooked("abc"), CodeAlreadyBooked, http.StatusConflict},
		{"illegal transition", IllegalTransition("completed", "cancelled"), CodeIllegalTransition, http.StatusConflict},
		{"not authorized", NotAuthorized("not yours"), CodeNotAuthorized, http.StatusForbidden},
		{"busy", Busy("slot contended"), CodeBusy, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, tt.err.StatusCode())
			}
		})
	}
}

func TestIllegalTransitionDetails(t *testing.T) {
	err := IllegalTransition("completed", "cancelled")

	if err.Details["current_status"] != "completed" {
		t.Errorf("expected current_status detail, got %v", err.Details["current_status"])
	}
	if err.Details["requested_status"] != "cancelled" {
		t.Errorf("expected requested_status detail, got %v", err.Details["requested_status"])
	}
}

func TestCodeOf(t *testing.T) {
	if code := CodeOf(AlreadyBooked("abc")); code != CodeAlreadyBooked {
		t.Errorf("expected %s, got %s", CodeAlreadyBooked, code)
	}
	if code := CodeOf(errors.New("plain")); code != "" {
		t.Errorf("expected empty code for plain error, got %s", code)
	}
}

func TestAsAppError(t *testing.T) {
	plain := errors.New("boom")
	appErr := AsAppError(plain)

	if appErr.Code != CodeInternal {
		t.Errorf("expected plain errors to map to %s, got %s", CodeInternal, appErr.Code)
	}
	if !errors.Is(appErr, plain) {
		t.Error("expected the original error to be preserved")
	}

	typed := NotFound("Slot")
	if AsAppError(typed) != typed {
		t.Error("expected AppError to pass through unchanged")
	}
}
