package model

import "testing"

func TestConsultationStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    ConsultationStatus
		to      ConsultationStatus
		allowed bool
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to completed", StatusPending, StatusCompleted, false},
		{"confirmed to completed", StatusConfirmed, StatusCompleted, true},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"confirmed to pending", StatusConfirmed, StatusPending, false},
		{"completed is terminal", StatusCompleted, StatusCancelled, false},
		{"completed cannot reopen", StatusCompleted, StatusConfirmed, false},
		{"cancelled is terminal", StatusCancelled, StatusConfirmed, false},
		{"cancelled cannot complete", StatusCancelled, StatusCompleted, false},
		{"no self transition", StatusConfirmed, StatusConfirmed, false},
		{"unknown source", ConsultationStatus("archived"), StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestConsultationStatusTerminal(t *testing.T) {
	for _, s := range []ConsultationStatus{StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []ConsultationStatus{StatusPending, StatusConfirmed} {
		if s.Terminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
	if ConsultationStatus("archived").Terminal() {
		t.Error("unknown status must not report terminal")
	}
}

func TestRequestStatusRespondable(t *testing.T) {
	tests := []struct {
		status RequestStatus
		want   bool
	}{
		{RequestPending, true},
		{RequestAccepted, true},
		{RequestRejected, false},
		{RequestCompleted, false},
		{RequestStatus("draft"), false},
	}

	for _, tt := range tests {
		if got := tt.status.Respondable(); got != tt.want {
			t.Errorf("Respondable(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRequestStatusCanRespondTo(t *testing.T) {
	if !RequestPending.CanRespondTo(RequestAccepted) {
		t.Error("pending request should accept a response moving it to accepted")
	}
	if !RequestAccepted.CanRespondTo(RequestCompleted) {
		t.Error("accepted request should accept a response moving it to completed")
	}
	if RequestPending.CanRespondTo(RequestPending) {
		t.Error("pending is not a legal respond target")
	}
	if RequestRejected.CanRespondTo(RequestCompleted) {
		t.Error("rejected request must not be respondable")
	}
}
