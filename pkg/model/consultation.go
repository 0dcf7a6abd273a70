package model

import (
	"time"
)

// Consultation is a slot-backed appointment between a client and the slot's
// provider. It is created only by the booking engine's claim; a slot backs
// at most one non-cancelled consultation.
type Consultation struct {
	ID         string             `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	SlotID     string             `json:"slot_id" bson:"slot_id" validate:"required,mongodb"`
	ProviderID string             `json:"provider_id" bson:"provider_id" validate:"required,mongodb"`
	ClientID   string             `json:"client_id" bson:"client_id" validate:"required,mongodb"`
	ServiceID  string             `json:"service_id,omitempty" bson:"service_id,omitempty" validate:"omitempty,mongodb"`
	Notes      string             `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=2000"`
	Status     ConsultationStatus `json:"status" bson:"status" validate:"required,oneof=pending confirmed completed cancelled"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// ClaimInput is what a client submits to claim a slot.
type ClaimInput struct {
	SlotID    string `json:"slot_id" validate:"required,mongodb"`
	ServiceID string `json:"service_id,omitempty" validate:"omitempty,mongodb"`
	Notes     string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// TransitionInput names the requested target state and an optional reason
// (kept on cancellations).
type TransitionInput struct {
	Target ConsultationStatus `json:"target" validate:"required,oneof=confirmed completed cancelled"`
	Reason string             `json:"reason,omitempty" validate:"omitempty,max=500"`
}
