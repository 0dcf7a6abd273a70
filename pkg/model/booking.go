package model

import (
	"time"
)

// Booking is the service-oriented booking record. A booking may optionally
// hold a slot; when it does, the slot is claimed and released under the same
// discipline as a consultation's.
type Booking struct {
	ID           string             `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ClientID     string             `json:"client_id" bson:"client_id" validate:"required,mongodb"`
	ServiceID    string             `json:"service_id" bson:"service_id" validate:"required,mongodb"`
	SlotID       string             `json:"slot_id,omitempty" bson:"slot_id,omitempty" validate:"omitempty,mongodb"`
	Status       ConsultationStatus `json:"status" bson:"status" validate:"required,oneof=pending confirmed completed cancelled"`
	Notes        string             `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=2000"`
	CancelReason string             `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty" validate:"omitempty,max=500"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// HasSlot reports whether this booking holds a slot and therefore
// participates in the claim/release protocol.
func (b *Booking) HasSlot() bool {
	return b.SlotID != ""
}
