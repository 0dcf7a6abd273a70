package model

import (
	"time"
)

// Slot is a provider-declared time window available for exactly one
// consultation. Booked flips to true only inside the claim transaction and
// back to false only through a cancellation.
type Slot struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ProviderID string    `json:"provider_id" bson:"provider_id" validate:"required,mongodb"`
	StartTime  time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" bson:"end_time" validate:"required"`
	Booked     bool      `json:"booked" bson:"booked"`
	Recurring  bool      `json:"recurring" bson:"recurring"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Overlaps reports whether the two half-open intervals [s.Start, s.End) and
// [start, end) intersect.
func (s *Slot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}

type SlotUpdate struct {
	StartTime *time.Time `json:"start_time,omitempty" validate:"omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty" validate:"omitempty"`
	Recurring *bool      `json:"recurring,omitempty"`
}
