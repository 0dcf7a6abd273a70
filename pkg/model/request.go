package model

import (
	"time"
)

// ConsultationRequest is the slot-free Q&A channel: a client addresses a
// question to a consultant, who answers asynchronously. No shared mutable
// resource besides the record itself, so no locking is involved.
type ConsultationRequest struct {
	ID           string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ClientID     string        `json:"client_id" bson:"client_id" validate:"required,mongodb"`
	ConsultantID string        `json:"consultant_id" bson:"consultant_id" validate:"required,mongodb"`
	Question     string        `json:"question" bson:"question" validate:"required,min=10,max=5000"`
	Response     string        `json:"response,omitempty" bson:"response,omitempty" validate:"omitempty,max=10000"`
	Status       RequestStatus `json:"status" bson:"status" validate:"required,oneof=pending accepted rejected completed"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt    time.Time     `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// CanRespond reports whether userID is allowed to write a response on this
// request right now: only the addressed consultant, and only while the
// request is still open.
func (r *ConsultationRequest) CanRespond(userID string) bool {
	return r.ConsultantID == userID && r.Status.Respondable()
}

type RespondInput struct {
	Response string        `json:"response" validate:"required,min=1,max=10000"`
	Status   RequestStatus `json:"status" validate:"required,oneof=accepted rejected completed"`
}
