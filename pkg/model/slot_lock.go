package model

import "time"

// SlotLock is the advisory lock record serializing concurrent claims on a
// single slot. The _id is the slot id, so insertion doubles as acquisition:
// a duplicate key means another claim holds the slot. ExpiresAt bounds how
// long a stalled holder can keep the lock.
type SlotLock struct {
	SlotID    string    `bson:"_id" json:"slot_id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
