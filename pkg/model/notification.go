package model

import "time"

// Notification is the event payload handed to the notification sink on
// state transitions. Delivery and read-state are the consumer's concern.
type Notification struct {
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
