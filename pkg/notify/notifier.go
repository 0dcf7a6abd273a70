package notify

import (
	"context"
)

// Notifier is the notification sink boundary. Calls are fire-and-forget
// from the caller's point of view: a failed Notify must never unwind the
// operation that triggered it, so call sites log the error and move on.
type Notifier interface {
	Notify(ctx context.Context, userID, message, link string) error
	Close() error
}

// Noop discards every notification. Used when no brokers are configured and
// in tests.
type Noop struct{}

func (Noop) Notify(ctx context.Context, userID, message, link string) error {
	return nil
}

func (Noop) Close() error {
	return nil
}
