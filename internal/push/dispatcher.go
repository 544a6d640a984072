// Package push provides best-effort push notification dispatch.
// The core hands delivery requests to a Dispatcher and never waits on the
// outcome; no delivery receipts are tracked.
package push

import "context"

// Message is one delivery request for the push collaborator.
type Message struct {
	// Target is the push registration token of the receiving app install.
	Target string `json:"target"`

	// Platform is the push platform the token belongs to (ios, android).
	Platform string `json:"platform,omitempty"`

	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Dispatcher hands a message to the delivery pipeline. Implementations must
// not block on delivery; an error means the hand-off itself failed.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// NopDispatcher discards all messages. Used when push delivery is not
// configured and in tests.
type NopDispatcher struct{}

// Dispatch discards the message.
func (NopDispatcher) Dispatch(context.Context, Message) error { return nil }

var _ Dispatcher = NopDispatcher{}
