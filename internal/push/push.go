// Package push wraps the external push gateway used to reach mobile clients.
// Delivery is best effort; callers are expected to tolerate per-message
// failures.
package push

import "context"

// Message is a single push notification addressed to one device token.
type Message struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Result describes a successful gateway delivery.
type Result struct {
	MessageID string `json:"message_id"`
}

// Gateway sends one push message. Implementations must respect ctx deadlines.
type Gateway interface {
	Send(ctx context.Context, msg Message) (*Result, error)
}
