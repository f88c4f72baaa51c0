// Package tokens provides the push-token lookup consumed by the dispatcher.
// Two backends exist: the relational device_tokens table (always available)
// and an optional Redis mirror for deployments that keep profile data hot.
package tokens

import "context"

// Store resolves a user's registered push token.
type Store interface {
	// Lookup returns the token registered for userID. found is false when the
	// user has no registered token; this is a normal outcome, not an error.
	Lookup(ctx context.Context, userID string) (token string, found bool, err error)

	// Save registers or replaces the token for userID.
	Save(ctx context.Context, userID, token, platform string) error

	// Delete removes the registration for userID, if any.
	Delete(ctx context.Context, userID string) error
}
