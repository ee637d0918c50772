// Package presence tracks which users currently hold at least one live
// websocket session. The directory is pluggable: a single API process keeps
// it in memory, while multiple processes behind a load balancer share a
// Redis registry.
package presence

import "context"

// Directory is the session registry consulted for online-user features.
// Connect/Disconnect are reference counted, so a user with several open
// sessions stays online until the last one closes.
type Directory interface {
	Connect(ctx context.Context, userID string) error
	Disconnect(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	Online(ctx context.Context) ([]string, error)
}
