package port

import "context"

// IdempotencyStore deduplicates replayed checkout requests at the gateway.
type IdempotencyStore interface {
	// SetIdempotency claims a key, returning false if it was already taken.
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
