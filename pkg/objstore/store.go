// Package objstore is the gateway to the S3-compatible object store holding
// processed assets and previews. It surfaces raw failures; retry policy
// belongs to the caller.
package objstore

import (
	"context"
	"io"
	"time"
)

type Store interface {
	// Put writes the object under key with idempotent overwrite semantics.
	// The caller derives the key; the store never invents one.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// SignedGet returns a time-limited read URL for key. An empty key
	// resolves to ("", nil) so callers can degrade gracefully while a
	// preview is still being generated.
	SignedGet(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Delete removes key best-effort. Callers log failures and move on.
	Delete(ctx context.Context, key string) error
}
