package storage

import (
	"context"
	"time"
)

// PreviewExpiry is how long a document preview link stays valid.
const PreviewExpiry = time.Hour

// Signer issues time-limited read URLs for stored documents.
type Signer interface {
	SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}
