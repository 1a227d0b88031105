package storage

import "context"

// ObjectStore accepts bytes plus a content type and a path-like key, and
// returns a publicly fetchable URL for the stored object.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}
