package cache

import (
	"context"
	"time"
)

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// TagStore is the tag-scoped key/value contract the repository caches on top of.
// Entries written under a tag set are only reachable through that same tag set,
// and flushing any one of the tags makes them unreachable.
type TagStore interface {
	Has(ctx context.Context, tags []string, key string) (bool, error)
	Get(ctx context.Context, tags []string, key string) ([]byte, bool, error)
	Put(ctx context.Context, tags []string, key string, value []byte, ttl time.Duration) error
	PutForever(ctx context.Context, tags []string, key string, value []byte) error
	Flush(ctx context.Context, tags ...string) error
}

// Codec turns exported repository results into bytes and back.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
