// Package cache holds the contracts repositories cache through.
//
// # Tag stores
//
// A TagStore keeps values under a key and a set of tags. An entry is only
// reachable through the same tag set it was written with, and flushing any one
// of its tags makes it unreachable:
//
//	store, _ := cache.NewTagStore(cache.DefaultConfig())
//	_ = store.Put(ctx, []string{"user", "report"}, key, data, time.Hour)
//	_ = store.Flush(ctx, "user") // the entry above is gone
//
// Two backends ship with the package, selected through Config.Driver:
//
//   - memory: an in-process sturdyc cache. Entries written "forever" are still
//     bounded by the configured retention.
//   - redis: a go-redis client, suitable when several processes share the cache.
//
// # Keys
//
// RequestKey fingerprints a request from its path and parameters. Parameters
// with an empty or "0" value are ignored, the rest are sorted by name, so two
// requests that differ only in parameter order share a key.
//
// When no request is available the repository builds keys with a KeySerializer.
// The default serializer walks values with reflection:
//
//   - basic types are rendered directly
//   - slices, arrays and maps recurse, maps sorted by key
//   - structs render their exported fields
//   - functions and channels use their pointer, stable only within one process
//   - anything else falls back to JSON
//
// Provide your own KeySerializer if keys must survive a restart while function
// values are part of the arguments.
//
// # Codec
//
// Values are encoded with msgpack before they reach the store. Map keys are
// sorted and integers compacted, so decoding and re-encoding a cached value
// yields the same bytes.
package cache
