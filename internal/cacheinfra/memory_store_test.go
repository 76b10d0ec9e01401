package cacheinfra

import (
	"context"
	"errors"
	"testing"
	"time"
)

func memberCount(s *MemoryStore, tag string) int {
	set, ok := s.members.Load(tag)
	if !ok {
		return 0
	}
	return set.Size()
}

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore(DefaultMemoryConfig())
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	return store
}

func TestMemoryConfig_Check(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MemoryConfig)
		field  string
	}{
		{name: "valid", mutate: func(*MemoryConfig) {}},
		{name: "zero capacity", mutate: func(c *MemoryConfig) { c.Capacity = 0 }, field: "Capacity"},
		{name: "zero shards", mutate: func(c *MemoryConfig) { c.NumShards = 0 }, field: "NumShards"},
		{name: "zero retention", mutate: func(c *MemoryConfig) { c.Retention = 0 }, field: "Retention"},
		{name: "eviction too high", mutate: func(c *MemoryConfig) { c.EvictionPercentage = 101 }, field: "EvictionPercentage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMemoryConfig()
			tt.mutate(&cfg)

			_, err := NewMemoryStore(cfg)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %s, want %s", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestMemoryStore_PutGetUnderSameTags(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)
	tags := []string{"user", "report"}

	if err := store.PutForever(ctx, tags, "k", []byte("v")); err != nil {
		t.Fatalf("PutForever() error = %v", err)
	}

	got, ok, err := store.Get(ctx, tags, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get() = %q, %v, %v", got, ok, err)
	}

	// a different tag set is a different namespace
	if _, ok, _ := store.Get(ctx, []string{"user"}, "k"); ok {
		t.Fatal("expected miss under a different tag set")
	}

	has, err := store.Has(ctx, tags, "k")
	if err != nil || !has {
		t.Fatalf("Has() = %v, %v", has, err)
	}
}

func TestMemoryStore_FlushAnyTagInvalidates(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)

	_ = store.PutForever(ctx, []string{"user", "report"}, "a", []byte("1"))
	_ = store.PutForever(ctx, []string{"user"}, "b", []byte("2"))
	_ = store.PutForever(ctx, []string{"post"}, "c", []byte("3"))

	if err := store.Flush(ctx, "user"); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if _, ok, _ := store.Get(ctx, []string{"user", "report"}, "a"); ok {
		t.Error("expected a to be flushed")
	}
	if _, ok, _ := store.Get(ctx, []string{"user"}, "b"); ok {
		t.Error("expected b to be flushed")
	}
	if _, ok, _ := store.Get(ctx, []string{"post"}, "c"); !ok {
		t.Error("expected c to survive")
	}
	if store.Size() != 1 {
		t.Errorf("Size() = %d, want 1", store.Size())
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := newTestMemoryStore(t).WithClock(func() time.Time { return now })

	if err := store.Put(ctx, []string{"user"}, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, []string{"user"}, "k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(time.Minute)
	if _, ok, _ := store.Get(ctx, []string{"user"}, "k"); ok {
		t.Fatal("expected miss at expiry")
	}

	if err := store.Put(ctx, []string{"user"}, "n", []byte("v"), 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, []string{"user"}, "n"); ok {
		t.Fatal("non-positive ttl should not store")
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(t)

	value := []byte("abc")
	_ = store.PutForever(ctx, []string{"user"}, "k", value)
	value[0] = 'x'

	got, _, _ := store.Get(ctx, []string{"user"}, "k")
	got[1] = 'y'

	again, _, _ := store.Get(ctx, []string{"user"}, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value was mutated: %q", again)
	}
}

func TestMemoryStore_MissesPruneTagMembers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newTestMemoryStore(t).WithClock(func() time.Time { return now })
	tags := []string{"user", "report"}

	if err := store.PutForever(ctx, tags, "evicted", []byte("a")); err != nil {
		t.Fatalf("PutForever() error = %v", err)
	}
	if err := store.Put(ctx, tags, "expiring", []byte("b"), time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got := memberCount(store, "user"); got != 2 {
		t.Fatalf("tracked keys = %d, want 2", got)
	}

	// stands in for sturdyc dropping the entry on its own
	store.client.Delete(namespacedKey(store.prefix, store.tagVersions(tags), "evicted"))
	if _, ok, _ := store.Get(ctx, tags, "evicted"); ok {
		t.Fatal("evicted entry should miss")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := store.Get(ctx, tags, "expiring"); ok {
		t.Fatal("expired entry should miss")
	}

	for _, tag := range tags {
		if got := memberCount(store, tag); got != 0 {
			t.Errorf("%s still tracks %d keys", tag, got)
		}
	}
}
