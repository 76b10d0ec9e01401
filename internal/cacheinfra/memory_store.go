package cacheinfra

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"
)

// memoryEntry is what we keep in sturdyc. A zero expiresAt means the entry
// lives until it is flushed or sturdyc's own retention drops it.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type keySet = *xsync.MapOf[string, struct{}]

// MemoryStore is an in-process tag store backed by a sturdyc client.
//
// Tags are versioned: every tag maps to a uuid, and entries live under a
// namespace derived from the versions of their tag set. Flushing a tag rotates
// its version and drops the keys that were written under it.
type MemoryStore struct {
	client   *sturdyc.Client[memoryEntry]
	versions *xsync.MapOf[string, string]
	members  *xsync.MapOf[string, keySet]
	prefix   string
	clock    func() time.Time
}

// NewMemoryStore validates the configuration and builds a sturdyc client with it.
func NewMemoryStore(cfg MemoryConfig) (*MemoryStore, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}

	client := sturdyc.New[memoryEntry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.Retention,
		cfg.EvictionPercentage,
		cfg.sturdycOptions()...,
	)

	return &MemoryStore{
		client:   client,
		versions: xsync.NewMapOf[string, string](),
		members:  xsync.NewMapOf[string, keySet](),
		prefix:   cfg.Prefix,
		clock:    time.Now,
	}, nil
}

// WithClock replaces the time source used for expiry checks.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

// Has reports whether a live entry exists for key under tags.
func (s *MemoryStore) Has(ctx context.Context, tags []string, key string) (bool, error) {
	_, ok, err := s.Get(ctx, tags, key)
	return ok, err
}

// Get returns a copy of the stored bytes.
func (s *MemoryStore) Get(_ context.Context, tags []string, key string) ([]byte, bool, error) {
	nk := namespacedKey(s.prefix, s.tagVersions(tags), key)

	entry, ok := s.client.Get(nk)
	if !ok {
		s.forget(tags, nk)
		return nil, false, nil
	}

	if !entry.expiresAt.IsZero() && !s.clock().Before(entry.expiresAt) {
		s.client.Delete(nk)
		s.forget(tags, nk)
		return nil, false, nil
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

// Put stores value for ttl. A non-positive ttl is a no-op.
func (s *MemoryStore) Put(_ context.Context, tags []string, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.put(tags, key, value, s.clock().Add(ttl))
	return nil
}

// PutForever stores value without an expiry.
func (s *MemoryStore) PutForever(_ context.Context, tags []string, key string, value []byte) error {
	s.put(tags, key, value, time.Time{})
	return nil
}

// Flush invalidates every entry written under any of the given tags.
func (s *MemoryStore) Flush(_ context.Context, tags ...string) error {
	for _, tag := range tags {
		s.versions.Store(tag, uuid.NewString())

		set, ok := s.members.LoadAndDelete(tag)
		if !ok {
			continue
		}
		set.Range(func(nk string, _ struct{}) bool {
			s.client.Delete(nk)
			return true
		})
	}
	return nil
}

// Size returns the number of entries currently held by sturdyc.
func (s *MemoryStore) Size() int {
	return s.client.Size()
}

func (s *MemoryStore) put(tags []string, key string, value []byte, expiresAt time.Time) {
	nk := namespacedKey(s.prefix, s.tagVersions(tags), key)

	stored := make([]byte, len(value))
	copy(stored, value)
	s.client.Set(nk, memoryEntry{value: stored, expiresAt: expiresAt})

	for _, tag := range tags {
		set, _ := s.members.LoadOrCompute(tag, func() keySet {
			return xsync.NewMapOf[string, struct{}]()
		})
		set.Store(nk, struct{}{})
	}
}

// forget drops nk from the member sets of tags once sturdyc no longer holds it.
func (s *MemoryStore) forget(tags []string, nk string) {
	for _, tag := range tags {
		if set, ok := s.members.Load(tag); ok {
			set.Delete(nk)
		}
	}
}

func (s *MemoryStore) tagVersions(tags []string) []string {
	versions := make([]string, len(tags))
	for i, tag := range tags {
		v, _ := s.versions.LoadOrCompute(tag, uuid.NewString)
		versions[i] = v
	}
	return versions
}
