package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-repository-kit/cache"
	"github.com/goliatone/go-repository-kit/pkg/testsupport"
)

type User = testsupport.User

type fixture struct {
	db      *bun.DB
	counter *testsupport.QueryCounter
	store   cache.TagStore
	users   []User
	repo    *Repository[User]
}

func newFixture(t *testing.T, seed int, opts ...Option) *fixture {
	t.Helper()

	db := testsupport.SetupUsers(t)
	users := testsupport.SeedUsers(t, db, seed)

	store, err := cache.NewTagStore(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("NewTagStore() error = %v", err)
	}

	counter := testsupport.CountQueries(db)

	repo, err := New[User](db, append([]Option{WithStore(store)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &fixture{db: db, counter: counter, store: store, users: users, repo: repo}
}

func activeUsers() Criterion[User] {
	return Named[User]("active", CriterionFunc[User](func(q *bun.SelectQuery, _ *Repository[User]) *bun.SelectQuery {
		return q.Where("?TableAlias.status = ?", "active")
	}))
}

func olderThan(age int) Criterion[User] {
	return CriterionFunc[User](func(q *bun.SelectQuery, _ *Repository[User]) *bun.SelectQuery {
		return q.Where("?TableAlias.age > ?", age)
	})
}

// recordingStore wraps a TagStore and records calls, optionally failing them.
type recordingStore struct {
	cache.TagStore

	mu      sync.Mutex
	gets    int
	puts    []putCall
	flushes [][]string

	getErr   error
	putErr   error
	flushErr error
}

type putCall struct {
	tags    []string
	key     string
	ttl     time.Duration
	forever bool
}

func (s *recordingStore) Get(ctx context.Context, tags []string, key string) ([]byte, bool, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	return s.TagStore.Get(ctx, tags, key)
}

func (s *recordingStore) Put(ctx context.Context, tags []string, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.puts = append(s.puts, putCall{tags: tags, key: key, ttl: ttl})
	s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	return s.TagStore.Put(ctx, tags, key, value, ttl)
}

func (s *recordingStore) PutForever(ctx context.Context, tags []string, key string, value []byte) error {
	s.mu.Lock()
	s.puts = append(s.puts, putCall{tags: tags, key: key, forever: true})
	s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	return s.TagStore.PutForever(ctx, tags, key, value)
}

func (s *recordingStore) Flush(ctx context.Context, tags ...string) error {
	s.mu.Lock()
	s.flushes = append(s.flushes, tags)
	s.mu.Unlock()
	if s.flushErr != nil {
		return s.flushErr
	}
	return s.TagStore.Flush(ctx, tags...)
}

func newRecordingStore(t *testing.T) *recordingStore {
	t.Helper()
	inner, err := cache.NewTagStore(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("NewTagStore() error = %v", err)
	}
	return &recordingStore{TagStore: inner}
}

func names(users []User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.Name
	}
	return out
}
