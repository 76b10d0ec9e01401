package testsupport

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// OpenDB opens a private in-memory SQLite database wrapped in bun. It is
// closed when the test ends.
func OpenDB(t testing.TB) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	// a single connection keeps the in-memory database alive and shared
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateTables creates a table for every model.
func CreateTables(t testing.TB, db bun.IDB, models ...any) {
	t.Helper()

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(context.Background()); err != nil {
			t.Fatalf("failed to create table for %T: %v", model, err)
		}
	}
}

// QueryCounter is a bun query hook that records executed queries.
type QueryCounter struct {
	count atomic.Int64

	mu      sync.Mutex
	queries []string
}

// CountQueries installs a QueryCounter on db.
func CountQueries(db *bun.DB) *QueryCounter {
	c := &QueryCounter{}
	db.AddQueryHook(c)
	return c
}

func (c *QueryCounter) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (c *QueryCounter) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	c.count.Add(1)
	c.mu.Lock()
	c.queries = append(c.queries, event.Query)
	c.mu.Unlock()
}

// Count returns the number of executed queries.
func (c *QueryCounter) Count() int {
	return int(c.count.Load())
}

// Queries returns the executed queries in order.
func (c *QueryCounter) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

// Reset clears the counter.
func (c *QueryCounter) Reset() {
	c.count.Store(0)
	c.mu.Lock()
	c.queries = nil
	c.mu.Unlock()
}
