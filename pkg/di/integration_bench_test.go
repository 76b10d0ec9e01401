package di

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/goliatone/go-repository-kit/pkg/testsupport"
	"github.com/goliatone/go-repository-kit/repository"
)

// TestConcurrentAccess runs cached reads and writes from many goroutines, each
// on its own scoped copy of one repository.
func TestConcurrentAccess(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("Failed to create DI container: %v", err)
	}

	db := testsupport.SetupUsers(t)
	testsupport.SeedUsers(t, db, 20)

	base, err := NewRepository[User](container, db)
	if err != nil {
		t.Fatalf("NewRepository() failed: %v", err)
	}
	base.Cachable("", nil, 0)

	ctx := context.Background()
	const numGoroutines = 20
	const operationsPerGoroutine = 10

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*operationsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			repo := base.Scoped()

			for j := 0; j < operationsPerGoroutine; j++ {
				switch j % 5 {
				case 0:
					if _, err := repo.Create(ctx, repository.Attributes{"name": fmt.Sprintf("w%d-%d", workerID, j)}); err != nil {
						errs <- fmt.Errorf("worker %d create: %w", workerID, err)
					}
				case 1:
					if _, err := repo.Paginate(ctx, 5); err != nil {
						errs <- fmt.Errorf("worker %d paginate: %w", workerID, err)
					}
				default:
					res, err := repo.Find(ctx, int64(j%20+1))
					if err != nil {
						errs <- fmt.Errorf("worker %d find: %w", workerID, err)
						continue
					}
					if res.Item == nil {
						errs <- fmt.Errorf("worker %d find: missing user %d", workerID, j%20+1)
					}
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	res, err := base.SkipCriteria(false).ForgetCache().All(ctx)
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	if want := 20 + numGoroutines*2; len(res.Items) != want {
		t.Errorf("Expected %d users, got %d", want, len(res.Items))
	}
}

func BenchmarkCachedFind(b *testing.B) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		b.Fatalf("Failed to create DI container: %v", err)
	}
	db := testsupport.SetupUsers(b)
	testsupport.SeedUsers(b, db, 100)

	repo, err := NewRepository[User](container, db)
	if err != nil {
		b.Fatalf("NewRepository() failed: %v", err)
	}
	repo.Cachable("", nil, 0)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := repo.Find(ctx, int64(i%100+1)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUncachedFind(b *testing.B) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		b.Fatalf("Failed to create DI container: %v", err)
	}
	db := testsupport.SetupUsers(b)
	testsupport.SeedUsers(b, db, 100)

	repo, err := NewRepository[User](container, db)
	if err != nil {
		b.Fatalf("NewRepository() failed: %v", err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := repo.Find(ctx, int64(i%100+1)); err != nil {
			b.Fatal(err)
		}
	}
}
