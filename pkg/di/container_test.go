package di

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/goliatone/go-repository-kit/cache"
	"github.com/goliatone/go-repository-kit/internal/cacheinfra"
)

func TestNewContainer(t *testing.T) {
	config := cache.DefaultConfig()
	config.DefaultTTL = 5 * time.Minute
	config.Memory.Capacity = 1000
	config.Memory.NumShards = 16

	container, err := NewContainer(config, nil)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}

	if container.Store() == nil {
		t.Error("Container should have a non-nil tag store")
	}
	if container.Codec() == nil {
		t.Error("Container should have a non-nil codec")
	}
	if container.KeySerializer() == nil {
		t.Error("Container should have a non-nil key serializer")
	}
	if container.Logger() == nil {
		t.Error("Container should fall back to a no-op logger")
	}

	stored := container.Config()
	if stored.DefaultTTL != config.DefaultTTL {
		t.Errorf("Expected TTL %v, got %v", config.DefaultTTL, stored.DefaultTTL)
	}
	if stored.Memory.Capacity != config.Memory.Capacity {
		t.Errorf("Expected capacity %d, got %d", config.Memory.Capacity, stored.Memory.Capacity)
	}
	if _, ok := container.Store().(*cacheinfra.MemoryStore); !ok {
		t.Errorf("Expected the memory store, got %T", container.Store())
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	if container.Config().Driver != cache.DriverMemory {
		t.Errorf("Expected memory driver, got %q", container.Config().Driver)
	}
	if container.Config().DefaultTTL != cache.DefaultTTL {
		t.Errorf("Expected default TTL %v, got %v", cache.DefaultTTL, container.Config().DefaultTTL)
	}
	if err := container.Close(); err != nil {
		t.Errorf("Close() on the memory store failed: %v", err)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	invalid := cache.DefaultConfig()
	invalid.Memory.Capacity = 0

	if _, err := NewContainer(invalid, nil); err == nil {
		t.Error("NewContainer() should fail with invalid config")
	}
}

func TestNewContainer_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	config := cache.DefaultConfig()
	config.Driver = cache.DriverRedis
	config.Redis.Addr = mr.Addr()

	container, err := NewContainer(config, nil)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	if _, ok := container.Store().(*cacheinfra.RedisStore); !ok {
		t.Fatalf("Expected the redis store, got %T", container.Store())
	}

	ctx := context.Background()
	if err := container.Store().PutForever(ctx, []string{"user"}, "k", []byte("v")); err != nil {
		t.Fatalf("PutForever() failed: %v", err)
	}
	if err := container.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	if container.Store() != container.Store() {
		t.Error("Store() should return the same instance (singleton behavior)")
	}
	if container.KeySerializer() != container.KeySerializer() {
		t.Error("KeySerializer() should return the same instance (singleton behavior)")
	}
}

func TestKeySerializerIntegration(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	keySerializer := container.KeySerializer()

	testCases := []struct {
		name     string
		method   string
		args     []any
		expected string
	}{
		{name: "no args", method: "user::all", args: []any{}, expected: "user::all"},
		{name: "single id", method: "user::find", args: []any{int64(7)}, expected: "user::find::7"},
		{name: "multiple args", method: "user::where", args: []any{"age", ">", 10}, expected: "user::where::age::>::10"},
		{name: "nil arg", method: "user::find_by", args: []any{"email", nil}, expected: "user::find_by::email::nil"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := keySerializer.SerializeKey(tc.method, tc.args...)
			if result != tc.expected {
				t.Errorf("Expected key %q, got %q", tc.expected, result)
			}
		})
	}
}
