package di

import (
	"io"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-kit/cache"
	"github.com/goliatone/go-repository-kit/repository"
)

// Container holds the cache components shared by every repository of an
// application: the tag store, the codec, the key serializer and the logger.
// Repositories built through the same container share one tag store, so a
// write on one of them invalidates what the others cached under its tags.
type Container struct {
	store         cache.TagStore
	codec         cache.Codec
	keySerializer cache.KeySerializer
	logger        *zap.Logger
	config        cache.Config
}

// NewContainer builds the tag store described by config. A nil logger is
// replaced by a no-op logger.
func NewContainer(config cache.Config, logger *zap.Logger) (*Container, error) {
	store, err := cache.NewTagStore(config)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Debug("cache container ready",
		zap.String("driver", config.Driver),
		zap.Duration("default_ttl", config.DefaultTTL),
	)

	return &Container{
		store:         store,
		codec:         cache.NewMsgpackCodec(),
		keySerializer: cache.NewDefaultKeySerializer(),
		logger:        logger,
		config:        config,
	}, nil
}

// NewContainerWithDefaults creates a container with the in-memory store.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(cache.DefaultConfig(), nil)
}

// Store returns the shared tag store.
func (c *Container) Store() cache.TagStore {
	return c.store
}

// Codec returns the codec cached results are encoded with.
func (c *Container) Codec() cache.Codec {
	return c.codec
}

// KeySerializer returns the shared key serializer.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Logger returns the container logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns a copy of the cache configuration.
func (c *Container) Config() cache.Config {
	return c.config
}

// Close releases the tag store when it holds a connection.
func (c *Container) Close() error {
	if closer, ok := c.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// NewRepository creates a repository for T wired to the container. opts are
// applied after the container defaults and may override them.
//
// Since Go methods cannot have type parameters, this is a package-level function.
// Example: NewRepository[User](container, db, repository.WithPreparer(p))
func NewRepository[T any](c *Container, db bun.IDB, opts ...repository.Option) (*repository.Repository[T], error) {
	base := []repository.Option{
		repository.WithStore(c.store),
		repository.WithCodec(c.codec),
		repository.WithKeySerializer(c.keySerializer),
		repository.WithLogger(c.logger),
		repository.WithDefaultTTL(c.config.DefaultTTL),
	}
	return repository.New[T](db, append(base, opts...)...)
}
