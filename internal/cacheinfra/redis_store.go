package cacheinfra

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a tag store shared across processes.
//
// Layout, for prefix "repo:":
//
//	repo:tag:<tag>:version  current uuid of the tag
//	repo:tag:<tag>:keys     set of namespaced keys written under the tag
//	repo:<ns>:<key>         the value, ns derived from the tag versions
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redis and checks the connection with a ping.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, &ConfigError{Field: "Addr", Message: "must not be empty"}
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewRedisStoreWithClient(client, cfg.Prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Has(ctx context.Context, tags []string, key string) (bool, error) {
	nk, err := s.key(ctx, tags, key)
	if err != nil {
		return false, err
	}
	n, err := s.client.Exists(ctx, nk).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Get(ctx context.Context, tags []string, key string) ([]byte, bool, error) {
	nk, err := s.key(ctx, tags, key)
	if err != nil {
		return nil, false, err
	}

	value, err := s.client.Get(ctx, nk).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Put stores value for ttl. A non-positive ttl is a no-op.
func (s *RedisStore) Put(ctx context.Context, tags []string, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.put(ctx, tags, key, value, ttl)
}

func (s *RedisStore) PutForever(ctx context.Context, tags []string, key string, value []byte) error {
	return s.put(ctx, tags, key, value, 0)
}

// Flush rotates the version of every tag and deletes the keys tracked for it.
func (s *RedisStore) Flush(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		members, err := s.client.SMembers(ctx, s.membersKey(tag)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		pipe := s.client.TxPipeline()
		if len(members) > 0 {
			pipe.Del(ctx, members...)
		}
		pipe.Del(ctx, s.membersKey(tag))
		pipe.Set(ctx, s.versionKey(tag), uuid.NewString(), 0)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) put(ctx context.Context, tags []string, key string, value []byte, ttl time.Duration) error {
	nk, err := s.key(ctx, tags, key)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, nk, value, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, s.membersKey(tag), nk)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) key(ctx context.Context, tags []string, key string) (string, error) {
	versions := make([]string, len(tags))
	for i, tag := range tags {
		v, err := s.tagVersion(ctx, tag)
		if err != nil {
			return "", err
		}
		versions[i] = v
	}
	return namespacedKey(s.prefix, versions, key), nil
}

// tagVersion reads the version of tag, creating it when missing. SETNX keeps
// concurrent writers agreeing on a single version.
func (s *RedisStore) tagVersion(ctx context.Context, tag string) (string, error) {
	vk := s.versionKey(tag)

	v, err := s.client.Get(ctx, vk).Result()
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", err
	}

	candidate := uuid.NewString()
	created, err := s.client.SetNX(ctx, vk, candidate, 0).Result()
	if err != nil {
		return "", err
	}
	if created {
		return candidate, nil
	}
	return s.client.Get(ctx, vk).Result()
}

func (s *RedisStore) versionKey(tag string) string {
	return s.prefix + "tag:" + tag + ":version"
}

func (s *RedisStore) membersKey(tag string) string {
	return s.prefix + "tag:" + tag + ":keys"
}
