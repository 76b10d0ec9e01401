package cache

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-repository-kit/internal/cacheinfra"
)

// Supported tag store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// DefaultTTL is used by TTL-based cache policies that do not name one.
const DefaultTTL = 60 * time.Minute

// Config selects and configures the tag store used by repositories.
type Config struct {
	Driver     string        `mapstructure:"driver"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	Prefix     string        `mapstructure:"prefix"`
	Memory     MemoryConfig  `mapstructure:"memory"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

// MemoryConfig mirrors the sturdyc settings of the in-memory store.
type MemoryConfig struct {
	Capacity           int           `mapstructure:"capacity"`
	NumShards          int           `mapstructure:"shards"`
	Retention          time.Duration `mapstructure:"retention"`
	EvictionPercentage int           `mapstructure:"eviction_percentage"`
	EvictionInterval   time.Duration `mapstructure:"eviction_interval"`
}

// RedisConfig holds the redis connection settings.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	mem := cacheinfra.DefaultMemoryConfig()
	rds := cacheinfra.DefaultRedisConfig()

	return Config{
		Driver:     DriverMemory,
		DefaultTTL: DefaultTTL,
		Prefix:     mem.Prefix,
		Memory: MemoryConfig{
			Capacity:           mem.Capacity,
			NumShards:          mem.NumShards,
			Retention:          mem.Retention,
			EvictionPercentage: mem.EvictionPercentage,
			EvictionInterval:   mem.EvictionInterval,
		},
		Redis: RedisConfig{
			Addr:        rds.Addr,
			DialTimeout: rds.DialTimeout,
		},
	}
}

// Validate checks the configuration for the selected driver only.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverMemory, DriverRedis)),
		validation.Field(&c.DefaultTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.Memory, validation.When(c.Driver == DriverMemory, validation.By(validateMemory))),
		validation.Field(&c.Redis, validation.When(c.Driver == DriverRedis, validation.By(validateRedis))),
	)
}

func validateMemory(value any) error {
	m, ok := value.(MemoryConfig)
	if !ok {
		return fmt.Errorf("unexpected memory config type %T", value)
	}
	return validation.ValidateStruct(&m,
		validation.Field(&m.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&m.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&m.Retention, validation.Required, validation.Min(time.Second)),
		validation.Field(&m.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&m.EvictionInterval, validation.Min(time.Duration(0))),
	)
}

func validateRedis(value any) error {
	r, ok := value.(RedisConfig)
	if !ok {
		return fmt.Errorf("unexpected redis config type %T", value)
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Addr, validation.Required),
		validation.Field(&r.DB, validation.Min(0)),
	)
}

// NewTagStore validates cfg and builds the configured tag store.
func NewTagStore(cfg Config) (TagStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverRedis:
		return cacheinfra.NewRedisStore(cacheinfra.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
			Prefix:      cfg.Prefix,
		})
	default:
		return cacheinfra.NewMemoryStore(cacheinfra.MemoryConfig{
			Capacity:           cfg.Memory.Capacity,
			NumShards:          cfg.Memory.NumShards,
			Retention:          cfg.Memory.Retention,
			EvictionPercentage: cfg.Memory.EvictionPercentage,
			EvictionInterval:   cfg.Memory.EvictionInterval,
			Prefix:             cfg.Prefix,
		})
	}
}

var (
	_ TagStore = (*cacheinfra.MemoryStore)(nil)
	_ TagStore = (*cacheinfra.RedisStore)(nil)
)
