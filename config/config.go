// Package config loads the settings of a repository stack from a file and
// the environment.
package config

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-viper/mapstructure/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-kit/cache"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "REPO"

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the full configuration of a repository stack.
type Config struct {
	Cache    cache.Config   `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig selects the bun dialect and its connection string.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig configures the HTTP server of the CLI.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Default returns a configuration that runs against an in-memory sqlite
// database with the in-memory tag store.
func Default() Config {
	return Config{
		Cache: cache.DefaultConfig(),
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "file::memory:?cache=shared",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path, when given, and the REPO_ environment on top of the
// defaults. Nested keys map to variables with "." replaced by "_", so
// cache.redis.addr is REPO_CACHE_REDIS_ADDR. REPO_CACHE_TTL is accepted for
// cache.default_ttl. Durations given as bare numbers are minutes.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("cache.default_ttl", EnvPrefix+"_CACHE_TTL", EnvPrefix+"_CACHE_DEFAULT_TTL"); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read config file "+path)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		minutesHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section. Errors are go-errors validation errors with
// one entry per failing field.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Cache),
		validation.Field(&c.Database),
		validation.Field(&c.Server),
		validation.Field(&c.Log),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration")
	}
	return nil
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&d.DSN, validation.Required),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.By(func(value any) error {
			level, _ := value.(string)
			if level == "" {
				return nil
			}
			if _, err := zap.ParseAtomicLevel(level); err != nil {
				return errors.New("unknown log level")
			}
			return nil
		})),
	)
}

// Build creates the logger described by l.
func (l LogConfig) Build() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if l.Level != "" {
		level, err := zap.ParseAtomicLevel(l.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	return zc.Build()
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("cache.driver", d.Cache.Driver)
	v.SetDefault("cache.default_ttl", d.Cache.DefaultTTL)
	v.SetDefault("cache.prefix", d.Cache.Prefix)
	v.SetDefault("cache.memory.capacity", d.Cache.Memory.Capacity)
	v.SetDefault("cache.memory.shards", d.Cache.Memory.NumShards)
	v.SetDefault("cache.memory.retention", d.Cache.Memory.Retention)
	v.SetDefault("cache.memory.eviction_percentage", d.Cache.Memory.EvictionPercentage)
	v.SetDefault("cache.memory.eviction_interval", d.Cache.Memory.EvictionInterval)
	v.SetDefault("cache.redis.addr", d.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", d.Cache.Redis.Password)
	v.SetDefault("cache.redis.db", d.Cache.Redis.DB)
	v.SetDefault("cache.redis.dial_timeout", d.Cache.Redis.DialTimeout)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

var durationType = reflect.TypeOf(time.Duration(0))

// minutesHook reads bare numbers decoded into a time.Duration as minutes.
func minutesHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.String:
		n, err := strconv.Atoi(strings.TrimSpace(reflect.ValueOf(data).String()))
		if err != nil {
			return data, nil
		}
		return time.Duration(n) * time.Minute, nil
	case reflect.Int, reflect.Int32, reflect.Int64:
		if from == durationType {
			return data, nil
		}
		return time.Duration(reflect.ValueOf(data).Int()) * time.Minute, nil
	case reflect.Float64:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Minute)), nil
	}
	return data, nil
}
