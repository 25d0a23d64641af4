package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "vendemos/pkg/platform/strings"
)

// Storage backends selectable with STORAGE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Status write modes selectable with STATUS_WRITE_MODE.
const (
	WriteModeLastWriterWins = "lww"
	WriteModeCompareAndSwap = "cas"
)

// Config is the full process configuration.
type Config struct {
	Server          Server
	Environment     string
	LogLevel        string
	StorageBackend  string
	StatusWriteMode string
	ShutdownTimeout time.Duration
	Database        Database
	Redis           RedisConfig
	Auth            Auth
	Kafka           Kafka
	Outbox          Outbox
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// Database configures the PostgreSQL pool.
type Database struct {
	URL             string
	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Auth configures bearer token validation. Tokens are never issued here.
type Auth struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// Kafka configures the transition event stream. Empty Brokers disables it.
type Kafka struct {
	Brokers          []string
	TransitionsTopic string
}

// Outbox configures the relay from the outbox table to Kafka.
type Outbox struct {
	PollInterval time.Duration
	BatchSize    int
}

// DevJWTSigningKey is the signing key used when JWT_SIGNING_KEY is unset.
// Validate rejects it in production.
const DevJWTSigningKey = "dev-secret-key-change-in-production"

// IsProduction reports whether VENDEMOS_ENV is production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []error
	str := func(key, def string) string {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	integer := func(key string, def int) int {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return def
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", key, err))
		}
		return i
	}
	duration := func(key string, def time.Duration) time.Duration {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", key, err))
		}
		return d
	}

	cfg := Config{
		Server: Server{
			Addr: str("VENDEMOS_ADDR", ":8080"),
		},
		Environment:     str("VENDEMOS_ENV", "development"),
		LogLevel:        str("LOG_LEVEL", "info"),
		StorageBackend:  strings.ToLower(str("STORAGE_BACKEND", BackendMemory)),
		StatusWriteMode: strings.ToLower(str("STATUS_WRITE_MODE", WriteModeLastWriterWins)),
		ShutdownTimeout: duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		Database: Database{
			URL:             str("DATABASE_URL", ""),
			PingTimeout:     duration("DB_PING_TIMEOUT", 2*time.Second),
			MaxOpenConns:    integer("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    integer("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          str("REDIS_URL", ""),
			PoolSize:     integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Auth: Auth{
			// Use a default for development - must be overridden in production
			JWTSigningKey: str("JWT_SIGNING_KEY", DevJWTSigningKey),
			Issuer:        str("JWT_ISSUER", ""),
			Audience:      str("JWT_AUDIENCE", ""),
		},
		Kafka: Kafka{
			Brokers:          strutil.SplitList(str("KAFKA_BROKERS", "")),
			TransitionsTopic: str("KAFKA_TRANSITIONS_TOPIC", "listing-status-transitions"),
		},
		Outbox: Outbox{
			PollInterval: duration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    integer("OUTBOX_BATCH_SIZE", 100),
		},
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageBackend {
	case BackendMemory:
	case BackendPostgres:
		if err := c.Database.Validate(); err != nil {
			errs = append(errs, err)
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be one of memory, postgres, redis; got %q", c.StorageBackend))
	}
	switch c.StatusWriteMode {
	case WriteModeLastWriterWins, WriteModeCompareAndSwap:
	default:
		errs = append(errs, fmt.Errorf("STATUS_WRITE_MODE must be lww or cas; got %q", c.StatusWriteMode))
	}
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	} else if c.IsProduction() && c.Auth.JWTSigningKey == DevJWTSigningKey {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be overridden in production"))
	}
	if len(c.Kafka.Brokers) > 0 && c.StorageBackend != BackendPostgres {
		errs = append(errs, errors.New("KAFKA_BROKERS requires the postgres backend"))
	}
	if c.Outbox.BatchSize < 1 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be >= 1"))
	}
	if c.Outbox.PollInterval <= 0 {
		errs = append(errs, errors.New("OUTBOX_POLL_INTERVAL must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Validate checks the pool settings.
func (d Database) Validate() error {
	if d.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if d.PingTimeout <= 0 {
		return errors.New("DB_PING_TIMEOUT must be positive")
	}
	if d.MaxOpenConns < 1 {
		return errors.New("DB_MAX_OPEN_CONNS must be >= 1")
	}
	if d.MaxIdleConns < 0 || d.MaxIdleConns > d.MaxOpenConns {
		return errors.New("DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS")
	}
	if d.ConnMaxLifetime < 0 {
		return errors.New("DB_CONN_MAX_LIFETIME must be >= 0")
	}
	return nil
}
