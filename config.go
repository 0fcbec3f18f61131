package activitypg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/youssefsiam38/activitypg/blob"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ACTIVITYPG_"

// Database drivers accepted by DatabaseConfig.Driver.
const (
	DatabasePGX    = "pgx"
	DatabaseSQL    = "sql"
	DatabaseMemory = "memory"
)

// Config is the server configuration, usually read from a YAML file.
//
// Example:
//
//	database:
//	  driver: pgx
//	  url: postgres://localhost/activitypg
//	http:
//	  addr: ":8080"
//	blob:
//	  driver: s3
//	  s3:
//	    bucket: photos
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	HTTP        HTTPConfig        `yaml:"http"`
	Auth        AuthConfig        `yaml:"auth"`
	Blob        blob.Config       `yaml:"blob"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Log         LogConfig         `yaml:"log"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	// Driver is pgx, sql or memory. Default: pgx
	Driver string `yaml:"driver"`

	// URL is the PostgreSQL connection string. Required unless Driver is memory.
	URL string `yaml:"url"`

	// Migrate applies the schema at startup. Default: true
	Migrate *bool `yaml:"migrate"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	// Addr is the listen address. Default: ":8080"
	Addr string `yaml:"addr"`

	// PageSize is the list limit when a request gives none. Default: 10
	PageSize int `yaml:"page_size"`

	// MaxUploadBytes bounds photo uploads. Default: 10 MiB
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// ShutdownTimeout bounds graceful shutdown. Default: 15 seconds
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig configures sign-in sessions.
type AuthConfig struct {
	// SessionTTL is how long a token stays valid. Default: 7 days
	SessionTTL time.Duration `yaml:"session_ttl"`

	// BcryptCost is the password hashing work factor. Default: bcrypt.DefaultCost
	BcryptCost int `yaml:"bcrypt_cost"`
}

// MaintenanceConfig configures the background services.
type MaintenanceConfig struct {
	// InstanceID names this server in cleanup leader election. Default: random
	InstanceID string `yaml:"instance_id"`

	// CleanupInterval is how often the leader removes expired sessions. Default: 1 minute
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// LeaderTTL is how long the cleanup lease lasts without renewal. Default: 30 seconds
	LeaderTTL time.Duration `yaml:"leader_ttl"`

	// HeartbeatInterval is how often the database is pinged. Default: 30 seconds
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// LogConfig configures the server logger.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level"`

	// Format is json or text. Default: json
	Format string `yaml:"format"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	migrate := true
	return &Config{
		Database: DatabaseConfig{
			Driver:  DatabasePGX,
			Migrate: &migrate,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			PageSize:        10,
			MaxUploadBytes:  10 << 20,
			ShutdownTimeout: 15 * time.Second,
		},
		Blob: blob.Config{
			Driver: blob.DriverFilesystem,
			Root:   "data/blobs",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads path over DefaultConfig, applies ACTIVITYPG_* environment
// overrides and validates the result. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("activitypg: open config: %w", err)
		}
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode reads YAML from r, rejecting unknown keys. An empty document keeps
// the current values.
func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// applyEnv overrides fields from the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_URL", &c.Database.URL)
	if v, ok := lookup(EnvPrefix + "DATABASE_MIGRATE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sDATABASE_MIGRATE: %v", ErrInvalidConfig, EnvPrefix, err)
		}
		c.Database.Migrate = &b
	}
	str("HTTP_ADDR", &c.HTTP.Addr)

	var blobDriver string
	str("BLOB_DRIVER", &blobDriver)
	if blobDriver != "" {
		c.Blob.Driver = blob.Driver(blobDriver)
	}
	str("BLOB_ROOT", &c.Blob.Root)
	str("BLOB_BASE_URL", &c.Blob.BaseURL)
	str("S3_BUCKET", &c.Blob.S3.Bucket)
	str("S3_REGION", &c.Blob.S3.Region)
	str("S3_ENDPOINT", &c.Blob.S3.Endpoint)

	str("INSTANCE_ID", &c.Maintenance.InstanceID)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if err := dur("SESSION_TTL", &c.Auth.SessionTTL); err != nil {
		return err
	}
	return dur("CLEANUP_INTERVAL", &c.Maintenance.CleanupInterval)
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Database.Driver == "" {
		c.Database.Driver = d.Database.Driver
	}
	if c.Database.Migrate == nil {
		c.Database.Migrate = d.Database.Migrate
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = d.HTTP.Addr
	}
	if c.HTTP.PageSize <= 0 {
		c.HTTP.PageSize = d.HTTP.PageSize
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		c.HTTP.MaxUploadBytes = d.HTTP.MaxUploadBytes
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = d.HTTP.ShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DatabasePGX, DatabaseSQL:
		if c.Database.URL == "" {
			return fmt.Errorf("%w: database.url is required for driver %q", ErrInvalidConfig, c.Database.Driver)
		}
	case DatabaseMemory:
	default:
		return fmt.Errorf("%w: unknown database.driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	switch c.Blob.Driver {
	case "", blob.DriverFilesystem:
		if c.Blob.Root == "" {
			return fmt.Errorf("%w: blob.root is required for the fs driver", ErrInvalidConfig)
		}
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("%w: blob.s3.bucket is required for the s3 driver", ErrInvalidConfig)
		}
	case blob.DriverMemory:
	default:
		return fmt.Errorf("%w: unknown blob.driver %q", ErrInvalidConfig, c.Blob.Driver)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: unknown log.format %q", ErrInvalidConfig, c.Log.Format)
	}

	if c.Auth.SessionTTL < 0 {
		return fmt.Errorf("%w: auth.session_ttl must not be negative", ErrInvalidConfig)
	}
	if c.Maintenance.LeaderTTL < 0 {
		return fmt.Errorf("%w: maintenance.leader_ttl must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ClientConfig returns the client configuration derived from c. Blobs,
// Pinger, Registerer and Logger are left for the caller.
func (c *Config) ClientConfig() *ClientConfig {
	return &ClientConfig{
		SessionTTL:        c.Auth.SessionTTL,
		BcryptCost:        c.Auth.BcryptCost,
		InstanceID:        c.Maintenance.InstanceID,
		CleanupInterval:   c.Maintenance.CleanupInterval,
		LeaderTTL:         c.Maintenance.LeaderTTL,
		HeartbeatInterval: c.Maintenance.HeartbeatInterval,
	}
}
