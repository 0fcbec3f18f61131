package activitypg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/youssefsiam38/activitypg/blob"
)

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activitypg.yaml")
	data := `
database:
  driver: memory
http:
  addr: ":9090"
  shutdown_timeout: 5s
auth:
  session_ttl: 24h
blob:
  driver: s3
  s3:
    bucket: photos
    region: eu-west-1
log:
  level: DEBUG
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Database.Driver != DatabaseMemory {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DatabaseMemory)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("HTTP.Addr = %q, want :9090", cfg.HTTP.Addr)
	}
	if cfg.HTTP.ShutdownTimeout != 5*time.Second {
		t.Errorf("HTTP.ShutdownTimeout = %v, want 5s", cfg.HTTP.ShutdownTimeout)
	}
	if cfg.HTTP.PageSize != 10 {
		t.Errorf("HTTP.PageSize = %d, want default 10", cfg.HTTP.PageSize)
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Errorf("Auth.SessionTTL = %v, want 24h", cfg.Auth.SessionTTL)
	}
	wantBlob := blob.Config{
		Driver: blob.DriverS3,
		Root:   "data/blobs",
		S3:     blob.S3Config{Bucket: "photos", Region: "eu-west-1"},
	}
	if diff := cmp.Diff(wantBlob, cfg.Blob); diff != "" {
		t.Errorf("Blob mismatch (-want +got):\n%s", diff)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Database.Migrate == nil || !*cfg.Database.Migrate {
		t.Error("Database.Migrate should default to true")
	}
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activitypg.yaml")
	if err := os.WriteFile(path, []byte("database:\n  drvier: memory\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("LoadConfig() error = %v, want %v", err, ErrInvalidConfig)
	}
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activitypg.yaml")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ACTIVITYPG_DATABASE_DRIVER", "memory")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q, want :8080", cfg.HTTP.Addr)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"ACTIVITYPG_DATABASE_URL":     "postgres://localhost/test",
		"ACTIVITYPG_DATABASE_MIGRATE": "false",
		"ACTIVITYPG_HTTP_ADDR":        ":7070",
		"ACTIVITYPG_BLOB_DRIVER":      "memory",
		"ACTIVITYPG_SESSION_TTL":      "2h",
		"ACTIVITYPG_LOG_FORMAT":       "text",
		"ACTIVITYPG_INSTANCE_ID":      "api-0",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Database.URL != "postgres://localhost/test" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if *cfg.Database.Migrate {
		t.Error("Database.Migrate = true, want false")
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Errorf("HTTP.Addr = %q, want :7070", cfg.HTTP.Addr)
	}
	if cfg.Blob.Driver != blob.DriverMemory {
		t.Errorf("Blob.Driver = %q, want memory", cfg.Blob.Driver)
	}
	if cfg.Auth.SessionTTL != 2*time.Hour {
		t.Errorf("Auth.SessionTTL = %v, want 2h", cfg.Auth.SessionTTL)
	}
	if got := cfg.ClientConfig().InstanceID; got != "api-0" {
		t.Errorf("ClientConfig().InstanceID = %q, want api-0", got)
	}
}

func TestConfig_ApplyEnvInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "duration", key: "ACTIVITYPG_SESSION_TTL", val: "soon"},
		{name: "bool", key: "ACTIVITYPG_DATABASE_MIGRATE", val: "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := func(k string) (string, bool) {
				if k == tt.key {
					return tt.val, true
				}
				return "", false
			}
			err := DefaultConfig().applyEnv(lookup)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("applyEnv() error = %v, want %v", err, ErrInvalidConfig)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "memory database",
			mutate: func(c *Config) { c.Database.Driver = DatabaseMemory },
		},
		{
			name:    "pgx without url",
			mutate:  func(c *Config) {},
			wantErr: "database.url",
		},
		{
			name: "unknown database driver",
			mutate: func(c *Config) {
				c.Database.Driver = "mysql"
			},
			wantErr: "database.driver",
		},
		{
			name: "s3 without bucket",
			mutate: func(c *Config) {
				c.Database.Driver = DatabaseMemory
				c.Blob.Driver = blob.DriverS3
			},
			wantErr: "blob.s3.bucket",
		},
		{
			name: "unknown log level",
			mutate: func(c *Config) {
				c.Database.Driver = DatabaseMemory
				c.Log.Level = "trace"
			},
			wantErr: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
