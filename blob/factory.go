package blob

import (
	"context"
	"fmt"
)

// Config selects and configures a blob backend.
type Config struct {
	// Driver is fs, s3 or memory. Defaults to fs.
	Driver Driver `yaml:"driver"`

	// Root is the filesystem root when Driver is fs.
	Root string `yaml:"root"`

	// BaseURL is the public URL prefix for fs and memory blobs.
	BaseURL string `yaml:"base_url"`

	// S3 configures the s3 driver.
	S3 S3Config `yaml:"s3"`
}

// Open constructs the Store selected by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.Root, cfg.BaseURL)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("blob: unknown driver %q", cfg.Driver)
	}
}
