package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-web/internal/config"
)

// Store abstracts where archived transcripts are kept.
type Store interface {
	// Save stores data under key. key format: {YYYY-MM-DD}/{id}-{filename}
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns a reader for a stored object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an object exists in any backend.
	Exists(ctx context.Context, key string) bool

	// Type returns "local", "s3", or "tiered".
	Type() string
}

// New creates a Store based on config. It returns nil, nil when neither an
// archive directory nor an S3 bucket is configured.
// Returns an error if S3 is configured but unreachable.
func New(cfg config.S3Config, archiveDir string, log zerolog.Logger) (Store, error) {
	if !cfg.Enabled() {
		if archiveDir == "" {
			return nil, nil
		}
		return NewLocalStore(archiveDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	if archiveDir == "" {
		return s3store, nil
	}

	// Tiered mode: local primary + S3 backup
	return NewTieredStore(s3store, NewLocalStore(archiveDir), log), nil
}
