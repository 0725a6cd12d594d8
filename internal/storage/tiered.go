package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/rs/zerolog"
)

// TieredStore combines local disk (source of truth) with a remote backup,
// normally S3.
// Write path: save locally first, then push to the backup.
// Read path: local first, backup fallback.
type TieredStore struct {
	backup Store
	local  *LocalStore
	log    zerolog.Logger
}

// NewTieredStore creates a tiered local-primary + remote-backup store.
func NewTieredStore(backup Store, local *LocalStore, log zerolog.Logger) *TieredStore {
	return &TieredStore{
		backup: backup,
		local:  local,
		log:   log.With().Str("component", "tiered-store").Logger(),
	}
}

// Save writes to local disk first (fatal on failure), then the backup
// (warning on failure).
func (s *TieredStore) Save(ctx context.Context, key string, data []byte, ct string) error {
	if err := s.local.Save(ctx, key, data, ct); err != nil {
		return err
	}
	if err := s.backup.Save(ctx, key, data, ct); err != nil {
		s.log.Warn().Err(err).Str("key", key).Str("backup", s.backup.Type()).Msg("backup write failed, local copy kept")
	}
	return nil
}

// Open checks local disk first, then falls back to the backup.
func (s *TieredStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.local.Exists(ctx, key) {
		return s.local.Open(ctx, key)
	}
	rc, err := s.backup.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *TieredStore) Exists(ctx context.Context, key string) bool {
	return s.local.Exists(ctx, key) || s.backup.Exists(ctx, key)
}

func (s *TieredStore) Type() string { return "tiered" }
