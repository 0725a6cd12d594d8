package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/whisper-web/internal/render"
)

// Archive is a render.Downloader that keeps a copy of every download in a
// Store.
type Archive struct {
	store Store
	now   func() time.Time
	log   zerolog.Logger
}

// NewArchive wraps a store.
func NewArchive(store Store, log zerolog.Logger) *Archive {
	return &Archive{
		store: store,
		now:   time.Now,
		log:   log.With().Str("component", "archive").Logger(),
	}
}

// Download saves d under {YYYY-MM-DD}/{uuid}-{filename}.
func (a *Archive) Download(ctx context.Context, d render.Download) error {
	_, err := a.Save(ctx, d)
	return err
}

// Save is Download that also reports the key the copy was stored under.
func (a *Archive) Save(ctx context.Context, d render.Download) (string, error) {
	key := a.Key(d.Filename)
	if err := a.store.Save(ctx, key, d.Content, d.ContentType); err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	a.log.Debug().Str("key", key).Int("bytes", len(d.Content)).Str("store", a.store.Type()).Msg("download archived")
	return key, nil
}

// Key builds a new archive key for filename.
func (a *Archive) Key(filename string) string {
	return a.now().UTC().Format("2006-01-02") + "/" + uuid.NewString() + "-" + filename
}

var keyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}-[A-Za-z0-9._-]+$`)

// ValidKey reports whether key has the shape Key produces. Keys coming from
// outside must pass this before they reach a Store.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}
