package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/snarg/whisper-web/internal/transcribe"
)

// Download is a client-side file save produced by a render.
type Download struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
}

// Downloader delivers a Download somewhere the user can pick it up.
type Downloader interface {
	Download(ctx context.Context, d Download) error
}

// DownloadFilename returns the save-as name for formats that trigger a
// download. Only srt and vtt do.
func DownloadFilename(format transcribe.Format) (string, bool) {
	switch format {
	case transcribe.FormatSRT:
		return "transcription.srt", true
	case transcribe.FormatVTT:
		return "transcription.vtt", true
	default:
		return "", false
	}
}

// Collector keeps the most recent download in memory so a caller can hand
// it back to the browser.
type Collector struct {
	mu   sync.Mutex
	last *Download
}

func (c *Collector) Download(ctx context.Context, d Download) error {
	c.mu.Lock()
	c.last = &d
	c.mu.Unlock()
	return nil
}

// Last returns the collected download, or nil if none was triggered.
func (c *Collector) Last() *Download {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// DirDownloader saves downloads into a directory, replacing any previous
// file with the same name.
type DirDownloader struct {
	Dir    string
	Prefix string // prepended to the download filename
}

func (d DirDownloader) Download(ctx context.Context, dl Download) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", d.Dir, err)
	}
	path := filepath.Join(d.Dir, d.Prefix+dl.Filename)

	// Atomic write: temp file + rename
	tmp, err := os.CreateTemp(d.Dir, ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(dl.Content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// MultiDownloader hands every download to each downloader in turn and
// returns the first error.
type MultiDownloader []Downloader

func (m MultiDownloader) Download(ctx context.Context, d Download) error {
	var first error
	for _, dl := range m {
		if dl == nil {
			continue
		}
		if err := dl.Download(ctx, d); err != nil && first == nil {
			first = err
		}
	}
	return first
}
