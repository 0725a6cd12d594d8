package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the Create+Write burst of a file being copied in.
const DefaultDebounce = 500 * time.Millisecond

// AudioExtensions are the file types picked up by default.
var AudioExtensions = []string{".flac", ".m4a", ".mp3", ".mp4", ".mpeg", ".mpga", ".oga", ".ogg", ".wav", ".webm"}

// HandleFunc is called once per settled audio file.
type HandleFunc func(path string)

// Options configures a Watcher.
type Options struct {
	Dir        string
	Extensions []string      // lower-case, with dot; nil = AudioExtensions
	Debounce   time.Duration // 0 = DefaultDebounce
	Handle     HandleFunc
	Log        zerolog.Logger
}

// Watcher monitors a directory tree for new audio files and hands each one
// to Handle after it has stopped changing.
type Watcher struct {
	opts Options
	exts map[string]bool
	log  zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	filesSeen atomic.Int64
}

// New creates a watcher. Call Start to begin watching.
func New(opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	exts := opts.Extensions
	if exts == nil {
		exts = AudioExtensions
	}
	w := &Watcher{
		opts:           opts,
		exts:           make(map[string]bool, len(exts)),
		log:            opts.Log.With().Str("component", "watcher").Logger(),
		done:           make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}
	for _, e := range exts {
		w.exts[strings.ToLower(e)] = true
	}
	return w
}

// Start adds every existing directory under Dir and runs the event loop
// until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw

	dirCount := 0
	err = filepath.WalkDir(w.opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("error walking directory")
			return nil
		}
		if d.IsDir() {
			if addErr := fw.Add(path); addErr != nil {
				w.log.Warn().Err(addErr).Str("path", path).Msg("failed to watch directory")
			} else {
				dirCount++
			}
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return err
	}

	w.log.Info().
		Int("directories", dirCount).
		Str("watch_dir", w.opts.Dir).
		Msg("file watcher initialized")

	go w.watchLoop(ctx)
	return nil
}

// Stop closes the fsnotify watcher and drops pending debounce timers.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	w.watcher.Close()
	<-w.done

	w.debounceMu.Lock()
	for path, t := range w.debounceTimers {
		t.Stop()
		delete(w.debounceTimers, path)
	}
	w.debounceMu.Unlock()

	w.log.Info().Int64("files_seen", w.filesSeen.Load()).Msg("file watcher stopped")
}

// FilesSeen returns the number of files handed to Handle.
func (w *Watcher) FilesSeen() int64 { return w.filesSeen.Load() }

// Matches reports whether path has one of the watched extensions.
func (w *Watcher) Matches(path string) bool {
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			// New subdirectory: watch it too.
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.watcher.Add(event.Name); err != nil {
					w.log.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
				} else {
					w.log.Debug().Str("path", event.Name).Msg("watching new directory")
				}
				continue
			}

			if !w.Matches(event.Name) {
				continue
			}
			w.scheduleHandle(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleHandle debounces per path so a file is handled once, after its
// last write.
func (w *Watcher) scheduleHandle(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(w.opts.Debounce)
		return
	}

	w.debounceTimers[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.debounceMu.Lock()
		_, pending := w.debounceTimers[path]
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()
		if !pending {
			return
		}

		w.filesSeen.Add(1)
		w.log.Debug().Str("path", path).Msg("audio file settled")
		w.opts.Handle(path)
	})
}
