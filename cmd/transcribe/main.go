// Command transcribe sends audio files to the transcription API and prints
// what the page would show. With --watch it keeps transcribing new files
// dropped into a directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/snarg/whisper-web/internal/config"
	"github.com/snarg/whisper-web/internal/credential"
	"github.com/snarg/whisper-web/internal/render"
	"github.com/snarg/whisper-web/internal/storage"
	"github.com/snarg/whisper-web/internal/transcribe"
	"github.com/snarg/whisper-web/internal/watch"
	"github.com/spf13/cobra"
)

var version = "dev"

type options struct {
	language  string
	format    string
	outDir    string
	watchDir  string
	workers   int
	key       string
	credsPath string
	envFile   string
	logLevel  string
	url       string
}

var errFailed = errors.New("one or more transcriptions failed")

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	var opts options
	rootCmd := &cobra.Command{
		Use:     "transcribe [flags] FILE...",
		Short:   "Transcribe audio files with a Whisper-compatible API",
		Version: version,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.watchDir == "" && len(args) == 0 {
				return errors.New("need at least one FILE or --watch DIR")
			}
			return nil
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args, cmd.OutOrStdout())
		},
	}

	f := rootCmd.Flags()
	f.StringVarP(&opts.language, "language", "l", "", "ISO-639-1 language hint (empty = auto-detect)")
	f.StringVarP(&opts.format, "format", "f", string(transcribe.DefaultFormat), "response format: json, verbose_json, text, srt, vtt")
	f.StringVarP(&opts.outDir, "out", "o", ".", "directory for srt/vtt downloads")
	f.StringVarP(&opts.watchDir, "watch", "w", "", "watch this directory and transcribe new audio files")
	f.IntVar(&opts.workers, "workers", 0, "concurrent transcriptions (default 1, or 4 with --watch)")
	f.StringVar(&opts.key, "key", "", "API key to use and remember")
	f.StringVar(&opts.credsPath, "credentials", "", "credential file (default <config dir>/whisper-web/credentials.json)")
	f.StringVar(&opts.envFile, "env", "", "path to .env file (default .env)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	f.StringVar(&opts.url, "url", "", "transcription endpoint (overrides TRANSCRIBE_URL)")

	return rootCmd
}

func run(parent context.Context, opts options, files []string, stdout io.Writer) error {
	cfg, err := config.Load(config.Overrides{
		EnvFile:       opts.envFile,
		LogLevel:      opts.logLevel,
		TranscribeURL: opts.url,
	})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().Level(level)

	format := transcribe.Format(opts.format).OrDefault()
	if !format.Known() {
		return fmt.Errorf("unknown response format %q", opts.format)
	}

	// API key
	path := opts.credsPath
	if path == "" {
		if path, err = credential.DefaultPath(); err != nil {
			return err
		}
	}
	creds, err := credential.Open(path)
	if err != nil {
		return fmt.Errorf("open credentials: %w", err)
	}
	apiKey, err := resolveKey(opts.key, os.Getenv("OPENAI_API_KEY"), creds)
	if err != nil {
		return fmt.Errorf("store API key: %w", err)
	}
	if apiKey == "" {
		log.Warn().Msg("no API key set; pass --key once or set OPENAI_API_KEY")
	}

	// Downloads: --out directory plus the optional archive
	var archive render.Downloader
	store, err := storage.New(cfg.S3, cfg.ArchiveDir, log)
	if err != nil {
		return fmt.Errorf("archive storage: %w", err)
	}
	if store != nil {
		archive = storage.NewArchive(store, log)
	}
	// A batch of several files would otherwise write every subtitle to the
	// same name, so each one gets its source file's stem as a prefix.
	downloadsFor := func(path string) render.Downloader {
		out := render.DirDownloader{Dir: opts.outDir}
		if opts.watchDir == "" && len(files) > 1 {
			out.Prefix = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "."
		}
		return render.MultiDownloader{out, archive}
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := transcribe.NewClient(cfg.TranscribeURL, cfg.TranscribeModel, cfg.TranscribeTimeout, log)

	workers := opts.workers
	if workers <= 0 {
		workers = 1
		if opts.watchDir != "" {
			workers = 4
		}
	}

	// A bar only makes sense for a known batch.
	var bar *progressbar.ProgressBar
	if opts.watchDir == "" && len(files) > 1 {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("transcribing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
		)
	}

	// In watch mode the files share one output area and only the newest
	// transcription is shown. A batch renders every file on its own.
	var (
		session  *render.Session
		watchBuf *render.Buffer
	)
	if opts.watchDir != "" {
		watchBuf = render.NewBuffer()
		session = render.NewSession(render.NewRenderer(watchBuf, downloadsFor(""), log))
	}

	var (
		printMu sync.Mutex
		failed  atomic.Int64
		seq     atomic.Uint64
	)
	onResult := func(job transcribe.Job, res *transcribe.Result, err error) {
		printMu.Lock()
		defer printMu.Unlock()

		buf := watchBuf
		var dlErr error
		if session == nil {
			buf = render.NewBuffer()
			dlErr = render.NewRenderer(buf, downloadsFor(job.Path), log).Apply(ctx, job.Format, res, err)
		} else {
			var applied bool
			applied, dlErr = session.Finish(ctx, render.Ticket{Seq: job.Seq, Format: job.Format}, res, err)
			if !applied {
				log.Info().Str("path", job.Path).Uint64("seq", job.Seq).Msg("newer transcription already shown, discarding")
				return
			}
		}
		if dlErr != nil {
			log.Error().Err(dlErr).Str("path", job.Path).Msg("download failed")
		}
		if err != nil {
			failed.Add(1)
		}
		fmt.Fprintf(stdout, "==> %s <==\n%s\n", job.Path, buf.Text())
	}

	pool := transcribe.NewWorkerPool(transcribe.WorkerPoolOptions{
		Client:    client,
		Workers:   workers,
		QueueSize: max(64, len(files)),
		OnResult: func(_ context.Context, job transcribe.Job, res *transcribe.Result, err error) {
			if bar != nil {
				defer bar.Add(1)
			}
			onResult(job, res, err)
		},
		Log: log.With().Str("component", "workers").Logger(),
	})
	pool.Start()

	dispatch := func(path string) {
		n := seq.Add(1)
		if session != nil {
			n = session.Begin(format).Seq
		}
		log.Debug().Str("path", path).Uint64("seq", n).Msg(render.TranscribingMessage)
		if !pool.Enqueue(transcribe.Job{Seq: n, Path: path, APIKey: apiKey, Language: opts.language, Format: format}) {
			log.Warn().Str("path", path).Msg("queue full, skipping file")
		}
	}

	for _, p := range files {
		dispatch(p)
	}

	var w *watch.Watcher
	if opts.watchDir != "" {
		w = watch.New(watch.Options{Dir: opts.watchDir, Handle: dispatch, Log: log})
		if err := w.Start(ctx); err != nil {
			pool.Stop()
			return fmt.Errorf("watch %s: %w", opts.watchDir, err)
		}
		log.Info().Str("dir", opts.watchDir).Int("workers", pool.Workers()).Msg("watching for audio files")
		<-ctx.Done()
		w.Stop()
	}

	pool.Stop()

	summary := log.Info().Interface("queue", pool.Stats()).Int("workers", pool.Workers()).Int64("failed_shown", failed.Load())
	if w != nil {
		summary = summary.Int64("files_seen", w.FilesSeen()).Uint64("last_shown_seq", session.Latest())
	}
	summary.Msg("transcribe finished")

	if failed.Load() > 0 {
		return errFailed
	}
	return nil
}

// resolveKey picks the API key: an explicit flag value (which is also
// remembered), then the environment, then the credential store.
func resolveKey(flagKey, envKey string, creds *credential.Store) (string, error) {
	if flagKey != "" {
		if err := creds.Set(credential.APIKeyName, flagKey); err != nil {
			return flagKey, err
		}
		return flagKey, nil
	}
	if envKey != "" {
		return envKey, nil
	}
	return creds.Get(credential.APIKeyName), nil
}
