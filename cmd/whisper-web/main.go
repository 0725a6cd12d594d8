package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	whisperweb "github.com/snarg/whisper-web"
	"github.com/snarg/whisper-web/internal/api"
	"github.com/snarg/whisper-web/internal/config"
	"github.com/snarg/whisper-web/internal/metrics"
	"github.com/snarg/whisper-web/internal/storage"
	"github.com/snarg/whisper-web/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.TranscribeURL, "transcribe-url", "", "transcription endpoint (overrides TRANSCRIBE_URL)")
	flag.StringVar(&overrides.ArchiveDir, "archive-dir", "", "keep subtitle downloads here (overrides ARCHIVE_DIR)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("whisper-web starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Archive (optional)
	store, err := storage.New(cfg.S3, cfg.ArchiveDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize archive storage")
	}
	var archive api.Archiver
	archiveType := ""
	if store != nil {
		archive = storage.NewArchive(store, log)
		archiveType = store.Type()
		log.Info().Str("type", archiveType).Msg("subtitle archive enabled")
	}

	// Transcription client
	client := transcribe.NewClient(cfg.TranscribeURL, cfg.TranscribeModel, cfg.TranscribeTimeout, log)
	log.Info().Str("url", client.URL()).Str("model", client.Model()).Msg("transcription endpoint configured")

	// Page assets: disk override or embedded copy
	var webFiles fs.FS
	if cfg.WebDir != "" {
		webFiles = os.DirFS(cfg.WebDir)
		log.Info().Str("dir", cfg.WebDir).Msg("serving web files from disk")
	} else {
		webFiles, err = fs.Sub(whisperweb.WebFiles, "web")
		if err != nil {
			log.Fatal().Err(err).Msg("embedded web files missing")
		}
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:      cfg,
		Client:      client,
		UpstreamURL: client.URL(),
		Model:       client.Model(),
		Archive:     archive,
		Store:       store,
		ArchiveType: archiveType,
		WebFiles:    webFiles,
		OpenAPISpec: whisperweb.OpenAPISpec,
		Version:     version,
		StartTime:   startTime,
		Log:         httpLog,
	})
	prometheus.MustRegister(metrics.NewCollector(srv))

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("whisper-web stopped")
}
