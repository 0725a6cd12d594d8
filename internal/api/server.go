package api

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/whisper-web/internal/config"
	"github.com/snarg/whisper-web/internal/metrics"
	"github.com/snarg/whisper-web/internal/storage"
)

// ServerOptions wires the HTTP server to its collaborators.
type ServerOptions struct {
	Config      *config.Config
	Client      Transcriber
	UpstreamURL string
	Model       string
	Archive     Archiver      // nil if no archive is configured
	Store       storage.Store // backs GET /archive/{key}; nil disables it
	ArchiveType string
	WebFiles    fs.FS
	OpenAPISpec []byte
	Version     string
	StartTime   time.Time
	Log         zerolog.Logger
}

type Server struct {
	http        *http.Server
	transcriber *TranscribeHandler
	log         zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(metrics.InstrumentHandler)
	r.Use(CORSWithOrigins(cfg.CORSOrigins))

	transcriber := NewTranscribeHandler(opts.Client, opts.Archive, cfg.MaxUploadMB<<20, opts.Log)
	health := NewHealthHandler(opts.UpstreamURL, opts.Model, opts.ArchiveType, transcriber, opts.Version, opts.StartTime)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "no such endpoint")
		})
		r.Get("/health", health.ServeHTTP)
		r.Get("/formats", FormatsHandler)
		if len(opts.OpenAPISpec) > 0 {
			r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/yaml")
				w.Write(opts.OpenAPISpec)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))
			r.Use(ForwardedKey)
			transcriber.Routes(r)
			if opts.Store != nil {
				NewArchiveHandler(opts.Store, opts.Log).Routes(r)
			}
		})
	})

	if opts.WebFiles != nil {
		r.Handle("/*", http.FileServer(http.FS(opts.WebFiles)))
	}

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		transcriber: transcriber,
		log:         opts.Log,
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// InFlight reports transcriptions waiting on the remote API.
func (s *Server) InFlight() int { return s.transcriber.InFlight() }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
