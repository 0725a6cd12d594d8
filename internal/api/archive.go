package api

import (
	"context"
	"io"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/whisper-web/internal/render"
	"github.com/snarg/whisper-web/internal/storage"
)

// Archiver keeps a copy of a subtitle download and returns its key.
type Archiver interface {
	Save(ctx context.Context, d render.Download) (string, error)
}

// ArchiveHandler serves previously archived subtitle files.
type ArchiveHandler struct {
	store storage.Store
	log   zerolog.Logger
}

func NewArchiveHandler(store storage.Store, log zerolog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		store: store,
		log:   log.With().Str("handler", "archive").Logger(),
	}
}

// Routes registers the archive endpoint.
func (h *ArchiveHandler) Routes(r chi.Router) {
	r.Get("/archive/*", h.Get)
}

// Get handles GET /api/v1/archive/{key}.
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if !storage.ValidKey(key) {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidKey, "invalid archive key")
		return
	}
	if !h.store.Exists(r.Context(), key) {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "archived file not found")
		return
	}
	rc, err := h.store.Open(r.Context(), key)
	if err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("open archived file")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrStorage, "failed to read archived file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("archived file copy interrupted")
	}
}
