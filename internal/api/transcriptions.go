package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/whisper-web/internal/render"
	"github.com/snarg/whisper-web/internal/transcribe"
)

// Transcriber performs one transcription round trip.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error)
}

// TranscribeHandler accepts an audio upload, forwards it to the
// transcription API and answers with the rendered output area.
type TranscribeHandler struct {
	client    Transcriber
	archive   Archiver // nil = downloads are only returned to the caller
	maxUpload int64
	inFlight  atomic.Int64
	log       zerolog.Logger
}

// NewTranscribeHandler creates the handler. maxUpload bounds the request
// body in bytes.
func NewTranscribeHandler(client Transcriber, archive Archiver, maxUpload int64, log zerolog.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		client:    client,
		archive:   archive,
		maxUpload: maxUpload,
		log:       log.With().Str("handler", "transcriptions").Logger(),
	}
}

// Routes registers the transcription endpoint.
func (h *TranscribeHandler) Routes(r chi.Router) {
	r.Post("/transcriptions", h.Create)
}

// InFlight reports requests currently waiting on the remote API.
func (h *TranscribeHandler) InFlight() int {
	return int(h.inFlight.Load())
}

// TranscriptionResponse is the rendered output area returned to the page.
type TranscriptionResponse struct {
	State    render.State        `json:"state"`
	Format   transcribe.Format   `json:"format"`
	Markup   string              `json:"markup"`
	Segments []string            `json:"segments,omitempty"`
	Text     string              `json:"text,omitempty"`
	Language string              `json:"language,omitempty"`
	Duration float64             `json:"duration,omitempty"`
	Download *DownloadPayload    `json:"download,omitempty"`
	Error    *TranscriptionError `json:"error,omitempty"`
}

// DownloadPayload carries a subtitle file for the page to save.
type DownloadPayload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	ArchiveKey  string `json:"archive_key,omitempty"`
}

// TranscriptionError describes a failed round trip.
type TranscriptionError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Body    string `json:"body,omitempty"`
}

// Create handles POST /api/v1/transcriptions.
// Form fields: file, language (optional), response_format (optional).
// The Authorization bearer token is forwarded to the remote API unchanged.
func (h *TranscribeHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			WriteErrorWithCode(w, http.StatusRequestEntityTooLarge, ErrInvalidBody, "upload exceeds size limit")
			return
		}
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	// Both fields go to the remote API exactly as the page sent them.
	format := transcribe.Format(r.FormValue("response_format")).OrDefault()
	language := r.FormValue("language")

	// A missing file is forwarded as an empty upload; the remote API decides.
	var audio io.Reader = strings.NewReader("")
	var filename string
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		audio = file
		filename = header.Filename
	case errors.Is(err, http.ErrMissingFile):
	default:
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "failed to read audio file")
		return
	}

	buf := render.NewBuffer()
	collected := &render.Collector{}
	renderer := render.NewRenderer(buf, collected, h.log)
	renderer.Transcribing()

	h.inFlight.Add(1)
	res, err := h.client.Transcribe(r.Context(), transcribe.Request{
		APIKey:   APIKeyFromContext(r.Context()),
		Audio:    audio,
		Filename: filename,
		Language: language,
		Format:   format,
	})
	h.inFlight.Add(-1)

	// The collector never fails.
	renderer.Apply(r.Context(), format, res, err)

	resp := TranscriptionResponse{
		State:    buf.State(),
		Format:   format,
		Markup:   buf.Markup(),
		Segments: buf.Segments(),
	}
	if res != nil {
		resp.Text = res.Text
		resp.Language = res.Language
		resp.Duration = res.Duration
	}
	if dl := collected.Last(); dl != nil {
		resp.Download = &DownloadPayload{
			Filename:    dl.Filename,
			ContentType: dl.ContentType,
			Content:     string(dl.Content),
		}
		if h.archive != nil {
			key, err := h.archive.Save(r.Context(), *dl)
			if err != nil {
				h.log.Warn().Err(err).Str("filename", dl.Filename).Msg("archiving download failed")
			} else {
				resp.Download.ArchiveKey = key
			}
		}
	}

	if err != nil {
		resp.Error = transcriptionError(err)
		h.log.Warn().Err(err).Str("format", string(format)).Str("kind", resp.Error.Kind).Msg("transcription failed")
		WriteJSON(w, http.StatusBadGateway, resp)
		return
	}

	h.log.Info().
		Str("format", string(format)).
		Str("language", language).
		Str("filename", filename).
		Int("segments", len(resp.Segments)).
		Msg("transcription rendered")
	WriteJSON(w, http.StatusOK, resp)
}

func transcriptionError(err error) *TranscriptionError {
	out := &TranscriptionError{Kind: ErrUpstream, Message: err.Error()}
	var te *transcribe.Error
	if errors.As(err, &te) {
		out.Kind = te.Kind.String()
		out.Status = te.StatusCode
		out.Body = te.Body
	}
	return out
}
