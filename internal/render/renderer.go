package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-web/internal/metrics"
	"github.com/snarg/whisper-web/internal/transcribe"
)

// TranscribingMessage is shown while a request is in flight. It is a trusted
// constant and is set as markup without escaping.
const TranscribingMessage = "转录中..."

// textRecorder is implemented by targets that also keep the unescaped text.
type textRecorder interface {
	setText(string)
}

// Renderer writes transcription outcomes into a Target and triggers
// downloads for subtitle formats.
type Renderer struct {
	target    Target
	downloads Downloader
	log       zerolog.Logger
}

// NewRenderer creates a renderer. downloads may be nil, in which case
// subtitle downloads are dropped.
func NewRenderer(target Target, downloads Downloader, log zerolog.Logger) *Renderer {
	return &Renderer{
		target:    target,
		downloads: downloads,
		log:       log,
	}
}

// Transcribing shows the in-flight placeholder.
func (r *Renderer) Transcribing() {
	r.target.SetMarkup(StateTranscribing, TranscribingMessage)
}

// Apply renders whichever arm of a transcription outcome is set.
func (r *Renderer) Apply(ctx context.Context, format transcribe.Format, res *transcribe.Result, err error) error {
	if err != nil {
		r.Fail(err)
		return nil
	}
	if res == nil {
		r.Fail(errors.New("empty transcription result"))
		return nil
	}
	return r.Render(ctx, format, res)
}

// Render paints a successful result. verbose_json becomes one block per
// segment; every other format is shown as escaped preformatted text, and
// srt/vtt additionally produce a download of the raw body. The returned
// error only reports a failed download; the view is updated regardless.
func (r *Renderer) Render(ctx context.Context, format transcribe.Format, res *transcribe.Result) error {
	if format == transcribe.FormatVerboseJSON {
		r.target.Clear()
		for _, seg := range res.Segments {
			r.target.AppendSegment(seg.Text)
		}
		return nil
	}

	text := res.Raw
	if format == transcribe.FormatJSON {
		text = res.Text
	}
	r.setPlainText(StatePlainText, "", text)

	filename, ok := DownloadFilename(format)
	if !ok || r.downloads == nil {
		return nil
	}
	metrics.DownloadsTotal.WithLabelValues(filename).Inc()
	err := r.downloads.Download(ctx, Download{
		Filename:    filename,
		ContentType: "text/plain",
		Content:     []byte(res.Raw),
	})
	if err != nil {
		r.log.Error().Err(err).Str("filename", filename).Msg("download failed")
		return fmt.Errorf("download %s: %w", filename, err)
	}
	return nil
}

// Fail replaces the placeholder with a diagnostic for a failed request.
func (r *Renderer) Fail(err error) {
	var te *transcribe.Error
	msg := "transcription failed: " + err.Error()
	if errors.As(err, &te) && te.Kind == transcribe.KindRemoteRejected {
		msg = fmt.Sprintf("transcription failed (status %d)\n%s", te.StatusCode, te.Body)
	}
	r.setPlainText(StateFailed, "error", msg)
}

func (r *Renderer) setPlainText(state State, class, text string) {
	r.target.SetMarkup(state, preformatted(class, text))
	if tr, ok := r.target.(textRecorder); ok {
		tr.setText(text)
	}
}
