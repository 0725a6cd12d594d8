package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/whisper-web/internal/metrics"
)

const (
	// DefaultURL is the OpenAI-compatible transcription endpoint used when
	// TRANSCRIBE_URL is not set.
	DefaultURL   = "https://api.chatanywhere.tech/v1/audio/transcriptions"
	DefaultModel = "whisper-1"
)

// Client calls an OpenAI-compatible /v1/audio/transcriptions endpoint.
// It performs exactly one round trip per call and never retries.
type Client struct {
	url    string
	model  string
	client *http.Client
	log    zerolog.Logger
}

// whisperResponse is the JSON body returned for json and verbose_json.
type whisperResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// NewClient creates a transcription client. A zero timeout leaves the
// request bounded only by the caller's context and the transport defaults.
func NewClient(url, model string, timeout time.Duration, log zerolog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("component", "transcribe").Logger(),
	}
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string { return c.url }

// Model returns the fixed model identifier sent with every request.
func (c *Client) Model() string { return c.model }

// Transcribe uploads the audio and returns the parsed result.
//
// The API key is forwarded as a bearer token without local checks; an empty
// key surfaces as a KindRemoteRejected error from the remote side. Failures
// are always returned as *Error.
func (c *Client) Transcribe(ctx context.Context, req Request) (*Result, error) {
	format := req.Format.OrDefault()
	start := time.Now()

	res, err := c.do(ctx, req, format)

	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metrics.TranscriptionsTotal.WithLabelValues(string(format), outcome).Inc()
	metrics.TranscriptionDuration.WithLabelValues(string(format)).Observe(time.Since(start).Seconds())
	return res, err
}

func (c *Client) do(ctx context.Context, req Request, format Format) (*Result, error) {
	body, contentType, err := c.buildForm(req, format)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.log.Error().Err(err).Str("url", c.url).Msg("transcription request failed")
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error().Err(err).Int("status", resp.StatusCode).Msg("reading transcription response failed")
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("read response: %w", err)}
	}

	c.log.Debug().
		Int("status", resp.StatusCode).
		Str("content_type", resp.Header.Get("Content-Type")).
		Int("bytes", len(raw)).
		Str("format", string(format)).
		Msg("transcription response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindRemoteRejected, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	result := &Result{Format: format, Raw: string(raw)}
	if !format.Structured() {
		return result, nil
	}

	var parsed whisperResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &Error{Kind: KindDecode, StatusCode: resp.StatusCode, Body: string(raw), Err: err}
	}
	result.Text = parsed.Text
	result.Language = parsed.Language
	result.Duration = parsed.Duration
	result.Segments = parsed.Segments
	return result, nil
}

// buildForm writes the multipart body. language is only present when set;
// the API treats its absence as auto-detect.
func (c *Client) buildForm(req Request, format Format) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = "audio"
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if req.Audio != nil {
		if _, err := io.Copy(part, req.Audio); err != nil {
			return nil, "", fmt.Errorf("copy audio data: %w", err)
		}
	}

	if err := w.WriteField("model", c.model); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("response_format", string(format)); err != nil {
		return nil, "", err
	}
	if req.Language != "" {
		if err := w.WriteField("language", req.Language); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
