package transcribe

import "io"

// Format is the response_format requested from the transcription API. It
// controls both the reply shape and how the result is rendered.
type Format string

const (
	FormatJSON        Format = "json"
	FormatVerboseJSON Format = "verbose_json"
	FormatText        Format = "text"
	FormatSRT         Format = "srt"
	FormatVTT         Format = "vtt"

	// DefaultFormat is sent when the caller leaves the format empty.
	DefaultFormat = FormatVerboseJSON
)

// Formats lists the formats offered to users, in display order.
var Formats = []Format{FormatVerboseJSON, FormatJSON, FormatText, FormatSRT, FormatVTT}

// OrDefault returns f, or DefaultFormat when f is empty.
func (f Format) OrDefault() Format {
	if f == "" {
		return DefaultFormat
	}
	return f
}

// Structured reports whether the response body is a JSON document.
// Unknown formats are treated as opaque text.
func (f Format) Structured() bool {
	return f == FormatJSON || f == FormatVerboseJSON
}

// Known reports whether f is one of Formats.
func (f Format) Known() bool {
	for _, k := range Formats {
		if f == k {
			return true
		}
	}
	return false
}

// Request is a single transcription call.
type Request struct {
	APIKey   string
	Audio    io.Reader
	Filename string // multipart filename; "audio" if empty
	Language string // empty = auto-detect, field omitted
	Format   Format // empty = DefaultFormat
}

// Result is the outcome of a successful transcription.
// Raw always holds the response body as received. Text, Language, Duration
// and Segments are only filled for structured formats.
type Result struct {
	Format   Format
	Raw      string
	Text     string
	Language string
	Duration float64 // audio duration in seconds
	Segments []Segment
}

// Segment is one timed chunk of a verbose_json transcript.
type Segment struct {
	ID               int     `json:"id"`
	Seek             int     `json:"seek"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	Tokens           []int   `json:"tokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	AvgLogprob       float64 `json:"avg_logprob"`
	CompressionRatio float64 `json:"compression_ratio"`
	NoSpeechProb     float64 `json:"no_speech_prob"`
}
