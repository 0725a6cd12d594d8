// Package render maps transcription outcomes onto an output area and
// produces subtitle downloads.
package render

import (
	"html"
	"strings"
	"sync"
)

// State is the terminal render state of one invocation.
type State string

const (
	StateEmpty        State = ""
	StateTranscribing State = "transcribing"
	StateSegmented    State = "segmented"
	StatePlainText    State = "plain_text"
	StateFailed       State = "failed"
)

// Target is the output area the Renderer writes into.
type Target interface {
	// SetMarkup replaces the whole area with trusted markup.
	SetMarkup(state State, markup string)
	// Clear empties the area.
	Clear()
	// AppendSegment adds one block whose visible text is text, verbatim.
	AppendSegment(text string)
}

// Buffer is an in-memory Target. It keeps enough to rebuild the markup,
// the visible text and the segment blocks. Safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	state    State
	markup   string
	text     string
	segments []string
}

// NewBuffer returns an empty output area.
func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) SetMarkup(state State, markup string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
	b.markup = markup
	b.segments = nil
	b.text = ""
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateSegmented
	b.markup = ""
	b.segments = nil
	b.text = ""
}

func (b *Buffer) AppendSegment(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateSegmented
	b.segments = append(b.segments, text)
}

// setText records the unescaped text that a plain-text render shows.
func (b *Buffer) setText(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
}

// State returns the current render state.
func (b *Buffer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Segments returns a copy of the segment blocks in order.
func (b *Buffer) Segments() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.segments...)
}

// Markup returns the HTML of the output area. Segment text is escaped, so
// it shows up as text content and is never parsed as markup.
func (b *Buffer) Markup() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateSegmented {
		return b.markup
	}
	var sb strings.Builder
	for _, s := range b.segments {
		sb.WriteString(`<div class="segment">`)
		sb.WriteString(html.EscapeString(s))
		sb.WriteString(`</div>`)
	}
	return sb.String()
}

// Text returns what a reader of the area sees: one line per segment, or the
// plain text as rendered before escaping.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateSegmented:
		return strings.Join(b.segments, "\n")
	case StatePlainText, StateFailed:
		return b.text
	default:
		return b.markup
	}
}
