package render

import (
	"context"
	"sync"

	"github.com/snarg/whisper-web/internal/metrics"
	"github.com/snarg/whisper-web/internal/transcribe"
)

// Ticket identifies one dispatched request within a Session.
type Ticket struct {
	Seq    uint64
	Format transcribe.Format
}

// Session serialises overlapping requests that share one output area.
// Each dispatch gets an increasing sequence number; a result is only
// applied if no newer request has been applied before it, so a slow,
// older response can never overwrite a newer one.
type Session struct {
	mu       sync.Mutex
	renderer *Renderer
	next     uint64
	applied  uint64
}

// NewSession wraps a renderer.
func NewSession(r *Renderer) *Session {
	return &Session{renderer: r}
}

// Begin stamps a new request and shows the in-flight placeholder.
func (s *Session) Begin(format transcribe.Format) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.renderer.Transcribing()
	return Ticket{Seq: s.next, Format: format}
}

// Finish applies the outcome of t. It reports false, without error, when t
// is stale and the outcome was discarded.
func (s *Session) Finish(ctx context.Context, t Ticket, res *transcribe.Result, err error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Seq <= s.applied {
		metrics.StaleResultsTotal.Inc()
		return false, nil
	}
	s.applied = t.Seq
	return true, s.renderer.Apply(ctx, t.Format, res, err)
}

// Latest returns the sequence number of the last applied request.
func (s *Session) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}
