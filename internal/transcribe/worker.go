package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Job is one audio file queued for transcription.
type Job struct {
	Seq      uint64 // caller-assigned dispatch number, passed back in ResultFunc
	Path     string
	APIKey   string
	Language string
	Format   Format
}

// QueueStats reports the current state of the transcription queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	InFlight  int   `json:"in_flight"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// ResultFunc receives the outcome of every job, from a worker goroutine.
type ResultFunc func(ctx context.Context, job Job, res *Result, err error)

// Doer performs one transcription round trip.
type Doer interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// WorkerPoolOptions configures the transcription worker pool.
type WorkerPoolOptions struct {
	Client    Doer
	Workers   int
	QueueSize int
	Timeout   time.Duration // per job; 0 = none
	OnResult  ResultFunc
	Log       zerolog.Logger
}

// WorkerPool transcribes queued files with a fixed number of workers.
type WorkerPool struct {
	jobs   chan Job
	opts   WorkerPoolOptions
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	inFlight  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewWorkerPool creates a new transcription worker pool.
func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobs:   make(chan Job, opts.QueueSize),
		opts:   opts,
		log:    opts.Log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.log.Info().Int("workers", wp.opts.Workers).Int("queue_size", wp.opts.QueueSize).Msg("transcription worker pool started")
}

// Stop signals workers to drain and waits for completion.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobs)
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.cancel()
	wp.log.Info().
		Int64("completed", wp.completed.Load()).
		Int64("failed", wp.failed.Load()).
		Msg("transcription worker pool stopped")
}

// Enqueue adds a job to the transcription queue. Returns false if the queue
// is full or the pool has been stopped.
func (wp *WorkerPool) Enqueue(j Job) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return false
	}
	select {
	case wp.jobs <- j:
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (wp *WorkerPool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(wp.jobs),
		InFlight:  int(wp.inFlight.Load()),
		Completed: wp.completed.Load(),
		Failed:    wp.failed.Load(),
	}
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.opts.Workers }

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()

	for job := range wp.jobs {
		res, err := wp.processJob(job)
		if err != nil {
			wp.failed.Add(1)
			log.Warn().Err(err).
				Str("path", job.Path).
				Uint64("seq", job.Seq).
				Msg("transcription failed")
		} else {
			wp.completed.Add(1)
			log.Debug().Str("path", job.Path).Uint64("seq", job.Seq).Msg("transcription complete")
		}
		if wp.opts.OnResult != nil {
			wp.opts.OnResult(wp.ctx, job, res, err)
		}
	}
}

func (wp *WorkerPool) processJob(job Job) (*Result, error) {
	ctx := wp.ctx
	if wp.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.opts.Timeout)
		defer cancel()
	}

	f, err := os.Open(job.Path)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("open audio: %w", err)}
	}
	defer f.Close()

	wp.inFlight.Add(1)
	defer wp.inFlight.Add(-1)

	return wp.opts.Client.Transcribe(ctx, Request{
		APIKey:   job.APIKey,
		Audio:    f,
		Filename: filepath.Base(job.Path),
		Language: job.Language,
		Format:   job.Format,
	})
}
