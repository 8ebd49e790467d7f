// Package processing runs background jobs on a fixed set of goroutines and
// retries failed jobs with exponential backoff.
package processing

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Submit when the buffer cannot take more work.
var ErrQueueFull = errors.New("processing queue full")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("processing pool closed")

// Job is one unit of background work. Run is called once per attempt.
type Job struct {
	ID  string
	Run func(ctx context.Context) error
}

// Options configure a Pool.
type Options struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	// Backoff returns the wait after the given failed attempt (1-based).
	Backoff func(attempt int) time.Duration
	// Retryable decides whether a failed attempt is tried again; nil retries
	// everything.
	Retryable func(error) bool
	// OnDone observes the final result of every job.
	OnDone func(job Job, attempts int, err error)
	Log    *zap.Logger
}

// Pool consumes Jobs with a bounded number of workers.
type Pool struct {
	opts   Options
	queue  chan Job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// New builds a Pool with queue capacity tied to worker count.
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Workers * 64
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff == nil {
		opts.Backoff = func(int) time.Duration { return 0 }
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Pool{
		opts:  opts,
		queue: make(chan Job, opts.QueueSize),
	}
}

// Start launches worker goroutines. Workers exit when ctx is cancelled or
// after Close once the queue is drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit queues a job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- job:
		return nil
	default:
		p.opts.Log.Warn("processing queue full, rejecting job", zap.String("job", job.ID))
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, job)
		}
	}
}

func (p *Pool) process(ctx context.Context, job Job) {
	log := p.opts.Log.With(zap.String("job", job.ID))
	var (
		err     error
		attempt int
	)
	for attempt = 1; attempt <= p.opts.MaxAttempts; attempt++ {
		err = job.Run(ctx)
		if err == nil {
			break
		}
		if p.opts.Retryable != nil && !p.opts.Retryable(err) {
			log.Warn("job failed permanently", zap.Int("attempt", attempt), zap.Error(err))
			break
		}
		if attempt == p.opts.MaxAttempts {
			log.Error("job exhausted retries", zap.Int("attempts", attempt), zap.Error(err))
			break
		}
		delay := p.opts.Backoff(attempt)
		log.Info("job failed, will retry", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		if !sleep(ctx, delay) {
			err = ctx.Err()
			break
		}
	}
	if p.opts.OnDone != nil {
		p.opts.OnDone(job, attempt, err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
