package queue

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/processing"
)

// LocalEnqueuer runs tasks on an in-process pool. It is used when no Redis
// address is configured.
type LocalEnqueuer struct {
	pool *processing.Pool
	log  *zap.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	pending  map[string]struct{}
}

// NewLocalEnqueuer builds the pool with the given concurrency and policy.
// Call Start before enqueueing and Close on shutdown.
func NewLocalEnqueuer(concurrency int, policy RetryPolicy, log *zap.Logger) *LocalEnqueuer {
	if log == nil {
		log = zap.NewNop()
	}
	e := &LocalEnqueuer{
		log:      log,
		handlers: make(map[string]HandlerFunc),
		pending:  make(map[string]struct{}),
	}
	e.pool = processing.New(processing.Options{
		Workers:     concurrency,
		MaxAttempts: policy.MaxAttempts,
		Backoff:     policy.Delay,
		Retryable:   func(err error) bool { return !IsPermanent(err) },
		OnDone:      e.done,
		Log:         log,
	})
	return e
}

// Handle registers h for typ.
func (e *LocalEnqueuer) Handle(typ string, h HandlerFunc) {
	e.mu.Lock()
	e.handlers[typ] = h
	e.mu.Unlock()
}

func (e *LocalEnqueuer) Start(ctx context.Context) { e.pool.Start(ctx) }

// Close waits for queued tasks.
func (e *LocalEnqueuer) Close() { e.pool.Close() }

// Enqueue submits task. A task whose key is already queued or running is
// dropped.
func (e *LocalEnqueuer) Enqueue(_ context.Context, task Task) error {
	e.mu.Lock()
	h, ok := e.handlers[task.Type]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTask, task.Type)
	}
	id := task.Type + ":" + task.Key
	if task.Key != "" {
		if _, busy := e.pending[id]; busy {
			e.mu.Unlock()
			return nil
		}
		e.pending[id] = struct{}{}
	}
	e.mu.Unlock()

	payload := task.Payload
	err := e.pool.Submit(processing.Job{
		ID:  id,
		Run: func(ctx context.Context) error { return h(ctx, payload) },
	})
	if err != nil {
		e.release(id)
		return fmt.Errorf("enqueue %s task: %w", task.Type, err)
	}
	return nil
}

func (e *LocalEnqueuer) done(job processing.Job, attempts int, err error) {
	e.release(job.ID)
	if err != nil {
		e.log.Error("task failed", zap.String("task", job.ID), zap.Int("attempts", attempts), zap.Error(err))
	}
}

func (e *LocalEnqueuer) release(id string) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
}
