package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// AsynqEnqueuer pushes tasks to Redis for cmd/worker.
type AsynqEnqueuer struct {
	client *asynq.Client
	policy RetryPolicy
}

func NewAsynqEnqueuer(client *asynq.Client, policy RetryPolicy) *AsynqEnqueuer {
	return &AsynqEnqueuer{client: client, policy: policy}
}

// Enqueue submits task with MaxRetry derived from the policy. A task with the
// same key that is still pending is left in place.
func (e *AsynqEnqueuer) Enqueue(ctx context.Context, task Task) error {
	opts := []asynq.Option{asynq.MaxRetry(maxRetry(e.policy))}
	if task.Key != "" {
		opts = append(opts, asynq.TaskID(task.Type+":"+task.Key))
	}
	_, err := e.client.EnqueueContext(ctx, asynq.NewTask(task.Type, task.Payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s task: %w", task.Type, err)
	}
	return nil
}

// RetryDelayFunc plugs the policy into asynq.Config. asynq passes the number
// of retries already made, so the first retry waits Delay(1).
func RetryDelayFunc(policy RetryPolicy) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		return policy.Delay(n + 1)
	}
}

// NewServeMux routes asynq tasks to handlers keyed by task type.
func NewServeMux(handlers map[string]HandlerFunc) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for typ, h := range handlers {
		mux.HandleFunc(typ, func(ctx context.Context, t *asynq.Task) error {
			return h(ctx, t.Payload())
		})
	}
	return mux
}

func maxRetry(p RetryPolicy) int {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return p.MaxAttempts - 1
}
