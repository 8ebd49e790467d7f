package queue

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// Permanent marks err so that neither queue retries it. The original error
// stays reachable through errors.Is.
func Permanent(err error) error {
	if err == nil || IsPermanent(err) {
		return err
	}
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, asynq.SkipRetry)
}
