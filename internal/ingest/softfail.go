package ingest

import "go.uber.org/zap"

// softFail runs a best-effort cleanup step. Failures are logged and returned
// but never change the outcome of the caller.
func softFail(log *zap.Logger, op string, fn func() error) error {
	err := fn()
	if err != nil {
		log.Warn("best-effort step failed", zap.String("op", op), zap.Error(err))
	}
	return err
}
