package utils

import "go.uber.org/zap"

// NewLogger builds the shared production logger. Falls back to a no-op
// logger if construction fails so callers never nil-check.
func NewLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
