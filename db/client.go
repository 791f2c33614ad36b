// Package db holds what the database backends share.
package db

import (
	"io"

	"go.uber.org/zap"
)

// CloseClient closes c, logging the outcome under name. A nil c is a no-op.
func CloseClient(logger *zap.Logger, name string, c io.Closer) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		logger.Info("nothing to close", zap.String("client", name))
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("failed to close", zap.String("client", name), zap.Error(err))
		return
	}
	logger.Info("closed", zap.String("client", name))
}
