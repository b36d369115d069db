// Package logger builds the process zap logger.
package logger

import (
	"os"

	"go.uber.org/zap"
)

// New returns a development logger when debug is set or APP_ENV is not
// "production", and a production logger otherwise.
func New(debug bool) (*zap.Logger, error) {
	if debug || os.Getenv("APP_ENV") != "production" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
