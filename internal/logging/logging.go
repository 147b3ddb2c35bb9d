// Package logging builds the zap logger shared by every command.
package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewWriter returns the process logger writing to w: the production JSON
// encoder at info level, or with verbose the console encoder at debug level.
func NewWriter(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	enc := zap.NewProductionEncoderConfig()
	encoder := zapcore.NewJSONEncoder
	if verbose {
		level = zapcore.DebugLevel
		enc = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder
	}
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(encoder(enc), zapcore.Lock(zapcore.AddSync(w)), level)
	if verbose {
		return zap.New(core, zap.AddCaller())
	}
	return zap.New(core)
}

// Component tags a logger with the component that owns it.
func Component(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(zap.String("component", name))
}
