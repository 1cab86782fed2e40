// Package telemetry adapts the core engine's Logger interface to
// go.uber.org/zap, the structured logger the rest of the retrieval
// pack's consensus/transparency forks standardize on.
package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JupiterMetaLabs/chronomerkle/merkle"
)

// ZapLogger adapts a *zap.Logger to merkle.Logger.
type ZapLogger struct {
	z *zap.Logger
}

// New wraps z. A nil z falls back to zap.NewNop() so callers never
// need a separate nil check.
func New(z *zap.Logger) *ZapLogger {
	if z == nil {
		z = zap.NewNop()
	}
	return &ZapLogger{z: z}
}

// NewProduction builds a ZapLogger over zap's production config,
// returning an error if the underlying zap logger fails to build.
func NewProduction() (*ZapLogger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return New(z), nil
}

func (l *ZapLogger) Emit(e merkle.Event) {
	fields := make([]zap.Field, 0, len(e.Metadata)+1)
	fields = append(fields, zap.String("event_kind", e.Kind.String()))
	for k, v := range e.Metadata {
		fields = append(fields, zap.Any(k, v))
	}

	switch e.Severity {
	case merkle.SeverityCritical:
		l.z.Error(e.Description, fields...)
	case merkle.SeverityWarning:
		l.z.Warn(e.Description, fields...)
	default:
		l.z.Info(e.Description, fields...)
	}
}

// Sync flushes any buffered log entries. Call it before process exit.
func (l *ZapLogger) Sync() error { return l.z.Sync() }

// core returns the underlying zapcore.Core, for composing this
// logger's output with additional sinks. It is unexported, so only
// code inside this package can call it.
func (l *ZapLogger) core() zapcore.Core { return l.z.Core() }
