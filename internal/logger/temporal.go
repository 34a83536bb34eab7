package logger

import (
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// temporalLogger routes temporal client and worker logs through zap.
// Temporal is chatty at info, so its info logs are demoted to debug.
type temporalLogger struct {
	sugar *zap.SugaredLogger
}

var _ log.WithLogger = (*temporalLogger)(nil)

// GetTemporalLogger returns a temporal-compatible logger tagged with component=temporal
func (l *Logger) GetTemporalLogger() log.Logger {
	return &temporalLogger{sugar: l.SugaredLogger.With("component", "temporal")}
}

func (t *temporalLogger) Debug(msg string, keyvals ...interface{}) { t.sugar.Debugw(msg, keyvals...) }
func (t *temporalLogger) Info(msg string, keyvals ...interface{})  { t.sugar.Debugw(msg, keyvals...) }
func (t *temporalLogger) Warn(msg string, keyvals ...interface{})  { t.sugar.Warnw(msg, keyvals...) }
func (t *temporalLogger) Error(msg string, keyvals ...interface{}) { t.sugar.Errorw(msg, keyvals...) }

func (t *temporalLogger) With(keyvals ...interface{}) log.Logger {
	return &temporalLogger{sugar: t.sugar.With(keyvals...)}
}
