package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hbench/hbench/internal/logging"
	"github.com/hbench/hbench/internal/metrics"
)

// failureLogger writes one structured entry per failed request.
type failureLogger struct {
	logger *logging.Logger
	level  zapcore.Level
}

// newFailureLogger logs at warn when the user asked for failures, otherwise at debug.
func newFailureLogger(logger *logging.Logger, explicit bool) *failureLogger {
	level := zapcore.DebugLevel
	if explicit {
		level = zapcore.WarnLevel
	}
	return &failureLogger{logger: logger.WithComponent("request"), level: level}
}

func (l *failureLogger) LogFailure(o metrics.Outcome) {
	fields := []zap.Field{
		zap.String("kind", string(o.Kind)),
		zap.Duration("latency", o.Latency),
	}
	if o.StatusCode != 0 {
		fields = append(fields, zap.Int("status", o.StatusCode))
	}
	if o.Err != "" {
		fields = append(fields, zap.String("error", o.Err))
	}
	if ce := l.logger.Check(l.level, "request failed"); ce != nil {
		ce.Write(fields...)
	}
}
