// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package ludlog is the zap-backed reference implementation of the
// manager.Logger contract, with trace-ID-aware context helpers in the
// style of this project's ambient logging stack.
package ludlog

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type traceIDKey struct{}

// TraceIDKey is the context key under which a trace ID is stored so that
// WithContext can attach it to every emitted log line.
var TraceIDKey = traceIDKey{}

// WithTraceID returns a derived context carrying id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// Logger wraps a *zap.Logger and satisfies manager.Logger. Beyond the four
// level-gated methods the Manager requires, it offers WithTrace, which
// returns the underlying *zap.Logger tagged with the context's trace ID,
// and Sync.
type Logger struct {
	zap   *zap.Logger
	level zapcore.Level
}

// Option configures a Logger.
type Option func(*options)

type options struct {
	level  string
	driver string
	path   string
}

// WithLevel sets the minimum severity: debug, info, warn, error.
func WithLevel(level string) Option { return func(o *options) { o.level = level } }

// WithDriver selects the zap output target: "stdout" or "file".
func WithDriver(driver string) Option { return func(o *options) { o.driver = driver } }

// WithLogPath sets the output file path when the driver is "file".
func WithLogPath(path string) Option { return func(o *options) { o.path = path } }

// New constructs a Logger from the given options, defaulting to stdout at
// info level when unset.
func New(opts ...Option) (*Logger, error) {
	o := &options{level: "info", driver: "stdout"}
	for _, apply := range opts {
		apply(o)
	}

	level := parseLevel(o.level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	if o.driver == "file" && o.path != "" {
		f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("ludlog: open log file %s: %w", o.path, err)
		}
		sink = zapcore.Lock(zapcore.AddSync(f))
	} else {
		sink = zapcore.Lock(zapcore.AddSync(os.Stdout))
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level)
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &Logger{zap: zl, level: level}, nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Error logs msg at error level. Satisfies manager.Logger.
func (l *Logger) Error(msg string) { l.zap.Error(msg) }

// Warn logs msg at warn level. Satisfies manager.Logger.
func (l *Logger) Warn(msg string) { l.zap.Warn(msg) }

// Log logs msg at info level. Satisfies manager.Logger.
func (l *Logger) Log(msg string) { l.zap.Info(msg) }

// Debug logs msg at debug level. Satisfies manager.Logger.
func (l *Logger) Debug(msg string) { l.zap.Debug(msg) }

// WithTrace returns a child *zap.Logger annotated with the trace ID found
// in ctx, if any, for callers that want structured fields beyond the four
// plain-string methods above.
func (l *Logger) WithTrace(ctx context.Context) *zap.Logger {
	if id, ok := ctx.Value(TraceIDKey).(string); ok && id != "" {
		return l.zap.With(zap.String("trace_id", id))
	}
	return l.zap
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
