package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format represents the log output format
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config holds configuration for the zap logger
type Config struct {
	Level  Level
	Format Format

	// File is the log file path; empty logs to Output
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Output receives log lines when File is empty (default os.Stderr)
	Output io.Writer
}

// ZapLogger implements Logger on top of zap
type ZapLogger struct {
	base   *zap.Logger
	closer io.Closer
}

// New creates a zap-backed logger
func New(cfg Config) (*ZapLogger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.LevelKey = "level"
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch cfg.Format {
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(encCfg)
	case FormatConsole, "":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var sink zapcore.WriteSyncer
	var closer io.Closer
	switch {
	case cfg.File != "":
		w, err := createFileWriter(cfg)
		if err != nil {
			return nil, err
		}
		sink = zapcore.AddSync(w)
		closer = w
	case cfg.Output != nil:
		sink = zapcore.AddSync(cfg.Output)
	default:
		sink = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(encoder, sink, toZapLevel(cfg.Level))
	return &ZapLogger{base: zap.New(core), closer: closer}, nil
}

func createFileWriter(cfg Config) (io.WriteCloser, error) {
	dir := filepath.Dir(cfg.File)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}, nil
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// toZap converts fields in key order so output is stable
func toZap(fields Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

// Debug logs a debug message
func (l *ZapLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.base.Debug(msg, toZap(fields)...)
}

// Info logs an info message
func (l *ZapLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.base.Info(msg, toZap(fields)...)
}

// Warn logs a warning message
func (l *ZapLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.base.Warn(msg, toZap(fields)...)
}

// Error logs an error message
func (l *ZapLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	zf := toZap(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.base.Error(msg, zf...)
}

// WithFields returns a logger with additional fields
func (l *ZapLogger) WithFields(fields Fields) Logger {
	return &ZapLogger{base: l.base.With(toZap(fields)...), closer: l.closer}
}

// Close flushes and closes the logger
func (l *ZapLogger) Close() error {
	// Sync on a terminal stderr fails with EINVAL on some platforms
	_ = l.base.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
