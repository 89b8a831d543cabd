package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured lines to the console and, when opened with a
// file, appends them to .sensei/logs/sensei.log so failures can be inspected
// after a run.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
	file          *os.File
}

// Options selects the encoder and destinations.
type Options struct {
	// Mode is "prod" for JSON lines or "dev" for console output.
	Mode string
	// File is appended to when set.
	File string
	// Quiet drops console output, keeping only the file.
	Quiet bool
	// Debug lowers the level to debug.
	Debug bool
}

// New builds a logger for the given options.
func New(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Debug {
		level.SetLevel(zap.DebugLevel)
	}

	var cores []zapcore.Core
	if !opts.Quiet {
		cores = append(cores, zapcore.NewCore(encoder(opts.Mode), zapcore.Lock(os.Stderr), level))
	}

	var file *os.File
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("logging: ensure log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(fileEncoder(), zapcore.AddSync(f), level))
	}

	if len(cores) == 0 {
		return Nop(), nil
	}
	return &Logger{SugaredLogger: zap.New(zapcore.NewTee(cores...)).Sugar(), file: file}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func encoder(mode string) zapcore.Encoder {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}
}

func fileEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	if l == nil || l.SugaredLogger == nil {
		return
	}
	_ = l.SugaredLogger.Sync()
}

// Close flushes and releases the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.Sync()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...), file: l.file}
}

// Printf writes a single info line. It lets the logger back the small
// Printf-style interfaces of the queue, store and server packages.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.SugaredLogger == nil {
		return
	}
	l.SugaredLogger.Info(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}
