package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger = zap.NewNop()
	closeFile    = func() {}
)

// L returns the process logger. It is a no-op logger until InitFromEnv runs.
func L() *zap.Logger { return globalLogger }

// Sync flushes the process logger and closes its log file, if any.
func Sync() {
	_ = globalLogger.Sync()
	closeFile()
}

// Config selects how chessd logs. Console output is always on; File adds a
// second sink with the same encoding.
type Config struct {
	Level   zapcore.Level
	Format  string // "console" or "json"
	File    string
	Service string
}

// ConfigFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_FILE and LOG_SERVICE.
func ConfigFromEnv() Config {
	cfg := Config{
		Level:   levelOf(os.Getenv("LOG_LEVEL")),
		Format:  strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))),
		File:    strings.TrimSpace(os.Getenv("LOG_FILE")),
		Service: strings.TrimSpace(os.Getenv("LOG_SERVICE")),
	}
	if cfg.Format != "json" {
		cfg.Format = "console"
	}
	return cfg
}

// InitFromEnv replaces the process logger with one built from ConfigFromEnv.
func InitFromEnv() error {
	logger, closer, err := New(ConfigFromEnv())
	if err != nil {
		return err
	}
	closeFile()
	globalLogger, closeFile = logger, closer
	return nil
}

// New builds a logger for cfg. The returned func closes the log file.
func New(cfg Config) (*zap.Logger, func(), error) {
	enc := encoderFor(cfg.Format)
	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(os.Stdout), cfg.Level)}
	closer := func() {}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		sink, closeSink, err := zap.Open(cfg.File)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), sink, cfg.Level))
		closer = closeSink
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if cfg.Service != "" {
		logger = logger.With(zap.String("service", cfg.Service))
	}
	return logger, closer, nil
}

func encoderFor(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "json" {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return zapcore.NewConsoleEncoder(cfg)
}

// levelOf parses a level name, defaulting to info. "warning" is accepted.
func levelOf(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
