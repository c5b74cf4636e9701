// Package logging installs the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ashureev/link-coach/internal/config"
	"gopkg.in/lumberjack.v2"
)

// Init builds a JSON logger writing to stdout and, when cfg.File is set, to a
// rotating file. It becomes the slog default. The returned closer releases
// the file.
func Init(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	logger, closer := New(os.Stdout, cfg)
	slog.SetDefault(logger)
	logger.Info("Logger initialized", "level", cfg.Level, "file", cfg.File)
	return logger, closer
}

// New builds the logger without installing it.
func New(stdout io.Writer, cfg config.LogConfig) (*slog.Logger, io.Closer) {
	writers := []io.Writer{stdout}
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
		}
		writers = append(writers, rotating)
		closer = rotating
	}

	h := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: ParseLevel(cfg.Level)})
	return slog.New(h), closer
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
