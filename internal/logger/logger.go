// Package logger provides structured logging setup for quakefeed.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/seistech/quakefeed/internal/config"
)

// levelVar is the live log level, shared by every handler New creates so
// config reload can adjust verbosity without restarting.
var levelVar slog.LevelVar

const (
	asyncChanSize = 4096
	asyncWorkers  = 1
)

// New creates a *slog.Logger from the given Logging config. Output is JSON
// to stderr, duplicated into a rotating file when cfg.File is set, with a
// "service" attribute on every record. The returned Closer flushes the
// async buffer and the file sink; call it on shutdown.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	levelVar.Set(parseLevel(cfg.Level))

	var out io.Writer = os.Stderr
	var file *lumberjack.Logger
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		out = io.MultiWriter(os.Stderr, file)
	}

	var handler slog.Handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: &levelVar,
	})

	closer := Closer(nopCloser{})
	if cfg.Async {
		ah := NewAsyncHandler(handler, asyncChanSize, asyncWorkers)
		handler = ah
		closer = ah
	}
	if file != nil {
		closer = &fileCloser{inner: closer, file: file}
	}

	return slog.New(handler).With("service", cfg.Service), closer
}

// SetLevel adjusts the live log level for every logger created by New.
func SetLevel(s string) {
	levelVar.Set(parseLevel(s))
}

// fileCloser closes the rotating file sink after the inner closer drained.
type fileCloser struct {
	inner Closer
	file  *lumberjack.Logger
}

func (c *fileCloser) Close() {
	c.inner.Close()
	_ = c.file.Close()
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
