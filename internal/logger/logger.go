// Package logger monta o *slog.Logger dos binários: tint no console (cor só em
// terminal) ou JSON, com nível ajustável em runtime.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"forum-admission/internal/config"
)

// Logger é o logger montado e o LevelVar que controla o seu nível.
type Logger struct {
	*slog.Logger
	Level   *slog.LevelVar
	closeFn func() error
}

// New monta o logger a partir da configuração, escrevendo em stdout, stderr
// ou num arquivo (append).
func New(cfg config.LoggerConfig) (*Logger, error) {
	var (
		writer  io.Writer
		closeFn = func() error { return nil }
	)
	switch strings.ToLower(cfg.OutputPath) {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		file, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		writer = file
		closeFn = file.Close
	}

	l := NewWithWriter(cfg, writer)
	l.closeFn = closeFn
	return l, nil
}

func NewWithWriter(cfg config.LoggerConfig, w io.Writer) *Logger {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Level))

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !isTerminal(w),
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == "error" && a.Value.Kind() == slog.KindAny {
					if err, ok := a.Value.Any().(error); ok {
						return tint.Err(err)
					}
				}
				return a
			},
		})
	}

	return &Logger{
		Logger:  slog.New(handler),
		Level:   level,
		closeFn: func() error { return nil },
	}
}

// ParseLevel aceita debug, info, warn/warning e error; o resto vira info.
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

func (l *Logger) Close() error {
	return l.closeFn()
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
