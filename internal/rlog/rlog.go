// Package rlog provides the node's structured logger: an slog.Logger
// over an slog text handler. On a TTY the output is written through
// go-colorable; records carry no colour codes, so the format is the same
// plain text whether or not output is piped or redirected.
package rlog

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var root = slog.New(newHandler(os.Stderr, slog.LevelInfo))

// SetLevel rebuilds the root logger at the given level.
func SetLevel(level slog.Level) {
	root = slog.New(newHandler(os.Stderr, level))
}

func newHandler(w io.Writer, level slog.Level) slog.Handler {
	out := w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = colorable.NewColorable(f)
	}
	return slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
}

func Debug(msg string, args ...any) { root.Debug(msg, args...) }
func Info(msg string, args ...any)  { root.Info(msg, args...) }
func Warn(msg string, args ...any)  { root.Warn(msg, args...) }
func Error(msg string, args ...any) { root.Error(msg, args...) }

// With returns a logger with the given key/value pairs attached to
// every subsequent record, the way the teacher's worker loops tag
// every line with a component name.
func With(args ...any) *slog.Logger {
	return root.With(args...)
}
