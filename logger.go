package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

var logOutput io.Writer = os.Stderr

// newLogger builds the colored slog logger used throughout the tool
func newLogger(output io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(output, &tint.Options{
		Level:      level,
		AddSource:  debug,
		TimeFormat: "15:04:05",
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
	return slog.New(handler)
}
