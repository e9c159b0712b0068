// Package logger configures the process-wide phuslu logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/phuslu/log"
)

// Init sets log.DefaultLogger. format is "console", "json" or empty to pick
// console output when stderr is a terminal.
func Init(level, format string) {
	log.DefaultLogger = New(level, format, os.Stderr)
	log.Info().Str("level", log.DefaultLogger.Level.String()).Msg("logger initialized")
}

// New builds a logger writing to w.
func New(level, format string, w io.Writer) log.Logger {
	lvl := log.ParseLevel(strings.ToLower(level))

	console := format == "console"
	if format == "" {
		if f, ok := w.(*os.File); ok {
			console = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}

	var writer log.Writer = &log.IOWriter{Writer: w}
	if console {
		writer = &log.ConsoleWriter{
			Writer:         w,
			ColorOutput:    true,
			EndWithMessage: true,
		}
	}

	return log.Logger{
		Level:      lvl,
		Caller:     1,
		TimeFormat: "2006-01-02T15:04:05Z07:00",
		Writer:     writer,
	}
}
