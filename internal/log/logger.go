package log

import (
	"io"
	"log/slog"
)

// Options configures NewLogger.
type Options struct {
	// Verbose lowers the level to Debug. The default level is Info.
	Verbose bool

	// JSON selects the JSON handler instead of the text handler.
	JSON bool

	// Quiet discards every record.
	Quiet bool
}

// NewLogger creates a logger writing to w through a SecureHandler.
//
// Quiet mode is a property of the returned logger only; nothing global is
// changed, so a quiet server and a verbose CLI run can coexist.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	if opts.Quiet {
		w = io.Discard
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return slog.New(NewSecureHandler(handler))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return NewLogger(io.Discard, Options{Quiet: true})
}
