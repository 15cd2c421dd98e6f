package mcshell

import (
	"io"
	"log/slog"
)

// Logger is the structured logging facade threaded through every
// engine component via constructor injection. Every component logs
// through an injected Logger; none call fmt.Println or a bare log.Printf.
type Logger = *slog.Logger

// NewNopLogger returns a Logger that discards all output, used as the
// default when no logger is supplied.
func NewNopLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
