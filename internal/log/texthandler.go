package log

import (
	"io"
	"log/slog"
)

// NewValueTextHandler returns a slog.Handler that writes one line per record
// as slog's text format ("time=... level=... msg=... key=value ..."), the
// shape of the standard logger's output across every command.
func NewValueTextHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return slog.NewTextHandler(w, opts)
}
