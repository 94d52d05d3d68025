package callgraph

import (
	"errors"
	"io"
	"log/slog"
)

var (
	// ErrClosed is returned by every Store method after Close.
	ErrClosed = errors.New("callgraph: store closed")

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// CloseWithLog closes the resource and logs any error at warning level. It is meant
// for defer statements where a close error has nowhere else to go.
//
// If logger is nil, slog.Default() is used.
//
//	defer callgraph.CloseWithLog(file, logger, "config file")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
