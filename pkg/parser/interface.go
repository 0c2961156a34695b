package parser

import (
	"context"
	"errors"
)

// ErrNoData is returned by a polled source when no complete line is
// available yet. Callers should try again on the next tick.
var ErrNoData = errors.New("no data available")

// ErrLineTooLong is returned for a single line longer than the source's
// line limit. The line is discarded and reading continues with the next.
var ErrLineTooLong = errors.New("line too long")

// LineSource provides an iterator over raw telemetry lines.
// Implementations are used from a single goroutine.
type LineSource interface {
	// Next returns the next non-empty line.
	// Returns io.EOF when the source is exhausted and ErrNoData when a
	// live source has nothing to deliver right now.
	Next(ctx context.Context) (*Line, error)

	// Close releases any resources held by the source.
	Close() error
}
