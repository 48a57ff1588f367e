package capture

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/wave/internal/detector"
)

// ErrSourceUnavailable is returned when a source cannot be opened or fails
// in a way that ends the stream.
var ErrSourceUnavailable = errors.New("frame source unavailable")

// Observation is one processed video frame.
type Observation struct {
	Timestamp time.Time
	Hands     []detector.HandLandmarks
}

// Source yields observations in arrival order.
//
// Next returns io.EOF when the stream ends, the context error when ctx is
// done, and an error wrapping ErrSourceUnavailable when the source broke.
// Any other error concerns a single frame; the caller may call Next again.
type Source interface {
	Next(ctx context.Context) (Observation, error)
	Close() error
}

// IsTerminal reports whether err returned by Next ends the stream.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
