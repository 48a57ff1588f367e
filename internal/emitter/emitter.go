// Package emitter delivers fired gesture events to their consumers: the log,
// the outbound TCP stream and any optional sinks.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ayusman/wave/internal/gesture"
	"github.com/ayusman/wave/internal/log"
)

// ErrDeliveryFailure is returned by Emit when a required sink fails.
var ErrDeliveryFailure = errors.New("event delivery failed")

// DeliveryMode selects how failures of the outbound stream are treated.
type DeliveryMode string

const (
	// ModeRequired makes any dial or write failure fatal.
	ModeRequired DeliveryMode = "required"
	// ModeBestEffort logs failures, drops the connection and re-dials later.
	ModeBestEffort DeliveryMode = "best-effort"
)

// ParseDeliveryMode converts a mode name. The empty string selects ModeRequired.
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch DeliveryMode(s) {
	case "", ModeRequired:
		return ModeRequired, nil
	case ModeBestEffort:
		return ModeBestEffort, nil
	}
	return "", fmt.Errorf("unknown delivery mode %q", s)
}

// Sink receives fired events.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev gesture.Event) error
	Close() error
}

type sinkEntry struct {
	sink     Sink
	required bool
}

// Emitter fans an event out to its sinks in registration order. It does no
// deduplication; every call delivers.
type Emitter struct {
	sinks []sinkEntry
}

func New() *Emitter {
	return &Emitter{}
}

// Add registers a sink. Failures of a required sink fail Emit; failures of
// other sinks are logged.
func (e *Emitter) Add(s Sink, required bool) {
	e.sinks = append(e.sinks, sinkEntry{sink: s, required: required})
}

// Sinks returns the registered sink names in order.
func (e *Emitter) Sinks() []string {
	names := make([]string, len(e.sinks))
	for i, entry := range e.sinks {
		names[i] = entry.sink.Name()
	}
	return names
}

// Emit delivers ev to every sink. It stops at the first required sink that
// fails and returns an error wrapping ErrDeliveryFailure.
func (e *Emitter) Emit(ctx context.Context, ev gesture.Event) error {
	for _, entry := range e.sinks {
		err := entry.sink.Deliver(ctx, ev)
		if err == nil {
			continue
		}
		if entry.required {
			return fmt.Errorf("%w: %s: %v", ErrDeliveryFailure, entry.sink.Name(), err)
		}
		log.Warn(log.Fields{
			"sink":  entry.sink.Name(),
			"label": ev.Label,
			"error": err,
		}, "event delivery failed")
	}
	return nil
}

// Close closes every sink, in reverse registration order.
func (e *Emitter) Close() error {
	var errs []error
	for i := len(e.sinks) - 1; i >= 0; i-- {
		s := e.sinks[i].sink
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes the human-readable "[GESTURE] <label>" line to Out, or to
// stdout when Out is nil, regardless of the configured log level. The same
// event is also logged with its fields at info level.
type LogSink struct {
	Out io.Writer
}

func (LogSink) Name() string { return "log" }

func (l LogSink) Deliver(_ context.Context, ev gesture.Event) error {
	out := l.Out
	if out == nil {
		out = os.Stdout
	}
	if _, err := fmt.Fprintf(out, "[GESTURE] %s\n", ev.Label); err != nil {
		return err
	}
	log.Info(log.Fields{"label": ev.Label, "hand": ev.Hand, "id": ev.ID}, "gesture")
	return nil
}

func (LogSink) Close() error { return nil }
