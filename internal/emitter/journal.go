package emitter

import (
	"context"

	"github.com/ayusman/wave/internal/gesture"
)

// Recorder persists events. store.EventRepository implements it.
type Recorder interface {
	Record(ev gesture.Event) error
}

// JournalSink records every event in the event journal.
type JournalSink struct {
	rec Recorder
}

func NewJournalSink(rec Recorder) *JournalSink {
	return &JournalSink{rec: rec}
}

func (j *JournalSink) Name() string { return "journal" }

func (j *JournalSink) Deliver(_ context.Context, ev gesture.Event) error {
	return j.rec.Record(ev)
}

func (j *JournalSink) Close() error { return nil }
