package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ayusman/wave/internal/detector"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxReplayLine = 1 << 20

// ReplayRecord is one line of a replay file.
type ReplayRecord struct {
	TimestampMs *int64              `json:"timestamp_ms,omitempty"`
	Hands       []detector.WireHand `json:"hands"`
}

// NewReplayRecord builds a record for obs, as written by recorders and tests.
func NewReplayRecord(obs Observation) ReplayRecord {
	ms := obs.Timestamp.UnixMilli()
	rec := ReplayRecord{TimestampMs: &ms, Hands: make([]detector.WireHand, len(obs.Hands))}
	for i, h := range obs.Hands {
		rec.Hands[i] = detector.NewWireHand(h)
	}
	return rec
}

// ReplaySource reads newline-delimited JSON observations.
type ReplaySource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
	now     func() time.Time
}

// OpenReplay opens path for replay. "-" reads standard input.
func OpenReplay(path string) (*ReplaySource, error) {
	if path == "-" {
		return NewReplaySource(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	s := NewReplaySource(f)
	s.closer = f
	return s, nil
}

// NewReplaySource reads observations from r. The caller keeps ownership of r.
func NewReplaySource(r io.Reader) *ReplaySource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxReplayLine)
	return &ReplaySource{scanner: scanner, now: time.Now}
}

// Next decodes the next non-empty line. Records without a timestamp are
// stamped with the time they were read.
func (s *ReplaySource) Next(ctx context.Context) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}

	for s.scanner.Scan() {
		s.line++
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return s.decode(line)
	}
	if err := s.scanner.Err(); err != nil {
		return Observation{}, fmt.Errorf("%w: read replay: %v", ErrSourceUnavailable, err)
	}
	return Observation{}, io.EOF
}

func (s *ReplaySource) decode(line []byte) (Observation, error) {
	var rec ReplayRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return Observation{}, fmt.Errorf("replay line %d: %w", s.line, err)
	}

	obs := Observation{Hands: make([]detector.HandLandmarks, 0, len(rec.Hands))}
	if rec.TimestampMs != nil {
		obs.Timestamp = time.UnixMilli(*rec.TimestampMs)
	} else {
		obs.Timestamp = s.now()
	}

	for i, h := range rec.Hands {
		lm, err := h.ToHandLandmarks()
		if err != nil {
			return Observation{}, fmt.Errorf("replay line %d hand %d: %w", s.line, i, err)
		}
		obs.Hands = append(obs.Hands, lm)
	}
	return obs, nil
}

// Close closes the underlying file when the source opened it.
func (s *ReplaySource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ReplayWriter writes observations in the format ReplaySource reads.
type ReplayWriter struct {
	w *bufio.Writer
}

func NewReplayWriter(w io.Writer) *ReplayWriter {
	return &ReplayWriter{w: bufio.NewWriter(w)}
}

// Write appends one observation line.
func (w *ReplayWriter) Write(obs Observation) error {
	data, err := json.Marshal(NewReplayRecord(obs))
	if err != nil {
		return fmt.Errorf("encode observation: %w", err)
	}
	if _, err := w.w.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// Flush writes buffered lines to the underlying writer.
func (w *ReplayWriter) Flush() error {
	return w.w.Flush()
}
