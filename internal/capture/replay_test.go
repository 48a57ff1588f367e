package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/wave/internal/detector"
)

func TestReplaySource_Next(t *testing.T) {
	var buf bytes.Buffer
	w := NewReplayWriter(&buf)
	start := time.UnixMilli(1_700_000_000_000)
	if err := w.Write(Observation{Timestamp: start, Hands: []detector.HandLandmarks{detector.OpenPalmLandmarks()}}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Write(Observation{Timestamp: start.Add(2 * time.Second)}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	buf.WriteString("\n\n")

	src := NewReplaySource(&buf)
	ctx := context.Background()

	first, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !first.Timestamp.Equal(start) {
		t.Errorf("expected timestamp %v, got %v", start, first.Timestamp)
	}
	if len(first.Hands) != 1 || first.Hands[0] != detector.OpenPalmLandmarks() {
		t.Errorf("unexpected hands %v", first.Hands)
	}

	second, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(second.Hands) != 0 {
		t.Errorf("expected empty frame, got %d hands", len(second.Hands))
	}

	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReplaySource_MissingTimestamp(t *testing.T) {
	src := NewReplaySource(strings.NewReader(`{"hands":[]}` + "\n"))
	fixed := time.Unix(42, 0)
	src.now = func() time.Time { return fixed }

	obs, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !obs.Timestamp.Equal(fixed) {
		t.Errorf("expected arrival time %v, got %v", fixed, obs.Timestamp)
	}
}

func TestReplaySource_PerFrameErrors(t *testing.T) {
	input := strings.Join([]string{
		`{not json`,
		`{"timestamp_ms": 5, "hands": [{"handedness": "Left", "score": 1, "points": [{"x":0,"y":0,"z":0}]}]}`,
		`{"timestamp_ms": 6, "hands": []}`,
	}, "\n")
	src := NewReplaySource(strings.NewReader(input))
	ctx := context.Background()

	_, err := src.Next(ctx)
	if err == nil || IsTerminal(err) {
		t.Errorf("expected per-frame decode error, got %v", err)
	}

	_, err = src.Next(ctx)
	if !errors.Is(err, detector.ErrMalformedHand) {
		t.Errorf("expected ErrMalformedHand, got %v", err)
	}

	obs, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("expected stream to continue, got %v", err)
	}
	if obs.Timestamp.UnixMilli() != 6 {
		t.Errorf("expected third record, got %v", obs.Timestamp)
	}
}

func TestOpenReplay(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := OpenReplay(filepath.Join(t.TempDir(), "nope.jsonl"))
		if !errors.Is(err, ErrSourceUnavailable) {
			t.Errorf("expected ErrSourceUnavailable, got %v", err)
		}
	})

	t.Run("file is closed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "frames.jsonl")
		if err := os.WriteFile(path, []byte(`{"hands":[]}`+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		src, err := OpenReplay(path)
		if err != nil {
			t.Fatalf("OpenReplay() error = %v", err)
		}
		if _, err := src.Next(context.Background()); err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if err := src.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		src := NewReplaySource(strings.NewReader(`{"hands":[]}`))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
