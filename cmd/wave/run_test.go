package main

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ayusman/wave/internal/capture"
	"github.com/ayusman/wave/internal/detector"
	"github.com/ayusman/wave/internal/emitter"
	"github.com/ayusman/wave/internal/gesture"
	"github.com/ayusman/wave/internal/store"
)

var start = time.UnixMilli(1_714_564_800_000)

func TestRunPipeline_Replay(t *testing.T) {
	cfg := testConfig(t)
	addr, lines := consumer(t)
	cfg.OutboundAddr = addr

	thumbs := detector.ThumbsUpLandmarks()
	fist := detector.FistLandmarks()
	degenerate := detector.CoincidentLandmarks(detector.Point3D{X: 1, Y: 1, Z: 1})
	writeReplay(t, cfg.ReplayPath,
		capture.Observation{Timestamp: start, Hands: []detector.HandLandmarks{thumbs}},
		capture.Observation{Timestamp: start.Add(300 * time.Millisecond), Hands: []detector.HandLandmarks{thumbs}},
		capture.Observation{Timestamp: start.Add(600 * time.Millisecond), Hands: []detector.HandLandmarks{degenerate}},
		capture.Observation{Timestamp: start.Add(2 * time.Second), Hands: []detector.HandLandmarks{thumbs}},
		capture.Observation{Timestamp: start.Add(4 * time.Second), Hands: []detector.HandLandmarks{fist}},
	)

	if err := runPipeline(context.Background(), cfg); err != nil {
		t.Fatalf("runPipeline() error = %v", err)
	}

	got := collect(t, lines)
	want := []string{`{"gesture":"thumbs_up"}`, `{"gesture":"thumbs_up"}`, `{"gesture":"fist"}`}
	if len(got) != len(want) {
		t.Fatalf("consumer got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %s, want %s", i, got[i], want[i])
		}
	}

	journal, err := store.New(cfg.JournalPath())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer journal.Close()
	counts, err := journal.Events().CountByLabel()
	if err != nil {
		t.Fatalf("CountByLabel() error = %v", err)
	}
	if counts["thumbs_up"] != 2 || counts["fist"] != 1 {
		t.Errorf("journal counts = %v", counts)
	}
}

func TestRunPipeline_Failures(t *testing.T) {
	t.Run("missing model", func(t *testing.T) {
		cfg := testConfig(t)
		os.Remove(cfg.ModelPath)
		writeReplay(t, cfg.ReplayPath)

		err := runPipeline(context.Background(), cfg)
		if !errors.Is(err, gesture.ErrModelUnavailable) {
			t.Errorf("expected ErrModelUnavailable, got %v", err)
		}
	})

	t.Run("label override must cover the model", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Labels = "0:open_hand,1:fist,5:peace"
		writeReplay(t, cfg.ReplayPath)

		err := runPipeline(context.Background(), cfg)
		if !errors.Is(err, gesture.ErrModelUnavailable) {
			t.Errorf("expected ErrModelUnavailable, got %v", err)
		}
	})

	t.Run("missing replay", func(t *testing.T) {
		cfg := testConfig(t)

		err := runPipeline(context.Background(), cfg)
		if !errors.Is(err, capture.ErrSourceUnavailable) {
			t.Errorf("expected ErrSourceUnavailable, got %v", err)
		}
	})

	t.Run("unreachable consumer", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.OutboundAddr = closedAddr(t)
		writeReplay(t, cfg.ReplayPath)

		err := runPipeline(context.Background(), cfg)
		if !errors.Is(err, emitter.ErrDeliveryFailure) {
			t.Errorf("expected ErrDeliveryFailure, got %v", err)
		}
	})

	t.Run("interrupt while connecting is a clean stop", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.OutboundAddr = closedAddr(t)
		writeReplay(t, cfg.ReplayPath)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := runPipeline(ctx, cfg); err != nil {
			t.Errorf("runPipeline() error = %v, want nil", err)
		}
	})

	t.Run("best-effort consumer may be absent", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.OutboundAddr = closedAddr(t)
		cfg.DeliveryMode = string(emitter.ModeBestEffort)
		writeReplay(t, cfg.ReplayPath,
			capture.Observation{Timestamp: start, Hands: []detector.HandLandmarks{detector.ThumbsUpLandmarks()}},
		)

		if err := runPipeline(context.Background(), cfg); err != nil {
			t.Errorf("runPipeline() error = %v", err)
		}
	})
}
