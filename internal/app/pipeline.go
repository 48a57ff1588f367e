package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ayusman/wave/internal/capture"
	"github.com/ayusman/wave/internal/detector"
	"github.com/ayusman/wave/internal/gesture"
	"github.com/ayusman/wave/internal/log"
)

// Run reads observations from src until it ends and processes each one.
//
// It returns nil when the source reports io.EOF or ctx is cancelled, and an
// error when the source breaks or a required delivery fails. A frame that
// has started is finished before ctx is checked again.
func (a *App) Run(ctx context.Context, src capture.Source) error {
	log.Info(log.Fields{"run_id": a.runID, "labels": a.Labels().String()}, "pipeline started")

	for {
		if ctx.Err() != nil {
			log.Info(log.Fields{"run_id": a.runID}, "pipeline stopped")
			return nil
		}

		obs, err := src.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			log.Info(log.Fields{"run_id": a.runID}, "source exhausted")
			return nil
		case ctx.Err() != nil:
			log.Info(log.Fields{"run_id": a.runID}, "pipeline stopped")
			return nil
		case capture.IsTerminal(err):
			return err
		default:
			log.Warn(log.Fields{"error": err}, "skipping frame")
			continue
		}

		if err := a.Process(ctx, obs); err != nil {
			return err
		}
	}
}

// Process runs every hand of one observation through the pipeline, in
// detection order. Only a failed emit is returned; per-hand failures are
// logged and leave the hand's debounce state untouched.
func (a *App) Process(ctx context.Context, obs capture.Observation) error {
	if !a.countFrame() {
		return nil
	}

	now := obs.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	keys := handKeys(obs.Hands)
	for i := range obs.Hands {
		ev, fired, err := a.processHand(keys[i], &obs.Hands[i], now)
		if err != nil {
			log.Warn(log.Fields{"hand": keys[i], "error": err}, "skipping hand")
			continue
		}
		if !fired {
			continue
		}

		a.recordEvent(ev)
		if err := a.config.Emitter.Emit(ctx, ev); err != nil {
			return fmt.Errorf("emit %s: %w", ev.Label, err)
		}
	}
	return nil
}

func (a *App) processHand(key string, hand *detector.HandLandmarks, now time.Time) (gesture.Event, bool, error) {
	vector := hand.Features()

	result, err := a.config.Classifier.Classify(vector)
	if err != nil {
		return gesture.Event{}, false, err
	}

	label := gesture.Gate(result, a.config.Threshold)
	if !a.config.Headless || log.DebugEnabled() {
		fields := log.Fields{
			"hand":     key,
			"label":    result.Label,
			"distance": fmt.Sprintf("%.4f", result.Distance),
			"gated":    label,
		}
		if a.config.Headless {
			log.Debug(fields, "frame")
		} else {
			log.Info(fields, "frame")
		}
	}

	ev, fired := a.debouncer(key).Observe(label, now)
	return ev, fired, nil
}

// handKeys names the hand streams of one frame by handedness. A hand with
// no handedness, or one whose handedness was already taken by an earlier
// hand in the frame, is keyed by its index.
func handKeys(hands []detector.HandLandmarks) []string {
	keys := make([]string, len(hands))
	seen := make(map[string]bool, len(hands))
	for i, h := range hands {
		key := h.Handedness
		if key == "" || seen[key] {
			key = fmt.Sprintf("hand-%d", i)
		}
		seen[key] = true
		keys[i] = key
	}
	return keys
}
