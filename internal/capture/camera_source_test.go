package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/ayusman/wave/internal/detector"
)

func TestCameraSource_Next(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera(2)
	det := detector.NewMockDetector()
	det.QueueHands(detector.ThumbsUpLandmarks())
	det.QueueHands()

	src, err := NewCameraSource(cam, det, CameraOptions{})
	if err != nil {
		t.Fatalf("NewCameraSource() error = %v", err)
	}
	defer src.Close()

	ctx := context.Background()

	first, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(first.Hands) != 1 || first.Hands[0].Handedness != "Right" {
		t.Errorf("expected one right hand, got %v", first.Hands)
	}
	if first.Timestamp.IsZero() {
		t.Error("expected arrival timestamp")
	}

	second, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(second.Hands) != 0 {
		t.Errorf("expected no hands, got %d", len(second.Hands))
	}

	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after last frame, got %v", err)
	}
	if det.Calls() != 2 {
		t.Errorf("expected 2 detector calls, got %d", det.Calls())
	}
}

func TestCameraSource_SkipsEmptyFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera(1)
	cam.WarmUp(3)
	det := detector.NewMockDetector()
	det.QueueHands(detector.FistLandmarks())

	src, err := NewCameraSource(cam, det, CameraOptions{FPS: 60})
	if err != nil {
		t.Fatalf("NewCameraSource() error = %v", err)
	}
	defer src.Close()

	obs, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(obs.Hands) != 1 {
		t.Errorf("expected the first real frame's hand, got %v", obs.Hands)
	}
	if det.Calls() != 1 {
		t.Errorf("expected empty frames to skip detection, got %d calls", det.Calls())
	}
}

func TestCameraSource_Errors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	t.Run("open failure", func(t *testing.T) {
		cam := NewMockCamera(1)
		cam.FailOpen(errors.New("no device"))

		_, err := NewCameraSource(cam, detector.NewMockDetector(), CameraOptions{})
		if !errors.Is(err, ErrSourceUnavailable) {
			t.Errorf("expected ErrSourceUnavailable, got %v", err)
		}
	})

	t.Run("read failure is terminal", func(t *testing.T) {
		cam := NewMockCamera(5)
		src, err := NewCameraSource(cam, detector.NewMockDetector(), CameraOptions{})
		if err != nil {
			t.Fatalf("NewCameraSource() error = %v", err)
		}
		defer src.Close()
		cam.FailRead(errors.New("device unplugged"))

		_, err = src.Next(context.Background())
		if !errors.Is(err, ErrSourceUnavailable) || !IsTerminal(err) {
			t.Errorf("expected terminal ErrSourceUnavailable, got %v", err)
		}
	})

	t.Run("malformed hand skips frame only", func(t *testing.T) {
		cam := NewMockCamera(5)
		det := detector.NewMockDetector()
		det.SetError(fmt.Errorf("%w: got 3 points", detector.ErrMalformedHand))
		src, err := NewCameraSource(cam, det, CameraOptions{})
		if err != nil {
			t.Fatalf("NewCameraSource() error = %v", err)
		}
		defer src.Close()

		_, err = src.Next(context.Background())
		if !errors.Is(err, detector.ErrMalformedHand) {
			t.Errorf("expected ErrMalformedHand, got %v", err)
		}
		if IsTerminal(err) {
			t.Error("malformed hand must not end the stream")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		src, err := NewCameraSource(NewMockCamera(5), detector.NewMockDetector(), CameraOptions{FPS: 1})
		if err != nil {
			t.Fatalf("NewCameraSource() error = %v", err)
		}
		defer src.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestCameraSource_Close(t *testing.T) {
	cam := NewMockCamera(1)
	det := detector.NewMockDetector()

	src, err := NewCameraSource(cam, det, CameraOptions{})
	if err != nil {
		t.Fatalf("NewCameraSource() error = %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if cam.IsOpen() {
		t.Error("camera still open after Close")
	}
	if !det.Closed() {
		t.Error("detector not closed")
	}
}

func TestCameraSource_IdleMode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	cam := NewMockCamera(10)
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.FistLandmarks()})

	src, err := NewCameraSource(cam, det, CameraOptions{
		MotionThreshold: 1.0,
		IdleTimeout:     time.Second,
	})
	if err != nil {
		t.Fatalf("NewCameraSource() error = %v", err)
	}
	defer src.Close()

	clock := time.Unix(1000, 0)
	src.now = func() time.Time { return clock }
	src.lastMotion = clock
	// Pacing off so the fake clock is the only time source.
	src.opts.FPS = 0

	// Blank frames never move; the source stays active until the timeout.
	obs, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(obs.Hands) != 1 {
		t.Errorf("expected detection while active, got %d hands", len(obs.Hands))
	}

	clock = clock.Add(2 * time.Second)
	src.active = true
	src.updateActivity(false, clock)
	if src.Active() {
		t.Fatal("expected idle mode after timeout without motion")
	}
	if cam.FPS() != IdleFPS {
		t.Errorf("expected camera at idle fps, got %d", cam.FPS())
	}

	src.updateActivity(true, clock)
	if !src.Active() {
		t.Error("motion should reactivate the source")
	}
}
