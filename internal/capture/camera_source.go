package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/wave/internal/detector"
	"github.com/ayusman/wave/internal/log"
)

// CameraOptions configures a CameraSource.
type CameraOptions struct {
	// FPS paces reads while active. Zero disables pacing.
	FPS int
	// MotionThreshold enables idle mode when positive: after IdleTimeout
	// without motion the camera drops to IdleFPS and detection is skipped
	// until motion resumes.
	MotionThreshold float64
	IdleTimeout     time.Duration
}

// DefaultIdleTimeout is how long the scene must stay still before idling.
const DefaultIdleTimeout = 2 * time.Second

// CameraSource reads frames from a Camera and runs the hand detector on each.
type CameraSource struct {
	camera   Camera
	detector detector.Detector
	motion   *MotionDetector
	opts     CameraOptions

	active     bool
	lastMotion time.Time
	nextFrame  time.Time
	now        func() time.Time
}

// NewCameraSource opens cam and returns a source that owns both cam and det.
func NewCameraSource(cam Camera, det detector.Detector, opts CameraOptions) (*CameraSource, error) {
	if err := cam.Open(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}

	s := &CameraSource{
		camera:   cam,
		detector: det,
		opts:     opts,
		active:   true,
		now:      time.Now,
	}
	s.lastMotion = s.now()
	if opts.MotionThreshold > 0 {
		s.motion = NewMotionDetector(opts.MotionThreshold)
	}
	cam.SetFPS(opts.FPS)

	return s, nil
}

// Next blocks until the next frame is due, reads it and detects hands.
func (s *CameraSource) Next(ctx context.Context) (Observation, error) {
	for {
		if err := s.wait(ctx); err != nil {
			return Observation{}, err
		}

		frame, err := s.camera.ReadFrame()
		if errors.Is(err, io.EOF) {
			return Observation{}, io.EOF
		}
		if err != nil {
			return Observation{}, fmt.Errorf("%w: read frame: %v", ErrSourceUnavailable, err)
		}
		if frame == nil {
			continue
		}

		obs, err := s.process(frame)
		frame.Close()
		return obs, err
	}
}

func (s *CameraSource) process(frame *gocv.Mat) (Observation, error) {
	now := s.now()
	obs := Observation{Timestamp: now}

	if s.motion != nil {
		moved, _ := s.motion.Detect(frame)
		s.updateActivity(moved, now)
		if !s.active {
			return obs, nil
		}
	}

	hands, err := s.detector.Detect(frame)
	if errors.Is(err, detector.ErrMalformedHand) {
		return Observation{}, err
	}
	if err != nil {
		return Observation{}, fmt.Errorf("%w: detect hands: %v", ErrSourceUnavailable, err)
	}
	obs.Hands = hands
	return obs, nil
}

func (s *CameraSource) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fps := s.opts.FPS
	if !s.active {
		fps = IdleFPS
	}
	if fps <= 0 {
		return nil
	}

	now := s.now()
	if s.nextFrame.IsZero() || s.nextFrame.Before(now) {
		s.nextFrame = now
	}
	delay := s.nextFrame.Sub(now)
	s.nextFrame = s.nextFrame.Add(time.Second / time.Duration(fps))
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// updateActivity switches between idle and active mode based on motion.
func (s *CameraSource) updateActivity(moved bool, now time.Time) {
	if moved {
		s.lastMotion = now
		if !s.active {
			s.active = true
			s.camera.SetFPS(s.opts.FPS)
			log.Debug(log.Fields{"fps": s.opts.FPS}, "motion detected, switched to active mode")
		}
		return
	}
	if s.active && now.Sub(s.lastMotion) > s.opts.IdleTimeout {
		s.active = false
		s.camera.SetFPS(IdleFPS)
		log.Debug(log.Fields{"fps": IdleFPS}, "no motion, switched to idle mode")
	}
}

// Active reports whether the source is running detection.
func (s *CameraSource) Active() bool {
	return s.active
}

// Close releases the camera, the detector and the motion baseline.
func (s *CameraSource) Close() error {
	var errs []error
	if err := s.camera.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}
	if s.detector != nil {
		if err := s.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
	}
	if s.motion != nil {
		s.motion.Close()
	}
	return errors.Join(errs...)
}
