package capture

import (
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back blank frames for tests. After the configured number
// of frames ReadFrame returns io.EOF.
type MockCamera struct {
	mu      sync.Mutex
	frames  int
	read    int
	warmup  int
	fps     int
	running bool
	openErr error
	readErr error
}

// NewMockCamera creates a camera that yields n blank 64x48 frames.
func NewMockCamera(n int) *MockCamera {
	return &MockCamera{frames: n, fps: DefaultFPS}
}

// FailOpen makes Open return err.
func (c *MockCamera) FailOpen(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

// WarmUp makes the first n reads after Open return no frame and no error,
// like a device that is still starting.
func (c *MockCamera) WarmUp(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warmup = n
}

// FailRead makes every subsequent ReadFrame return err.
func (c *MockCamera) FailRead(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.running = true
	c.read = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if c.readErr != nil {
		return nil, c.readErr
	}
	if c.warmup > 0 {
		c.warmup--
		return nil, nil
	}
	if c.read >= c.frames {
		return nil, io.EOF
	}
	c.read++

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fps > 0 {
		c.fps = fps
	}
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
