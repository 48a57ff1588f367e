// Package app runs the recognition pipeline: normalize, classify, gate,
// debounce and emit, once per detected hand of every observation.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/wave/internal/gesture"
)

// Emitter delivers fired events. *emitter.Emitter implements it.
type Emitter interface {
	Emit(ctx context.Context, ev gesture.Event) error
}

// Config holds the pipeline settings.
type Config struct {
	Classifier *gesture.Classifier
	Emitter    Emitter
	Threshold  float64
	Cooldown   time.Duration
	Policy     gesture.Policy
	// Headless disables the per-frame trace lines.
	Headless bool
}

// Status is a point-in-time view of the pipeline for the status API.
type Status struct {
	RunID      string                   `json:"run_id"`
	Enabled    bool                     `json:"enabled"`
	Policy     gesture.Policy           `json:"policy"`
	Threshold  float64                  `json:"threshold"`
	Cooldown   string                   `json:"cooldown"`
	Frames     uint64                   `json:"frames"`
	Events     uint64                   `json:"events"`
	StartedAt  time.Time                `json:"started_at"`
	LastEvents map[string]gesture.Event `json:"last_events"`
}

// App is the gesture pipeline. Debouncers are only touched by the goroutine
// calling Run; the snapshot fields behind mu may be read from anywhere.
type App struct {
	config     Config
	runID      string
	startedAt  time.Time
	debouncers map[string]*gesture.Debouncer

	mu         sync.RWMutex
	enabled    bool
	frames     uint64
	events     uint64
	lastEvents map[string]gesture.Event
}

// New creates an App. Detection starts enabled.
func New(config Config) (*App, error) {
	if config.Classifier == nil {
		return nil, gesture.ErrModelUnavailable
	}
	if config.Policy == "" {
		config.Policy = gesture.PolicyCooldown
	}
	return &App{
		config:     config,
		runID:      uuid.NewString(),
		startedAt:  time.Now(),
		debouncers: make(map[string]*gesture.Debouncer),
		enabled:    true,
		lastEvents: make(map[string]gesture.Event),
	}, nil
}

// SetEnabled turns detection on or off. While disabled, observations are
// consumed and discarded.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// Toggle flips detection on or off and returns the new state.
func (a *App) Toggle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = !a.enabled
	return a.enabled
}

// IsEnabled returns whether gesture detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Labels returns the label table of the loaded model.
func (a *App) Labels() gesture.LabelMap {
	return a.config.Classifier.Labels()
}

// RunID identifies this process run.
func (a *App) RunID() string {
	return a.runID
}

// Status returns a snapshot of the pipeline state.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	last := make(map[string]gesture.Event, len(a.lastEvents))
	for hand, ev := range a.lastEvents {
		last[hand] = ev
	}
	return Status{
		RunID:      a.runID,
		Enabled:    a.enabled,
		Policy:     a.config.Policy,
		Threshold:  a.config.Threshold,
		Cooldown:   a.config.Cooldown.String(),
		Frames:     a.frames,
		Events:     a.events,
		StartedAt:  a.startedAt,
		LastEvents: last,
	}
}

func (a *App) debouncer(hand string) *gesture.Debouncer {
	d, ok := a.debouncers[hand]
	if !ok {
		d = gesture.NewDebouncer(hand, a.config.Cooldown, a.config.Policy)
		a.debouncers[hand] = d
	}
	return d
}

func (a *App) countFrame() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frames++
	return a.enabled
}

func (a *App) recordEvent(ev gesture.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events++
	a.lastEvents[ev.Hand] = ev
}
