package server

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ayusman/wave/internal/app"
	"github.com/ayusman/wave/internal/gesture"
	"github.com/ayusman/wave/internal/plugin"
	"github.com/ayusman/wave/internal/store"
)

type fakePipeline struct {
	mu      sync.Mutex
	enabled bool
	status  app.Status
}

func (f *fakePipeline) Status() app.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.status
	s.Enabled = f.enabled
	return s
}

func (f *fakePipeline) IsEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakePipeline) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
}

func (f *fakePipeline) Toggle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = !f.enabled
	return f.enabled
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestPlugins discovers a single "keyboard" plugin supporting "press".
func newTestPlugins(t *testing.T) *plugin.Manager {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "keyboard")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest, _ := json.Marshal(plugin.Manifest{
		Name:       "keyboard",
		Version:    "1.0.0",
		Executable: "run.sh",
		Actions:    []string{"press", "type"},
	})
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), manifest, 0644); err != nil {
		t.Fatal(err)
	}

	m := plugin.NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	return m
}

func testLabels() gesture.LabelMap {
	return gesture.DefaultLabels()
}
