package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testPlugin(t *testing.T, script string) *Plugin {
	t.Helper()
	dir := writePlugin(t, t.TempDir(), "test-plugin", script, "run")
	return &Plugin{
		Manifest:   Manifest{Name: "test-plugin", Executable: "run.sh", Actions: []string{"run"}},
		Path:       dir,
		Executable: filepath.Join(dir, "run.sh"),
	}
}

func TestExecutor_Execute(t *testing.T) {
	skipOnWindows(t)

	plugin := testPlugin(t, `echo '{"success":true,"data":{"message":"hello world"}}'`+"\n")

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{
		Action:  "run",
		Gesture: "thumbs_up",
		Config:  json.RawMessage(`{"key":"value"}`),
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if !response.Success {
		t.Errorf("expected success=true, got false")
	}
	var data map[string]any
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "hello world" {
		t.Errorf("expected message 'hello world', got %v", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	skipOnWindows(t)

	plugin := testPlugin(t, `INPUT=$(cat)
echo "{\"success\":true,\"data\":{\"received\":$INPUT}}"
`)

	response, err := NewExecutor(0).Execute(context.Background(), plugin, &Request{
		Action:  "run",
		Gesture: "fist",
		Hand:    "Left",
		EventID: "01HX",
		Config:  json.RawMessage(`{"setting":"enabled"}`),
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var data struct {
		Received Request `json:"received"`
	}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	got := data.Received
	if got.Action != "run" || got.Gesture != "fist" || got.Hand != "Left" || got.EventID != "01HX" {
		t.Errorf("plugin received %+v", got)
	}
	if string(got.Config) != `{"setting":"enabled"}` {
		t.Errorf("plugin received config %s", got.Config)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	skipOnWindows(t)

	plugin := testPlugin(t, "exec sleep 5\n")

	start := time.Now()
	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), plugin, &Request{Action: "run"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestExecutor_Execute_Failures(t *testing.T) {
	skipOnWindows(t)

	t.Run("error response is returned", func(t *testing.T) {
		plugin := testPlugin(t, `echo '{"success":false,"error":"key not found"}'`+"\n")

		response, err := NewExecutor(time.Second).Execute(context.Background(), plugin, &Request{Action: "run"})
		if err != nil {
			t.Fatalf("Execute() failed: %v", err)
		}
		if response.Success || response.Error != "key not found" {
			t.Errorf("unexpected response %+v", response)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		plugin := testPlugin(t, "echo 'not json'\n")

		_, err := NewExecutor(time.Second).Execute(context.Background(), plugin, &Request{Action: "run"})
		if err == nil || !strings.Contains(err.Error(), "failed to parse plugin response") {
			t.Errorf("expected parse error, got %v", err)
		}
	})

	t.Run("non-zero exit includes stderr", func(t *testing.T) {
		plugin := testPlugin(t, "echo 'boom' >&2\nexit 3\n")

		_, err := NewExecutor(time.Second).Execute(context.Background(), plugin, &Request{Action: "run"})
		if err == nil || !strings.Contains(err.Error(), "boom") {
			t.Errorf("expected error with stderr, got %v", err)
		}
	})
}

func TestNewExecutor(t *testing.T) {
	if got := NewExecutor(0).Timeout(); got != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", got)
	}
	if got := NewExecutor(2 * time.Second).Timeout(); got != 2*time.Second {
		t.Errorf("expected 2s, got %v", got)
	}
}
