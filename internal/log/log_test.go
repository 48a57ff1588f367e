package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetup(t *testing.T) {
	t.Run("writes fields and message", func(t *testing.T) {
		var buf bytes.Buffer
		if _, err := Setup(Options{Level: "info", Output: &buf}); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}

		Info(Fields{"hand": "Right"}, "[GESTURE] fist")

		out := buf.String()
		if !strings.Contains(out, "[GESTURE] fist") {
			t.Errorf("expected message in output, got %q", out)
		}
		if !strings.Contains(out, "Right") {
			t.Errorf("expected field value in output, got %q", out)
		}
	})

	t.Run("debug suppressed at info level", func(t *testing.T) {
		var buf bytes.Buffer
		if _, err := Setup(Options{Level: "info", Output: &buf}); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}

		Debug(nil, "hidden")

		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
		if DebugEnabled() {
			t.Error("DebugEnabled() = true at info level")
		}
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		if _, err := Setup(Options{Level: "loud"}); err == nil {
			t.Error("expected error for unknown level")
		}
	})
}
