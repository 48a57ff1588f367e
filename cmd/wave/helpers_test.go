package main

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/wave/internal/capture"
	"github.com/ayusman/wave/internal/config"
	"github.com/ayusman/wave/internal/detector"
	"github.com/ayusman/wave/internal/gesture"
	"github.com/ayusman/wave/internal/store"
)

func fixtureExemplars() []gesture.Exemplar {
	open, fist, thumbs := detector.OpenPalmLandmarks(), detector.FistLandmarks(), detector.ThumbsUpLandmarks()
	return []gesture.Exemplar{
		{LabelID: 0, Vector: open.Features()},
		{LabelID: 1, Vector: fist.Features()},
		{LabelID: 2, Vector: thumbs.Features()},
	}
}

func writeTestModel(t *testing.T, path string) {
	t.Helper()
	s, err := store.New(path)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()
	if err := s.Model().Import(gesture.DefaultLabels(), fixtureExemplars(), nil); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
}

func writeReplay(t *testing.T, path string, observations ...capture.Observation) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := capture.NewReplayWriter(f)
	for _, obs := range observations {
		if err := w.Write(obs); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

// testConfig returns a replay configuration rooted in a temp directory with
// a fixture model.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.ModelPath = filepath.Join(dir, "model.db")
	cfg.PluginDir = filepath.Join(dir, "plugins")
	cfg.Source = config.SourceReplay
	cfg.ReplayPath = filepath.Join(dir, "replay.jsonl")
	writeTestModel(t, cfg.ModelPath)
	return cfg
}

// consumer accepts one TCP connection and forwards its lines.
func consumer(t *testing.T) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	lines := make(chan string, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
	return ln.Addr().String(), lines
}

// collect drains lines until the connection closes.
func collect(t *testing.T, lines <-chan string) []string {
	t.Helper()
	var got []string
	timeout := time.After(3 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return got
			}
			got = append(got, line)
		case <-timeout:
			t.Fatalf("consumer did not see the connection close; got %v", got)
		}
	}
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}
