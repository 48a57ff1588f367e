package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/wave/internal/gesture"
)

func waitForClients(t *testing.T, hub *EventHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func dialHub(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventHub_Broadcast(t *testing.T) {
	hub := NewEventHub()
	ts := httptest.NewServer(New(Config{Events: hub}))
	defer ts.Close()

	a := dialHub(t, ts)
	b := dialHub(t, ts)
	waitForClients(t, hub, 2)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := gesture.Event{ID: gesture.NewEventID(now), Label: "thumbs_up", Hand: "Left", Time: now}
	if err := hub.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		var got gesture.Event
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("message is not JSON: %v", err)
		}
		if got.ID != ev.ID || got.Label != "thumbs_up" || got.Hand != "Left" {
			t.Errorf("unexpected event %+v", got)
		}
	}
}

func TestEventHub_Disconnect(t *testing.T) {
	hub := NewEventHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dialHub(t, ts)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	if err := hub.Deliver(context.Background(), gesture.Event{Label: "fist"}); err != nil {
		t.Errorf("Deliver() with no clients error = %v", err)
	}
}

func TestEventHub_Close(t *testing.T) {
	hub := NewEventHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dialHub(t, ts)
	waitForClients(t, hub, 1)

	if err := hub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := hub.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
	if hub.Clients() != 0 {
		t.Errorf("expected no clients, got %d", hub.Clients())
	}
}
