package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// newSTTServer runs handler for every websocket connection and returns the
// ws:// URL.
func newSTTServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collect(t *testing.T, events <-chan Transcript, n int) []Transcript {
	t.Helper()
	var got []Transcript
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case e, ok := <-events:
			if !ok {
				t.Fatalf("Stream closed after %d of %d transcripts", len(got), n)
			}
			got = append(got, e)
		case <-timeout:
			t.Fatalf("Timed out after %d of %d transcripts", len(got), n)
		}
	}
	return got
}

func TestStreamDeliversTranscripts(t *testing.T) {
	url := newSTTServer(t, func(conn *websocket.Conn) {
		// Echo a transcript for every audio frame.
		for {
			kind, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind != websocket.BinaryMessage {
				t.Errorf("Expected binary frame, got type %d", kind)
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"data": "hello world"}`)); err != nil {
				return
			}
		}
	})

	client := NewClient(WithURL(url), WithRetryDelay(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	audio := make(chan []byte, 4)
	events := client.Stream(ctx, audio)

	audio <- []byte{0x01, 0x02}
	audio <- []byte{0x03, 0x04}

	got := collect(t, events, 2)
	for i, e := range got {
		if e.Text != "hello world" {
			t.Errorf("Transcript %d: got %q", i, e.Text)
		}
	}

	cancel()
	select {
	case _, ok := <-events:
		if ok {
			// A buffered event may still arrive; the channel must close after.
			if _, ok := <-events; ok {
				t.Error("Stream did not close after cancellation")
			}
		}
	case <-time.After(2 * time.Second):
		t.Error("Stream did not close after cancellation")
	}
}

func TestStreamReconnectsAfterDrop(t *testing.T) {
	var count atomic.Int32
	url := newSTTServer(t, func(conn *websocket.Conn) {
		if count.Add(1) == 1 {
			// First connection: one transcript, then drop the client.
			conn.WriteMessage(websocket.TextMessage, []byte(`{"data": "before drop"}`))
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"data": "after reconnect"}`))
		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client := NewClient(WithURL(url), WithRetryDelay(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := client.Stream(ctx, make(chan []byte))

	got := collect(t, events, 2)
	if got[0].Text != "before drop" || got[1].Text != "after reconnect" {
		t.Errorf("Unexpected transcripts across reconnect: %+v", got)
	}
	if n := count.Load(); n < 2 {
		t.Errorf("Expected at least 2 connections, got %d", n)
	}
}

func TestStreamSkipsMalformedMessages(t *testing.T) {
	url := newSTTServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"data": "valid"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client := NewClient(WithURL(url), WithRetryDelay(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := client.Stream(ctx, make(chan []byte))

	got := collect(t, events, 1)
	if got[0].Text != "valid" {
		t.Errorf("Expected the malformed message to be skipped, got %q", got[0].Text)
	}
}
