package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

// newTTSServer accepts connections and runs handler per connection.
func newTTSServer(t *testing.T, handler func(conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handler(conn)
			}()
		}
	}()
	return ln.Addr().String()
}

// serveSynthesis reads one synthesize request and streams back two audio
// chunks.
func serveSynthesis(t *testing.T, conn net.Conn, chunk1, chunk2 []byte) {
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	req, err := readEvent(r)
	if err != nil {
		return
	}
	if req.Type != typeSynthesize {
		t.Errorf("Expected synthesize, got %s", req.Type)
		return
	}
	var syn synthesizeData
	if err := json.Unmarshal(req.Data, &syn); err != nil {
		t.Errorf("Bad synthesize data: %v", err)
		return
	}
	if syn.Text == "" || syn.Voice.Name == "" {
		t.Errorf("Missing text or voice: %+v", syn)
	}

	start, _ := json.Marshal(audioStartData{Rate: 16000, Width: 2, Channels: 1})
	writeEvent(w, event{Type: typeAudioStart, Data: start})
	writeEvent(w, event{Type: typeAudioChunk, Payload: chunk1})
	writeEvent(w, event{Type: typeAudioChunk, Payload: chunk2})
	writeEvent(w, event{Type: typeAudioStop})
}

func TestSynthesize(t *testing.T) {
	chunk1 := []byte{1, 2, 3, 4}
	chunk2 := []byte{5, 6}

	addr := newTTSServer(t, func(conn net.Conn) {
		serveSynthesis(t, conn, chunk1, chunk2)
	})

	client := NewClient(WithAddr(addr), WithVoice("test-voice"), WithRetryDelay(10*time.Millisecond))
	defer client.Close()

	clip, err := client.Synthesize(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if clip == nil {
		t.Fatal("Expected a WAV clip, got nil")
	}

	// PCM data sits after the 44 byte header, chunks in order.
	want := append(append([]byte{}, chunk1...), chunk2...)
	if !bytes.Equal(clip[44:], want) {
		t.Errorf("PCM mismatch: %v", clip[44:])
	}
}

func TestSynthesizeServerError(t *testing.T) {
	addr := newTTSServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		w := bufio.NewWriter(conn)
		if _, err := readEvent(r); err != nil {
			return
		}
		data, _ := json.Marshal(errorData{Text: "no such voice"})
		writeEvent(w, event{Type: typeError, Data: data})
	})

	client := NewClient(WithAddr(addr), WithRetryDelay(10*time.Millisecond))
	defer client.Close()

	clip, err := client.Synthesize(context.Background(), "hello", "bogus")
	if err != nil {
		t.Fatalf("A server-side error should not fail the call: %v", err)
	}
	if clip != nil {
		t.Error("Expected no clip on server error")
	}
}

func TestSynthesizeReconnectsAfterDrop(t *testing.T) {
	var conns atomic.Int32
	addr := newTTSServer(t, func(conn net.Conn) {
		if conns.Add(1) == 1 {
			// Read the request, then drop the connection mid-response.
			readEvent(bufio.NewReader(conn))
			return
		}
		serveSynthesis(t, conn, []byte{9, 9}, []byte{8, 8})
	})

	client := NewClient(WithAddr(addr), WithRetryDelay(10*time.Millisecond))
	defer client.Close()

	ctx := context.Background()
	if _, err := client.Synthesize(ctx, "first", ""); err == nil {
		t.Fatal("Expected first call to fail on dropped connection")
	}

	clip, err := client.Synthesize(ctx, "second", "")
	if err != nil {
		t.Fatalf("Second call should reconnect and succeed: %v", err)
	}
	if clip == nil {
		t.Fatal("Expected a clip from the second call")
	}
}

func TestSynthesizeNoAudio(t *testing.T) {
	addr := newTTSServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		w := bufio.NewWriter(conn)
		if _, err := readEvent(r); err != nil {
			return
		}
		start, _ := json.Marshal(audioStartData{Rate: 16000, Width: 2, Channels: 1})
		writeEvent(w, event{Type: typeAudioStart, Data: start})
		writeEvent(w, event{Type: typeAudioStop})
	})

	client := NewClient(WithAddr(addr), WithRetryDelay(10*time.Millisecond))
	defer client.Close()

	clip, err := client.Synthesize(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if clip != nil {
		t.Error("Expected nil clip when the server produced no audio")
	}
}
