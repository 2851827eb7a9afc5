package tts

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
)

func TestEventRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	data, _ := json.Marshal(synthesizeData{Text: "hello"})
	payload := []byte{0x01, 0x02, 0x03}

	if err := writeEvent(w, event{Type: typeSynthesize, Data: data, Payload: payload}); err != nil {
		t.Fatalf("writeEvent failed: %v", err)
	}

	got, err := readEvent(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readEvent failed: %v", err)
	}

	if got.Type != typeSynthesize {
		t.Errorf("Expected type %s, got %s", typeSynthesize, got.Type)
	}
	var decoded synthesizeData
	if err := json.Unmarshal(got.Data, &decoded); err != nil {
		t.Fatalf("Data block is not valid JSON: %v", err)
	}
	if decoded.Text != "hello" {
		t.Errorf("Expected text hello, got %s", decoded.Text)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("Payload mismatch: %v", got.Payload)
	}
}

func TestReadEventInlineData(t *testing.T) {
	// Some servers put small data blocks inline in the header.
	line := []byte(`{"type": "audio-start", "data": {"rate": 22050, "width": 2, "channels": 1}}` + "\n")

	got, err := readEvent(bufio.NewReader(bytes.NewReader(line)))
	if err != nil {
		t.Fatalf("readEvent failed: %v", err)
	}
	if got.Type != typeAudioStart {
		t.Errorf("Expected audio-start, got %s", got.Type)
	}

	var format audioStartData
	if err := json.Unmarshal(got.Data, &format); err != nil {
		t.Fatalf("Inline data not decoded: %v", err)
	}
	if format.Rate != 22050 || format.Width != 2 || format.Channels != 1 {
		t.Errorf("Unexpected format: %+v", format)
	}
}

func TestWriteEventNoDataNoPayload(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	if err := writeEvent(w, event{Type: typeAudioStop}); err != nil {
		t.Fatalf("writeEvent failed: %v", err)
	}

	got, err := readEvent(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readEvent failed: %v", err)
	}
	if got.Type != typeAudioStop {
		t.Errorf("Expected audio-stop, got %s", got.Type)
	}
	if len(got.Payload) != 0 {
		t.Errorf("Expected no payload, got %d bytes", len(got.Payload))
	}
}
