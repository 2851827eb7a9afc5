package tts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Wyoming event types used by the TTS exchange.
const (
	typeSynthesize = "synthesize"
	typeAudioStart = "audio-start"
	typeAudioChunk = "audio-chunk"
	typeAudioStop  = "audio-stop"
	typeError      = "error"
)

// event is one Wyoming protocol event: a JSON header line, an optional JSON
// data block, and an optional binary payload.
type event struct {
	Type    string
	Data    json.RawMessage
	Payload []byte
}

// eventHeader is the wire form of the header line.
type eventHeader struct {
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	DataLength    *int            `json:"data_length,omitempty"`
	PayloadLength *int            `json:"payload_length,omitempty"`
}

// writeEvent frames and writes one event.
func writeEvent(w *bufio.Writer, e event) error {
	header := eventHeader{Type: e.Type}
	if len(e.Data) > 0 {
		n := len(e.Data)
		header.DataLength = &n
	}
	if len(e.Payload) > 0 {
		n := len(e.Payload)
		header.PayloadLength = &n
	}

	line, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("tts: encode event header: %w", err)
	}

	if _, err := w.Write(append(line, '\n')); err != nil {
		return err
	}
	if len(e.Data) > 0 {
		if _, err := w.Write(e.Data); err != nil {
			return err
		}
	}
	if len(e.Payload) > 0 {
		if _, err := w.Write(e.Payload); err != nil {
			return err
		}
	}
	return w.Flush()
}

// readEvent reads one framed event. Data may arrive either inline in the
// header or as a trailing block announced by data_length.
func readEvent(r *bufio.Reader) (event, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return event{}, err
	}

	var header eventHeader
	if err := json.Unmarshal(line, &header); err != nil {
		return event{}, fmt.Errorf("tts: decode event header: %w", err)
	}

	e := event{Type: header.Type, Data: header.Data}

	if header.DataLength != nil && *header.DataLength > 0 {
		data := make([]byte, *header.DataLength)
		if _, err := io.ReadFull(r, data); err != nil {
			return event{}, err
		}
		e.Data = data
	}
	if header.PayloadLength != nil && *header.PayloadLength > 0 {
		payload := make([]byte, *header.PayloadLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return event{}, err
		}
		e.Payload = payload
	}
	return e, nil
}

// synthesizeData is the data block of a synthesize event.
type synthesizeData struct {
	Text  string `json:"text"`
	Voice struct {
		Name string `json:"name"`
	} `json:"voice"`
}

// audioStartData carries the PCM format of the audio stream that follows.
type audioStartData struct {
	Rate     int `json:"rate"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

// errorData is the data block of an error event.
type errorData struct {
	Text string `json:"text"`
}
