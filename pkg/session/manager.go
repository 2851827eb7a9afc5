package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rbegg/go-max/pkg/agent"
)

// Websocket message types, per RFC 6455.
const (
	textMessage   = 1
	binaryMessage = 2
)

const (
	// outBuffer bounds the outbound queue between the conversation and the
	// writer.
	outBuffer = 32

	// audioBuffer bounds inbound microphone frames awaiting the STT
	// forwarder.
	audioBuffer = 64

	setupMessage = "I am just getting set up, I'll be with you in a moment."
	troubleReply = "I'm sorry, I'm having trouble thinking right now. Please try again."
)

// Socket is the websocket surface the manager needs. Satisfied by
// *websocket.Conn.
type Socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// speaker is the synthesis surface the manager needs. Satisfied by
// *tts.Client.
type speaker interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	Close() error
}

// outMessage is one frame queued for the writer.
type outMessage struct {
	kind int
	data []byte
}

// replyPayload is the JSON shape of transcript and reply messages sent to
// the client.
type replyPayload struct {
	Data   string `json:"data"`
	Source string `json:"source"`
}

// controlPayload is the JSON shape of client control messages. Fields are
// pointers so absent and empty can be told apart.
type controlPayload struct {
	Username *string `json:"username"`
	Voice    *string `json:"voice"`
}

// Manager supervises one websocket conversation: a reader, a writer and the
// conversation loop run until the client disconnects or the server shuts
// down, then everything is torn down within a bounded time.
type Manager struct {
	id       string
	services *Services
	sock     Socket
	tts      speaker
	logger   *slog.Logger

	queueTimeout    time.Duration
	shutdownTimeout time.Duration

	audioIn chan []byte
	textIn  chan []byte
	out     chan outMessage
}

// NewManager creates the supervisor for one connection.
func NewManager(services *Services, sock Socket) *Manager {
	id := uuid.NewString()
	cfg := services.Config()
	return &Manager{
		id:              id,
		services:        services,
		sock:            sock,
		tts:             services.NewTTS(),
		logger:          services.logger.With("component", "session.manager", "session", id),
		queueTimeout:    cfg.QueueGetTimeout,
		shutdownTimeout: cfg.ShutdownTimeout,
		audioIn:         make(chan []byte, audioBuffer),
		textIn:          make(chan []byte, 8),
		out:             make(chan outMessage, outBuffer),
	}
}

// Run drives the session until the connection drops or ctx is cancelled.
// It blocks for the session lifetime and always releases the session's
// resources before returning.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("session started")

	g, gctx := errgroup.WithContext(ctx)

	// The reader blocks in ReadMessage; closing the socket is the only way
	// to unblock it when another task fails.
	go func() {
		<-gctx.Done()
		m.sock.Close()
	}()

	g.Go(func() error { return m.readLoop(gctx) })
	g.Go(func() error { return m.writeLoop(gctx) })
	g.Go(func() error { return m.converse(gctx) })

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	// The session itself has no deadline; the bound applies only to the
	// teardown once shutdown has been triggered (a task failed, the client
	// disconnected, or the server is stopping).
	var err error
	select {
	case err = <-done:
	case <-gctx.Done():
		select {
		case err = <-done:
		case <-time.After(m.shutdownTimeout):
			m.logger.Error("session tasks did not stop within the shutdown timeout")
		}
	}

	m.tts.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("session ended with error", "error", err)
	} else {
		m.logger.Info("session ended")
	}
	return err
}

// readLoop pulls frames off the socket: binary frames are microphone audio,
// text frames are control messages. A read error means the client is gone
// and ends the session normally.
func (m *Manager) readLoop(ctx context.Context) error {
	defer close(m.audioIn)

	for {
		kind, data, err := m.sock.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Info("client disconnected", "reason", err)
			return errors.New("session: connection closed")
		}

		switch kind {
		case binaryMessage:
			select {
			case m.audioIn <- data:
			case <-ctx.Done():
				return ctx.Err()
			}
		case textMessage:
			select {
			case m.textIn <- data:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// writeLoop serializes all outbound frames onto the socket.
func (m *Manager) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-m.out:
			if err := m.sock.WriteMessage(msg.kind, msg.data); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
		}
	}
}

// converse is the session's main task: it waits for the shared services,
// streams transcripts through the agent and speaks the replies.
func (m *Manager) converse(ctx context.Context) error {
	select {
	case <-m.services.Ready():
	default:
		// Services are still warming up. Tell the user instead of going
		// silent on their first words.
		m.speak(ctx, setupMessage, "")
		select {
		case <-m.services.Ready():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := m.services.Err(); err != nil {
		m.speak(ctx, troubleReply, "")
		return err
	}

	cfg := m.services.Config()
	a := agent.NewAgent(m.services.Engine(), cfg.Username, cfg.TTSVoice, m.services.Profile())

	transcripts := m.services.STT().Stream(ctx, m.audioIn)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case data := <-m.textIn:
			m.handleControl(a, data)

		case t, ok := <-transcripts:
			if !ok {
				return errors.New("session: transcript stream ended")
			}
			text := strings.TrimSpace(t.Text)
			if text == "" {
				continue
			}
			m.logger.Info("transcript received", "text", text)

			// Echo the recognized text so the client can display it.
			m.sendJSON(ctx, replyPayload{Data: text, Source: "user"})

			reply, err := a.Invoke(ctx, text)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				m.logger.Error("agent invocation failed", "error", err)
				m.speak(ctx, troubleReply, a.Voice())
				continue
			}
			m.speak(ctx, reply, a.Voice())
		}
	}
}

// handleControl applies a client control message to the session.
func (m *Manager) handleControl(a *agent.Agent, data []byte) {
	var ctl controlPayload
	if err := json.Unmarshal(data, &ctl); err != nil {
		m.logger.Warn("discarding malformed control message", "error", err)
		return
	}
	if ctl.Username != nil && *ctl.Username != "" {
		m.logger.Info("username updated", "username", *ctl.Username)
		a.SetUsername(*ctl.Username)
	}
	if ctl.Voice != nil && *ctl.Voice != "" {
		m.logger.Info("voice updated", "voice", *ctl.Voice)
		a.SetVoice(*ctl.Voice)
	}
}

// speak sends the reply text and, when synthesis succeeds, the spoken audio.
func (m *Manager) speak(ctx context.Context, text, voice string) {
	if text == "" {
		return
	}
	m.sendJSON(ctx, replyPayload{Data: text, Source: "assistant"})

	wav, err := m.tts.Synthesize(ctx, text, voice)
	if err != nil {
		m.logger.Warn("speech synthesis failed", "error", err)
		return
	}
	if wav != nil {
		m.send(ctx, binaryMessage, wav)
	}
}

func (m *Manager) sendJSON(ctx context.Context, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("failed to encode outbound message", "error", err)
		return
	}
	m.send(ctx, textMessage, data)
}

// send queues one frame for the writer, waiting at most the queue timeout.
// A full queue means the client has stopped draining; dropping is better
// than wedging the conversation.
func (m *Manager) send(ctx context.Context, kind int, data []byte) bool {
	timer := time.NewTimer(m.queueTimeout)
	defer timer.Stop()

	select {
	case m.out <- outMessage{kind: kind, data: data}:
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
		m.logger.Warn("outbound queue full, dropping message", "kind", kind)
		return false
	}
}
