// Package stt streams audio to the speech-to-text service and yields
// transcripts over a channel, reconnecting transparently.
package stt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// defaultRetryDelay is the fixed wait between reconnect attempts.
	defaultRetryDelay = 5 * time.Second

	// eventBuffer bounds the transcript channel; a slow consumer applies
	// backpressure to the read loop rather than growing memory.
	eventBuffer = 16

	handshakeTimeout = 10 * time.Second
)

// Transcript is one recognition event from the STT service.
type Transcript struct {
	// Text is the recognized utterance.
	Text string `json:"data"`

	// Final reports whether the service considers the utterance complete.
	// The service omits the field for its single-shot results, which are
	// final by definition.
	Final bool `json:"final"`
}

// Config holds client configuration.
type Config struct {
	URL        string
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithURL sets the STT websocket URL.
func WithURL(url string) Option {
	return func(c *Config) { c.URL = url }
}

// WithRetryDelay sets the fixed reconnect delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Config) { c.RetryDelay = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Client connects to the STT websocket service. Each Stream call owns its
// own connection; the client itself holds only configuration.
type Client struct {
	url        string
	retryDelay time.Duration
	dialer     *websocket.Dialer
	logger     *slog.Logger
}

// NewClient creates an STT client.
func NewClient(opts ...Option) *Client {
	cfg := &Config{
		URL:        "ws://stt/ws",
		RetryDelay: defaultRetryDelay,
		Logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{
		url:        cfg.URL,
		retryDelay: cfg.RetryDelay,
		dialer:     &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		logger:     cfg.Logger.With("component", "stt.client"),
	}
}

// Stream connects to the service and returns a channel of transcripts.
// Audio frames read from audio are forwarded to the service in arrival
// order. Dropped connections are redialed after the retry delay until ctx
// is cancelled; an unexpected error stops the stream permanently. The
// returned channel is closed when the stream ends either way.
func (c *Client) Stream(ctx context.Context, audio <-chan []byte) <-chan Transcript {
	events := make(chan Transcript, eventBuffer)

	go func() {
		defer close(events)

		for {
			err := c.runConnection(ctx, audio, events)
			switch {
			case err == nil || errors.Is(err, context.Canceled):
				c.logger.Info("transcript stream stopped")
				return
			case isDisconnect(err):
				c.logger.Warn("connection to STT service failed or was lost, retrying",
					"delay", c.retryDelay,
					"error", err,
				)
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.retryDelay):
				}
			default:
				// Unexpected error class: do not retry forever, report
				// upward by ending the stream.
				c.logger.Error("unexpected error in transcript stream", "error", err)
				return
			}
		}
	}()

	return events
}

// runConnection dials once and runs the forward and receive duties until
// either fails or ctx is cancelled. Both duties share the connection and
// are torn down together.
func (c *Client) runConnection(ctx context.Context, audio <-chan []byte, events chan<- Transcript) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	c.logger.Info("connected to STT service", "url", c.url)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	// Forward duty: drain the audio queue into the socket.
	forwardErr := make(chan error, 1)
	go func() {
		forwardErr <- c.forwardAudio(connCtx, conn, audio)
	}()

	// Receive duty: decode inbound messages into transcript events.
	recvErr := make(chan error, 1)
	go func() {
		recvErr <- c.receiveTranscripts(connCtx, conn, events)
	}()

	select {
	case <-ctx.Done():
		// Unblock both duties before waiting for them.
		cancel()
		conn.Close()
		<-forwardErr
		<-recvErr
		return ctx.Err()
	case err = <-forwardErr:
		cancel()
		conn.Close()
		<-recvErr
		return err
	case err = <-recvErr:
		cancel()
		conn.Close()
		<-forwardErr
		return err
	}
}

func (c *Client) forwardAudio(ctx context.Context, conn *websocket.Conn, audio <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-audio:
			if !ok {
				return errors.New("stt: audio source closed")
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return err
			}
		}
	}
}

func (c *Client) receiveTranscripts(ctx context.Context, conn *websocket.Conn, events chan<- Transcript) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var t Transcript
		if err := json.Unmarshal(data, &t); err != nil {
			c.logger.Warn("discarding malformed STT message", "error", err)
			continue
		}

		select {
		case events <- t:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// isDisconnect reports whether err looks like a refused or dropped
// connection, which the stream retries indefinitely.
func isDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
