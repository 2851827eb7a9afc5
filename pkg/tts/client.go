// Package tts synthesizes speech through a Wyoming protocol TTS server and
// returns playable WAV clips.
package tts

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	defaultRetryDelay  = 5 * time.Second
	defaultDialTimeout = 10 * time.Second
)

// Config holds client configuration.
type Config struct {
	Addr       string
	Voice      string
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithAddr sets the TTS server address (host:port).
func WithAddr(addr string) Option {
	return func(c *Config) { c.Addr = addr }
}

// WithVoice sets the default voice used when a request names none.
func WithVoice(voice string) Option {
	return func(c *Config) { c.Voice = voice }
}

// WithRetryDelay sets the wait between connection attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Config) { c.RetryDelay = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Client is a connection to the TTS server. The protocol interleaves one
// request and one response stream per connection, so the mutex serializes
// whole synthesize exchanges. A broken connection is dropped and redialed on
// the next call.
type Client struct {
	addr       string
	voice      string
	retryDelay time.Duration
	logger     *slog.Logger

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// NewClient creates a TTS client. No connection is made until Connect or the
// first Synthesize call.
func NewClient(opts ...Option) *Client {
	cfg := &Config{
		Addr:       "tts:10200",
		Voice:      "en_US-hfc_female-medium",
		RetryDelay: defaultRetryDelay,
		Logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{
		addr:       cfg.Addr,
		voice:      cfg.Voice,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger.With("component", "tts.client"),
	}
}

// Connect dials the server if not already connected. It retries until it
// succeeds or ctx is cancelled, so a server that is still starting up does
// not fail the caller.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConnected(ctx)
}

func (c *Client) ensureConnected(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	dialer := &net.Dialer{Timeout: defaultDialTimeout}
	for {
		conn, err := dialer.DialContext(ctx, "tcp", c.addr)
		if err == nil {
			c.logger.Info("connected to TTS server", "addr", c.addr)
			c.conn = conn
			c.r = bufio.NewReader(conn)
			c.w = bufio.NewWriter(conn)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("connection to TTS server failed, retrying",
			"addr", c.addr,
			"delay", c.retryDelay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

// dropConnection discards a connection after a protocol or transport error.
// The next call redials.
func (c *Client) dropConnection() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.r = nil
	c.w = nil
}

// Synthesize converts text to speech and returns a complete WAV clip. An
// empty voice falls back to the client default. A nil clip with a nil error
// means the server produced no audio for the text.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	if voice == "" {
		voice = c.voice
	}
	var req synthesizeData
	req.Text = text
	req.Voice.Name = voice

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	if err := writeEvent(c.w, event{Type: typeSynthesize, Data: data}); err != nil {
		c.logger.Error("failed to send synthesize request", "error", err)
		c.dropConnection()
		return nil, err
	}

	return c.collectAudio()
}

// collectAudio reads the event stream for one synthesis: audio-start carries
// the PCM format, audio-chunk events carry samples, audio-stop ends the
// clip.
func (c *Client) collectAudio() ([]byte, error) {
	format := audioStartData{Rate: 22050, Width: 2, Channels: 1}
	var pcm []byte

	for {
		e, err := readEvent(c.r)
		if err != nil {
			c.logger.Error("failed to read TTS event", "error", err)
			c.dropConnection()
			return nil, err
		}

		switch e.Type {
		case typeAudioStart:
			if len(e.Data) > 0 {
				if err := json.Unmarshal(e.Data, &format); err != nil {
					c.logger.Warn("malformed audio-start data, keeping defaults", "error", err)
				}
			}
		case typeAudioChunk:
			pcm = append(pcm, e.Payload...)
		case typeAudioStop:
			if len(pcm) == 0 {
				return nil, nil
			}
			return wavClip(pcm, format.Rate, format.Width, format.Channels), nil
		case typeError:
			var ed errorData
			if len(e.Data) > 0 {
				json.Unmarshal(e.Data, &ed)
			}
			c.logger.Warn("TTS server reported an error", "text", ed.Text)
			return nil, nil
		default:
			// Servers may emit informational events; skip them.
		}
	}
}

// Close tears down the connection. The client can be reused; the next call
// reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.r = nil
	c.w = nil
	return err
}
