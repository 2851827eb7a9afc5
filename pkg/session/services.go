// Package session wires the shared application services and supervises one
// conversation per websocket connection.
package session

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rbegg/go-max/internal/config"
	"github.com/rbegg/go-max/pkg/agent"
	"github.com/rbegg/go-max/pkg/graphdb"
	"github.com/rbegg/go-max/pkg/inference"
	"github.com/rbegg/go-max/pkg/stt"
	"github.com/rbegg/go-max/pkg/tools"
	"github.com/rbegg/go-max/pkg/tts"
)

// Services holds everything shared across sessions: the database, the
// inference provider, the reasoning engine and the user profile. It is built
// in the background so the server can accept connections while the model is
// still loading; sessions wait on Ready before answering.
type Services struct {
	cfg    config.Config
	logger *slog.Logger

	// ready is closed when startup finishes, successfully or not. Fields
	// below are written only before the close.
	ready chan struct{}

	initErr  error
	db       *graphdb.Client
	provider inference.Provider
	engine   *agent.Engine
	profile  map[string]any
	stt      *stt.Client
}

// NewServices prepares the service container. Nothing is connected until
// Start runs.
func NewServices(cfg config.Config, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	return &Services{
		cfg:    cfg,
		logger: logger.With("component", "session.services"),
		ready:  make(chan struct{}),
	}
}

// Start connects to the database and the model, initializes the tool
// registry and the engine, and loads the user profile. It always closes the
// Ready channel on return; a failed startup is visible through Err.
func (s *Services) Start(ctx context.Context) error {
	defer close(s.ready)

	provider, err := inference.NewClient(
		inference.WithBaseURL(s.cfg.OllamaBaseURL),
		inference.WithModel(s.cfg.OllamaModel),
		inference.WithLogger(s.logger),
	)
	if err != nil {
		s.initErr = err
		return err
	}
	s.provider = provider

	// The database connect and the model warmup are independent and both
	// slow; run them together.
	g, gctx := errgroup.WithContext(ctx)

	var db *graphdb.Client
	g.Go(func() error {
		var err error
		db, err = graphdb.Connect(gctx,
			graphdb.WithURI(s.cfg.Neo4jURI),
			graphdb.WithAuth(s.cfg.Neo4jUsername, s.cfg.Neo4jPassword),
			graphdb.WithLogger(s.logger),
		)
		return err
	})
	g.Go(func() error {
		// A cold model just makes the first reply slow; not fatal.
		if err := inference.Warmup(gctx, provider, s.logger); err != nil {
			s.logger.Warn("model warmup failed", "error", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.initErr = err
		return err
	}
	s.db = db

	deps := tools.Deps{DB: db, LLM: provider, Logger: s.logger}

	registry := tools.NewRegistry(deps)
	tools.RegisterAll(registry)

	engine, err := agent.NewEngine(provider, registry,
		agent.WithPruningLimit(s.cfg.PruningLimit),
		agent.WithEngineLogger(s.logger),
	)
	if err != nil {
		s.initErr = err
		return err
	}
	s.engine = engine

	person, err := tools.NewPersonTools(deps)
	if err != nil {
		s.initErr = err
		return err
	}
	profile, err := person.(*tools.PersonTools).FetchUserProfile(ctx)
	if err != nil {
		s.logger.Warn("could not load user profile", "error", err)
		profile = map[string]any{}
	}
	s.profile = profile

	s.stt = stt.NewClient(
		stt.WithURL(s.cfg.STTWebSocketURL),
		stt.WithRetryDelay(s.cfg.STTRetryDelay),
		stt.WithLogger(s.logger),
	)

	s.logger.Info("services ready", "model", s.cfg.OllamaModel)
	return nil
}

// Ready is closed once Start has finished.
func (s *Services) Ready() <-chan struct{} {
	return s.ready
}

// Err reports the startup failure, if any. Valid after Ready is closed.
func (s *Services) Err() error {
	return s.initErr
}

// Engine returns the shared reasoning engine. Valid after Ready is closed
// with a nil Err.
func (s *Services) Engine() *agent.Engine {
	return s.engine
}

// Profile returns the user profile loaded at startup.
func (s *Services) Profile() map[string]any {
	return s.profile
}

// STT returns the shared speech-to-text client.
func (s *Services) STT() *stt.Client {
	return s.stt
}

// NewTTS creates a speech synthesis client for one session. Each session
// gets its own connection so a slow synthesis only blocks its own speaker.
func (s *Services) NewTTS() *tts.Client {
	return tts.NewClient(
		tts.WithAddr(s.cfg.TTSAddr),
		tts.WithVoice(s.cfg.TTSVoice),
		tts.WithRetryDelay(s.cfg.TTSRetryDelay),
		tts.WithLogger(s.logger),
	)
}

// Config returns the loaded configuration.
func (s *Services) Config() config.Config {
	return s.cfg
}

// Close releases the shared resources.
func (s *Services) Close(ctx context.Context) {
	if s.db != nil {
		if err := s.db.Close(ctx); err != nil {
			s.logger.Warn("error closing database", "error", err)
		}
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Warn("error closing inference client", "error", err)
		}
	}
}
