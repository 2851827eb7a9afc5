// Package graphdb wraps the Neo4j driver behind the small query surface the
// assistant's tools need.
package graphdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrNotConnected is returned when a query is attempted before Connect.
var ErrNotConnected = errors.New("graphdb: not connected")

// Config holds connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
	Database string

	// Startup retry policy. The database container is often still coming up
	// when the assistant starts.
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64

	Logger *slog.Logger
}

// DefaultConfig returns defaults for a local Neo4j instance.
func DefaultConfig() *Config {
	return &Config{
		URI:           "bolt://localhost:7687",
		Username:      "neo4j",
		Password:      "password",
		Database:      "neo4j",
		MaxRetries:    5,
		InitialDelay:  3 * time.Second,
		BackoffFactor: 2,
		Logger:        slog.Default(),
	}
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithURI sets the bolt URI.
func WithURI(uri string) Option {
	return func(c *Config) { c.URI = uri }
}

// WithAuth sets the username and password.
func WithAuth(username, password string) Option {
	return func(c *Config) {
		c.Username = username
		c.Password = password
	}
}

// WithDatabase sets the database name.
func WithDatabase(db string) Option {
	return func(c *Config) { c.Database = db }
}

// WithStartupRetry configures the connect retry policy.
func WithStartupRetry(maxRetries int, initialDelay time.Duration, factor float64) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.InitialDelay = initialDelay
		c.BackoffFactor = factor
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Client is a thin wrapper over the Neo4j driver. It is safe for concurrent
// use; the underlying driver pools connections.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// Connect creates a client and verifies connectivity, retrying with
// exponential backoff. It fails after the configured number of attempts.
func Connect(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.Logger.With("component", "graphdb")

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphdb: create driver: %w", err)
	}

	delay := cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		logger.Debug("verifying connectivity", "uri", cfg.URI, "attempt", attempt)

		err = driver.VerifyConnectivity(ctx)
		if err == nil {
			logger.Info("connected", "uri", cfg.URI)
			return &Client{driver: driver, database: cfg.Database, logger: logger}, nil
		}

		if attempt >= cfg.MaxRetries {
			driver.Close(ctx)
			return nil, fmt.Errorf("graphdb: connect after %d attempts: %w", attempt, err)
		}

		logger.Warn("connection attempt failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			driver.Close(ctx)
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
	}
}

// Query executes a Cypher query and returns each record as a map keyed by
// its return aliases.
func (c *Client) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if c == nil || c.driver == nil {
		return nil, ErrNotConnected
	}

	c.logger.Debug("executing query", "cypher", cypher)

	result, err := neo4j.ExecuteQuery(ctx, c.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
	)
	if err != nil {
		return nil, fmt.Errorf("graphdb: query: %w", err)
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		rows = append(rows, record.AsMap())
	}
	return rows, nil
}

// Schema returns the graph schema as a JSON string, using the APOC meta
// procedure. The result feeds the LLM-driven Cypher generation tool.
func (c *Client) Schema(ctx context.Context) (string, error) {
	rows, err := c.Query(ctx, "CALL apoc.meta.schema() YIELD value RETURN value", nil)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", errors.New("graphdb: schema query returned no rows")
	}

	data, err := json.Marshal(rows[0]["value"])
	if err != nil {
		return "", fmt.Errorf("graphdb: encode schema: %w", err)
	}
	return string(data), nil
}

// Close closes the underlying driver.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	c.logger.Info("closing driver")
	return c.driver.Close(ctx)
}
