// Command textclient is a terminal client for talking to the assistant
// without the speech pipeline. It drives the reasoning engine directly,
// which makes it useful for exercising tools and prompts.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rbegg/go-max/internal/config"
	"github.com/rbegg/go-max/internal/log"
	"github.com/rbegg/go-max/pkg/agent"
	"github.com/rbegg/go-max/pkg/graphdb"
	"github.com/rbegg/go-max/pkg/inference"
	"github.com/rbegg/go-max/pkg/tools"
)

func main() {
	cfg := config.FromEnv()
	log.Init(cfg.LogLevel)
	logger := log.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("Initializing the reasoning engine...")

	provider, err := inference.NewClient(
		inference.WithBaseURL(cfg.OllamaBaseURL),
		inference.WithModel(cfg.OllamaModel),
		inference.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create inference client", "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	db, err := graphdb.Connect(ctx,
		graphdb.WithURI(cfg.Neo4jURI),
		graphdb.WithAuth(cfg.Neo4jUsername, cfg.Neo4jPassword),
		graphdb.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	deps := tools.Deps{DB: db, LLM: provider, Logger: logger}
	registry := tools.NewRegistry(deps)
	tools.RegisterAll(registry)

	engine, err := agent.NewEngine(provider, registry,
		agent.WithPruningLimit(cfg.PruningLimit),
		agent.WithEngineLogger(logger),
	)
	if err != nil {
		logger.Error("failed to initialize reasoning engine", "error", err)
		os.Exit(1)
	}

	person, err := tools.NewPersonTools(deps)
	if err != nil {
		logger.Error("failed to create person tools", "error", err)
		os.Exit(1)
	}
	profile, err := person.(*tools.PersonTools).FetchUserProfile(ctx)
	if err != nil {
		logger.Warn("could not load user profile", "error", err)
		profile = map[string]any{}
	}

	scanner := bufio.NewScanner(os.Stdin)

	username := ""
	for username == "" {
		fmt.Print("Please enter your username: ")
		if !scanner.Scan() {
			return
		}
		username = strings.TrimSpace(scanner.Text())
		if username == "" {
			fmt.Println("Username cannot be empty. Please try again.")
		}
	}

	a := agent.NewAgent(engine, username, cfg.TTSVoice, profile)

	fmt.Println("Agent is ready. Type 'exit' to quit.")

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") {
			break
		}

		reply, err := a.Invoke(ctx, input)
		if err != nil {
			logger.Error("turn failed", "error", err)
			continue
		}
		fmt.Printf("Agent: %s\n", reply)
	}
}
