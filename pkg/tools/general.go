package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/rbegg/go-max/pkg/graphdb"
	"github.com/rbegg/go-max/pkg/inference"
)

// cypherGenerationPrompt instructs the model to translate a question into a
// single read-only Cypher query against the provided schema.
const cypherGenerationPrompt = `You are a Neo4j expert. Your task is to write a single, read-only Cypher query
to answer a user's question, based on the provided graph schema.

# Schema
%s

# User Information
This is the information for the user asking the question. Use this to
resolve 'my', 'I', 'me', etc. The user is the (:User) node, use the id attribute to identify the user in queries.
%s

# Rules
* Output ONLY the Cypher query, preferably in a fenced code block.
* The query must be read-only: never use CREATE, MERGE, SET, DELETE, REMOVE or DROP.
* Embed any values from the question directly into the query. Do not use parameters.
* Always LIMIT results to at most 25 rows.`

var (
	cypherFenceRe = regexp.MustCompile("(?s)```(?:cypher|CYPHER)?\n(.*?)```")

	// writeClauseRe rejects generated queries that would mutate the graph.
	writeClauseRe = regexp.MustCompile(`(?i)\b(CREATE|MERGE|SET|DELETE|REMOVE|DROP)\b`)
)

// GeneralQueryTools answers ad-hoc questions by asking the model to generate
// Cypher against the live schema, then executing it.
type GeneralQueryTools struct {
	db     *graphdb.Client
	llm    inference.Provider
	logger *slog.Logger
}

// NewGeneralQueryTools constructs the provider.
func NewGeneralQueryTools(d Deps) (Provider, error) {
	if d.DB == nil {
		return nil, graphdb.ErrNotConnected
	}
	if d.LLM == nil {
		return nil, errors.New("tools: general query provider requires an inference provider")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GeneralQueryTools{db: d.DB, llm: d.LLM, logger: logger.With("tools", "general")}, nil
}

// Tools implements Provider.
func (g *GeneralQueryTools) Tools() []Tool {
	return []Tool{
		{
			Name: "answer_general_question",
			Description: "Use this tool for complex questions about relationships or entities in the graph database " +
				"that CANNOT be answered by other, more specific tools. " +
				"IMPORTANT: Do NOT use this tool for simple questions about the user's own identity, such as 'what is my name?' " +
				"or 'where do I live?'. Answer those directly from the user info context. " +
				"This tool translates a natural language question into a database query, " +
				"executes it, and returns the raw JSON data.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"question": map[string]interface{}{
						"type":        "string",
						"description": "A natural language question to be answered by the graph.",
					},
					"user_info_json": map[string]interface{}{
						"type": "string",
						"description": "The user's info (a JSON string) from the conversation context. " +
							"This is required to resolve questions like 'my' or 'I'.",
					},
				},
				"required": []string{"question"},
			},
			Handler: g.answerGeneralQuestion,
		},
	}
}

func (g *GeneralQueryTools) answerGeneralQuestion(ctx context.Context, args map[string]interface{}) (string, error) {
	question := stringArg(args, "question")
	userInfo := stringArg(args, "user_info_json")
	g.logger.Info("tool: answer_general_question", "question", question)

	if question == "" {
		return ErrorPayload("invalid_arguments", "question is required"), nil
	}

	schema, err := g.db.Schema(ctx)
	if err != nil {
		g.logger.Error("schema retrieval failed", "error", err)
		return ErrorPayload("schema_unavailable", err.Error()), nil
	}

	resp, err := g.llm.Chat(ctx, &inference.ChatRequest{
		Messages: []inference.Message{
			inference.NewSystemMessage(fmt.Sprintf(cypherGenerationPrompt, schema, userInfo)),
			inference.NewUserMessage(question),
		},
	})
	if err != nil {
		g.logger.Error("cypher generation failed", "error", err)
		return ErrorPayload("generation_failed", err.Error()), nil
	}

	cypher, ok := parseCypher(resp.Message.Content)
	if !ok {
		g.logger.Warn("could not parse cypher from model output", "content", resp.Message.Content)
		return ErrorPayload("generation_failed", "could not parse a query from the model response"), nil
	}
	if writeClauseRe.MatchString(cypher) {
		g.logger.Warn("rejected generated write query", "cypher", cypher)
		return ErrorPayload("query_rejected", "generated query was not read-only"), nil
	}

	g.logger.Debug("executing generated cypher", "cypher", cypher)
	rows, err := g.db.Query(ctx, cypher, nil)
	if err != nil {
		return ErrorPayload("query_failed", err.Error()), nil
	}

	data, err := json.Marshal(map[string]any{"data": rows})
	if err != nil {
		return ErrorPayload("encoding_failed", err.Error()), nil
	}
	return string(data), nil
}

// parseCypher extracts a Cypher query from a model response, preferring a
// fenced code block and falling back to a bare MATCH/RETURN body.
func parseCypher(content string) (string, bool) {
	if m := cypherFenceRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	query := strings.TrimSpace(content)
	upper := strings.ToUpper(query)
	if strings.HasPrefix(upper, "MATCH") || strings.HasPrefix(upper, "RETURN") || strings.HasPrefix(upper, "WITH") {
		return query, true
	}
	return "", false
}
