package tools

import (
	"context"
	"log/slog"

	"github.com/rbegg/go-max/pkg/graphdb"
)

// FamilyTools answers family-tree questions, all relative to the :User node.
type FamilyTools struct {
	db     *graphdb.Client
	logger *slog.Logger
}

// NewFamilyTools constructs the provider.
func NewFamilyTools(d Deps) (Provider, error) {
	if d.DB == nil {
		return nil, graphdb.ErrNotConnected
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FamilyTools{db: d.DB, logger: logger.With("tools", "family")}, nil
}

func noArgs() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Tools implements Provider.
func (f *FamilyTools) Tools() []Tool {
	return []Tool{
		{
			Name: "get_my_parents",
			Description: "Finds the user's parents, mother, father. " +
				"This looks for people with a parent relationship to the user.",
			Parameters: noArgs(),
			Handler: f.relatives("get_my_parents", `
				MATCH (parent)-[:PARENT_OF]->(u:User)
				RETURN properties(parent) AS person`),
		},
		{
			Name:        "get_my_children",
			Description: "Finds the user's children, kids, offspring.",
			Parameters:  noArgs(),
			Handler: f.relatives("get_my_children", `
				MATCH (u:User)-[:PARENT_OF]->(child)
				RETURN properties(child) AS person`),
		},
		{
			Name:        "get_my_grandchildren",
			Description: "Finds the user's grandchildren (children of the user's children).",
			Parameters:  noArgs(),
			Handler: f.relatives("get_my_grandchildren", `
				MATCH (u:User)-[:PARENT_OF]->(child)-[:PARENT_OF]->(grandchild)
				RETURN DISTINCT properties(grandchild) AS person`),
		},
		{
			Name:        "get_my_siblings",
			Description: "Finds the user's siblings, brothers, sisters (other children of the user's parents).",
			Parameters:  noArgs(),
			Handler: f.relatives("get_my_siblings", `
				MATCH (parent)-[:PARENT_OF]->(u:User)
				MATCH (parent)-[:PARENT_OF]->(sibling)
				WHERE sibling <> u
				RETURN DISTINCT properties(sibling) AS person`),
		},
	}
}

// relatives builds a no-argument handler around a fixed Cypher query
// returning person rows.
func (f *FamilyTools) relatives(name, query string) func(context.Context, map[string]interface{}) (string, error) {
	return func(ctx context.Context, args map[string]interface{}) (string, error) {
		f.logger.Info("tool: " + name)
		return queryRowsJSON(ctx, f.db, query, nil, "person"), nil
	}
}
