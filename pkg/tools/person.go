package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/rbegg/go-max/pkg/graphdb"
)

// queryRowsJSON runs a read query and returns the values under key from each
// row, marshalled as a JSON array. Database errors become error payloads the
// model can read, never Go errors.
func queryRowsJSON(ctx context.Context, db *graphdb.Client, cypher string, params map[string]any, key string) string {
	rows, err := db.Query(ctx, cypher, params)
	if err != nil {
		return ErrorPayload("query_failed", err.Error())
	}

	values := make([]any, 0, len(rows))
	for _, row := range rows {
		if v, ok := row[key]; ok {
			values = append(values, v)
		}
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return ErrorPayload("encoding_failed", err.Error())
	}
	return string(data)
}

// PersonTools finds people and support contacts in the graph.
type PersonTools struct {
	db     *graphdb.Client
	logger *slog.Logger
}

// NewPersonTools constructs the provider.
func NewPersonTools(d Deps) (Provider, error) {
	if d.DB == nil {
		return nil, graphdb.ErrNotConnected
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PersonTools{db: d.DB, logger: logger.With("tools", "person")}, nil
}

// FetchUserProfile loads the :User node's properties. Called once at startup
// to seed the conversation context; not exposed as a tool.
func (p *PersonTools) FetchUserProfile(ctx context.Context) (map[string]any, error) {
	rows, err := p.db.Query(ctx, "MATCH (u:User) RETURN properties(u) AS user LIMIT 1", nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]any{}, nil
	}
	profile, _ := rows[0]["user"].(map[string]any)
	return profile, nil
}

// Tools implements Provider.
func (p *PersonTools) Tools() []Tool {
	return []Tool{
		{
			Name: "find_person_by_name",
			Description: "Finds a person, family member, friend, or support contact by their first name, " +
				"last name, or both. It returns a list of potential matches with all attributes. " +
				"At least one name must be provided. Case-insensitive.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"first_name": map[string]interface{}{
						"type":        "string",
						"description": "First name to search for",
					},
					"last_name": map[string]interface{}{
						"type":        "string",
						"description": "Last name to search for",
					},
				},
			},
			Handler: p.findPersonByName,
		},
		{
			Name: "find_person_by_title",
			Description: "Use this tool to find a person by a title, like 'Doctor' or 'Nurse'. " +
				"This tool searches the title field of all person and support contacts for a " +
				"partial, case-insensitive match.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Title to search for, e.g. 'Doctor'",
					},
				},
				"required": []string{"title"},
			},
			Handler: p.findPersonByTitle,
		},
	}
}

func (p *PersonTools) findPersonByName(ctx context.Context, args map[string]interface{}) (string, error) {
	firstName := strings.ToLower(stringArg(args, "first_name"))
	lastName := strings.ToLower(stringArg(args, "last_name"))
	p.logger.Info("tool: find_person_by_name", "first_name", firstName, "last_name", lastName)

	if firstName == "" && lastName == "" {
		return ErrorPayload("search_failed", "You must provide at least a first or last name."), nil
	}

	query := `
		MATCH (p:Person|Family|Friend|Support)
		WHERE ($first_name = '' OR toLower(p.firstName) CONTAINS $first_name)
		  AND ($last_name = '' OR toLower(p.lastName) CONTAINS $last_name)
		RETURN properties(p) AS person, labels(p) AS labels
		LIMIT 10`

	rows, err := p.db.Query(ctx, query, map[string]any{
		"first_name": firstName,
		"last_name":  lastName,
	})
	if err != nil {
		return ErrorPayload("query_failed", err.Error()), nil
	}

	results := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		results = append(results, map[string]any{
			"person": row["person"],
			"labels": row["labels"],
		})
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return ErrorPayload("encoding_failed", err.Error()), nil
	}
	return string(data), nil
}

func (p *PersonTools) findPersonByTitle(ctx context.Context, args map[string]interface{}) (string, error) {
	title := strings.ToLower(stringArg(args, "title"))
	p.logger.Info("tool: find_person_by_title", "title", title)

	if title == "" {
		return ErrorPayload("search_failed", "You must provide a title to search for."), nil
	}

	query := `
		MATCH (p:Person|Support)
		WHERE toLower(p.title) CONTAINS $title
		RETURN properties(p) AS person
		LIMIT 10`

	return queryRowsJSON(ctx, p.db, query, map[string]any{"title": title}, "person"), nil
}
