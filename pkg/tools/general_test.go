package tools

import "testing"

func TestParseCypher(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{
			name:    "fenced cypher block",
			content: "Here is the query:\n```cypher\nMATCH (n) RETURN n LIMIT 25\n```",
			want:    "MATCH (n) RETURN n LIMIT 25",
			ok:      true,
		},
		{
			name:    "plain fence",
			content: "```\nMATCH (p:Person) RETURN p.name\n```",
			want:    "MATCH (p:Person) RETURN p.name",
			ok:      true,
		},
		{
			name:    "bare match query",
			content: "MATCH (n:Family) RETURN n",
			want:    "MATCH (n:Family) RETURN n",
			ok:      true,
		},
		{
			name:    "prose only",
			content: "I cannot answer that question.",
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseCypher(tt.content)
			if ok != tt.ok {
				t.Fatalf("parseCypher ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("parseCypher = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteClauseGuard(t *testing.T) {
	writes := []string{
		"CREATE (n:Person {name: 'x'})",
		"MATCH (n) SET n.name = 'x' RETURN n",
		"MATCH (n) DELETE n",
		"merge (n:Person) return n",
	}
	for _, q := range writes {
		if !writeClauseRe.MatchString(q) {
			t.Errorf("Write query not rejected: %s", q)
		}
	}

	reads := []string{
		"MATCH (n:Person) RETURN n.name",
		"MATCH (a)-[:HAS_APPOINTMENT]->(b) RETURN b LIMIT 25",
		// Clause words inside values must not trip the guard.
		"MATCH (n) WHERE n.notes CONTAINS 'reset' RETURN n",
	}
	for _, q := range reads {
		if writeClauseRe.MatchString(q) {
			t.Errorf("Read query wrongly rejected: %s", q)
		}
	}
}
