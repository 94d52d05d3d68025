package schema

import (
	"fmt"
	"strings"
)

// DDL renders the statements that declare the whole graph. Every statement is
// idempotent so the store can apply them on every open.
func DDL() []string {
	var stmts []string
	for _, n := range nodeTypes {
		stmts = append(stmts, n.createTable())
		stmts = append(stmts, n.createIndexes()...)
	}
	stmts = append(stmts, createRelationships()...)
	return stmts
}

func (n NodeType) createTable() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", n.Table)

	for i, a := range n.Attributes {
		fmt.Fprintf(&b, "\t%s %s", a.Name, a.Kind.sqlType())
		switch {
		case a.Name == n.Key:
			b.WriteString(" NOT NULL PRIMARY KEY")
		case a.Required || a.Name == CreatedAt:
			b.WriteString(" NOT NULL")
		}
		if i < len(n.Attributes)-1 || len(n.Unique) > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}

	for i, u := range n.Unique {
		fmt.Fprintf(&b, "\tUNIQUE (%s)", strings.Join(u, ", "))
		if i < len(n.Unique)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}

	b.WriteString(")")
	return b.String()
}

func (n NodeType) createIndexes() []string {
	var stmts []string
	if n.Timestamped() {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s(%s)", n.Table, n.Table, CreatedAt))
	}
	if n.Label == Transcript {
		stmts = append(stmts,
			"CREATE INDEX IF NOT EXISTS idx_transcripts_customer ON transcripts(customer_id)")
	}
	if n.Label == RiskPattern {
		stmts = append(stmts,
			"CREATE INDEX IF NOT EXISTS idx_risk_patterns_score ON risk_patterns(risk_score)")
	}
	return stmts
}

func createRelationships() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + RelationshipsTable + ` (
	rel_type TEXT NOT NULL,
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	weight REAL,
	properties TEXT,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (rel_type, from_id, to_id)
)`,
		"CREATE INDEX IF NOT EXISTS idx_relationships_to ON " + RelationshipsTable + "(rel_type, to_id)",
		"CREATE INDEX IF NOT EXISTS idx_relationships_created_at ON " + RelationshipsTable + "(created_at)",
	}
}
