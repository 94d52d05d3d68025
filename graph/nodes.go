package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/schema"
)

// Node is a node read back from the graph. Properties holds every attribute except
// the key and created_at, converted to its declared kind.
type Node struct {
	Label      schema.NodeLabel `json:"label"`
	ID         string           `json:"id"`
	Properties map[string]any   `json:"properties"`
	CreatedAt  time.Time        `json:"created_at"`
}

// String returns a property as a string, or "" when absent.
func (n *Node) String(name string) string {
	return stringValue(n.Properties[name])
}

// Int returns a property as an integer, or 0 when absent or not numeric.
func (n *Node) Int(name string) int64 {
	return intValue(n.Properties[name])
}

// Float returns a property as a float, or 0 when absent or not numeric.
func (n *Node) Float(name string) float64 {
	return floatValue(n.Properties[name])
}

// Bool returns a property as a bool, or false when absent.
func (n *Node) Bool(name string) bool {
	return boolValue(n.Properties[name])
}

// GetNode reads one node by label and key. It returns ErrNodeNotFound when absent.
func (s *Store) GetNode(ctx context.Context, label schema.NodeLabel, id string) (*Node, error) {
	const op = "GetNode"

	nt, ok := schema.Node(label)
	if !ok {
		return nil, fmt.Errorf("%w: unknown node label %q", ErrInvalidArgument, label)
	}
	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	node, err := getNode(ctx, q, nt, id)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return node, nil
}

// FindNode looks id up across every node type, in declaration order, and returns the
// first match. It returns ErrNodeNotFound when no node type holds the id.
func (s *Store) FindNode(ctx context.Context, id string) (*Node, error) {
	const op = "FindNode"

	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	for _, nt := range schema.Nodes() {
		node, err := getNode(ctx, q, nt, id)
		if errors.Is(err, ErrNodeNotFound) {
			continue
		}
		if err != nil {
			return nil, wrapErr(op, err)
		}
		return node, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}

func getNode(ctx context.Context, q querier, nt schema.NodeType, id string) (*Node, error) {
	cols := nt.Columns()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", strings.Join(cols, ", "), nt.Table, nt.Key)

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := q.QueryRowContext(ctx, query, id).Scan(ptrs...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %s", ErrNodeNotFound, nt.Label, id)
		}
		return nil, err
	}

	node := &Node{Label: nt.Label, ID: id, Properties: make(map[string]any, len(cols))}
	for i, attr := range nt.Attributes {
		switch {
		case attr.Name == nt.Key:
		case attr.Name == schema.CreatedAt:
			if n, ok := values[i].(int64); ok {
				node.CreatedAt = time.Unix(0, n).UTC()
			}
		default:
			node.Properties[attr.Name] = fromColumn(attr.Kind, values[i])
		}
	}
	return node, nil
}

// fromColumn converts a scanned column value to the attribute's declared kind.
func fromColumn(kind schema.AttrKind, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch kind {
	case schema.KindBool:
		if n, ok := v.(int64); ok {
			return n != 0
		}
	case schema.KindFloat:
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	case schema.KindTime:
		if n, ok := v.(int64); ok {
			return time.Unix(0, n).UTC()
		}
	}
	return v
}

// toColumn converts a Go value to its stored representation.
func toColumn(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.UTC().UnixNano()
	default:
		return v
	}
}

// insertNode creates one node. Values are keyed by column name; created_at is filled
// in for timestamped types. A key collision is returned as a KeyCollisionError.
func insertNode(ctx context.Context, tx *sql.Tx, op string, label schema.NodeLabel, values map[string]any, now int64) error {
	nt := schema.MustNode(label)
	key, _ := values[nt.Key].(string)

	var cols []string
	var args []any
	for _, attr := range nt.Attributes {
		if attr.Name == schema.CreatedAt {
			cols = append(cols, attr.Name)
			args = append(args, now)
			continue
		}
		v, ok := values[attr.Name]
		if !ok {
			continue
		}
		cols = append(cols, attr.Name)
		args = append(args, toColumn(v))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		nt.Table, strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return wrapInsertErr(op, label, key, err)
	}
	return nil
}

func nodeExists(ctx context.Context, q querier, label schema.NodeLabel, id string) (bool, error) {
	nt := schema.MustNode(label)
	var one int
	err := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", nt.Table, nt.Key), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// link creates a relationship unless the (type, from, to) triple already exists.
// weight may be nil; props are stored as a JSON object.
func link(ctx context.Context, tx *sql.Tx, rel schema.RelType, from, to string, weight *float64, props map[string]any, now int64) error {
	var w sql.NullFloat64
	if weight != nil {
		w = sql.NullFloat64{Float64: *weight, Valid: true}
	}
	var p sql.NullString
	if len(props) > 0 {
		data, err := json.Marshal(props)
		if err != nil {
			return fmt.Errorf("encode %s properties: %w", rel, err)
		}
		p = sql.NullString{String: string(data), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO `+schema.RelationshipsTable+`
		(rel_type, from_id, to_id, weight, properties, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (rel_type, from_id, to_id) DO NOTHING`,
		string(rel), from, to, w, p, now)
	if err != nil {
		return fmt.Errorf("link %s %s->%s: %w", rel, from, to, err)
	}
	return nil
}

// targets follows rel from every id in from and returns the distinct target ids in
// discovery order.
func targets(ctx context.Context, q querier, rel schema.RelType, from []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, id := range from {
		ids, err := queryStrings(ctx, q,
			"SELECT to_id FROM "+schema.RelationshipsTable+" WHERE rel_type = ? AND from_id = ? ORDER BY created_at, rowid",
			string(rel), id)
		if err != nil {
			return nil, err
		}
		for _, t := range ids {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func float(v float64) *float64 {
	return &v
}
