package graph

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Record is one row of an ad-hoc query. Keys keeps the query's declared column
// order; Values is parallel to Keys.
type Record struct {
	Keys   []string `json:"keys"`
	Values []any    `json:"values"`
}

// Get returns the value of the named column.
func (r Record) Get(key string) (any, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the record as a map. Column order is lost.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.Keys))
	for i, k := range r.Keys {
		m[k] = r.Values[i]
	}
	return m
}

// ExecuteQuery runs an ad-hoc read. Parameters are bound by name and referenced in
// the query as :name, @name or $name.
func (s *Store) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	const op = "ExecuteQuery"

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidArgument)
	}
	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, namedArgs(params)...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrapErr(op, err)
	}

	records := []Record{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrapErr(op, err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
		}
		records = append(records, Record{Keys: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return records, nil
}

// ExecuteStatement runs an ad-hoc write in its own transaction and returns the number
// of rows affected.
func (s *Store) ExecuteStatement(ctx context.Context, statement string, params map[string]any) (int64, error) {
	const op = "ExecuteStatement"

	if strings.TrimSpace(statement) == "" {
		return 0, fmt.Errorf("%w: empty statement", ErrInvalidArgument)
	}
	var affected int64
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, statement, namedArgs(params)...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func namedArgs(params map[string]any) []any {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, len(names))
	for i, name := range names {
		args[i] = sql.Named(strings.TrimLeft(name, ":@$"), toColumn(params[name]))
	}
	return args
}
