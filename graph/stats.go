package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/schema"
)

// Statistics are the current node and relationship counts.
type Statistics struct {
	NodeCounts         map[schema.NodeLabel]int64 `json:"node_counts"`
	TotalNodes         int64                      `json:"total_nodes"`
	Relationships      int64                      `json:"relationships"`
	RelationshipCounts map[schema.RelType]int64   `json:"relationship_counts"`
}

// GetGraphStatistics counts every node type and every relationship. Any failing count
// fails the call; counts are never substituted.
func (s *Store) GetGraphStatistics(ctx context.Context) (Statistics, error) {
	stats, errs := s.statistics(ctx, false)
	if len(errs) > 0 {
		return Statistics{}, wrapErr("GetGraphStatistics", errs[0])
	}
	return stats, nil
}

// GetGraphStatisticsBestEffort counts what it can. Counts that failed are absent from
// the result and reported in the joined error; callers must check both.
func (s *Store) GetGraphStatisticsBestEffort(ctx context.Context) (Statistics, error) {
	stats, errs := s.statistics(ctx, true)
	for i, err := range errs {
		errs[i] = wrapErr("GetGraphStatisticsBestEffort", err)
	}
	return stats, errors.Join(errs...)
}

func (s *Store) statistics(ctx context.Context, keepGoing bool) (Statistics, []error) {
	q, err := s.reader()
	if err != nil {
		return Statistics{}, []error{err}
	}

	stats := Statistics{
		NodeCounts:         make(map[schema.NodeLabel]int64),
		RelationshipCounts: make(map[schema.RelType]int64),
	}
	var errs []error

	for _, nt := range schema.Nodes() {
		var n int64
		if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+nt.Table).Scan(&n); err != nil {
			errs = append(errs, fmt.Errorf("count %s: %w", nt.Label, err))
			if !keepGoing {
				return Statistics{}, errs
			}
			continue
		}
		stats.NodeCounts[nt.Label] = n
		stats.TotalNodes += n
	}

	rows, err := q.QueryContext(ctx,
		"SELECT rel_type, COUNT(*) FROM "+schema.RelationshipsTable+" GROUP BY rel_type")
	if err != nil {
		return stats, append(errs, fmt.Errorf("count relationships: %w", err))
	}
	defer rows.Close()

	for _, rt := range schema.Relationships() {
		stats.RelationshipCounts[rt.Type] = 0
	}
	for rows.Next() {
		var rel string
		var n int64
		if err := rows.Scan(&rel, &n); err != nil {
			return stats, append(errs, fmt.Errorf("count relationships: %w", err))
		}
		stats.RelationshipCounts[schema.RelType(rel)] = n
		stats.Relationships += n
	}
	if err := rows.Err(); err != nil {
		return stats, append(errs, fmt.Errorf("count relationships: %w", err))
	}
	return stats, errs
}
