package graph

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/schema"
)

// prunable lists the node types PruneOldData removes by age. Customers and the shared
// pattern and flag nodes are not aged out; patterns and flags go when orphaned.
var prunable = []schema.NodeLabel{
	schema.Execution,
	schema.WorkflowStep,
	schema.Workflow,
	schema.Plan,
	schema.Analysis,
	schema.Transcript,
}

// DeleteAnalysisNode deletes an analysis and its relationships. Risk patterns and
// compliance flags no longer linked to any analysis are deleted with it. It reports
// whether the analysis existed.
func (s *Store) DeleteAnalysisNode(ctx context.Context, analysisID string) (bool, error) {
	const op = "DeleteAnalysisNode"

	var deleted bool
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var sweep orphanSweep
		if err := sweep.collect(ctx, tx, []string{analysisID}); err != nil {
			return err
		}
		n, err := deleteNode(ctx, tx, schema.Analysis, analysisID)
		if err != nil {
			return err
		}
		deleted = n > 0
		_, err = sweep.run(ctx, tx)
		return err
	})
	if err != nil {
		return false, err
	}
	s.logger.Debug("analysis deleted", "op", op, "id", analysisID, "existed", deleted)
	return deleted, nil
}

// DeleteCustomerCascade deletes a customer and everything derived from it: its calls,
// their analyses, plans, workflows, steps and executions, and the risk patterns and
// compliance flags left orphaned. It returns the number of nodes deleted.
func (s *Store) DeleteCustomerCascade(ctx context.Context, customerID string) (int, error) {
	const op = "DeleteCustomerCascade"

	var total int
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		owned, err := queryStrings(ctx, tx,
			"SELECT transcript_id FROM transcripts WHERE customer_id = ? ORDER BY created_at, rowid", customerID)
		if err != nil {
			return err
		}
		linked, err := targets(ctx, tx, schema.HadCall, []string{customerID})
		if err != nil {
			return err
		}
		transcripts := union(linked, owned)

		analyses, err := targets(ctx, tx, schema.GeneratedAnalysis, transcripts)
		if err != nil {
			return err
		}
		plans, err := targets(ctx, tx, schema.GeneratedPlan, analyses)
		if err != nil {
			return err
		}
		direct, err := targets(ctx, tx, schema.AnalysisWorkflow, analyses)
		if err != nil {
			return err
		}
		planned, err := targets(ctx, tx, schema.GeneratedWorkflow, plans)
		if err != nil {
			return err
		}
		workflows := union(direct, planned)
		steps, err := targets(ctx, tx, schema.HasStep, workflows)
		if err != nil {
			return err
		}
		executions, err := targets(ctx, tx, schema.HasExecution, workflows)
		if err != nil {
			return err
		}

		var sweep orphanSweep
		if err := sweep.collect(ctx, tx, analyses); err != nil {
			return err
		}

		victims := []struct {
			label schema.NodeLabel
			ids   []string
		}{
			{schema.Execution, executions},
			{schema.WorkflowStep, steps},
			{schema.Workflow, workflows},
			{schema.Plan, plans},
			{schema.Analysis, analyses},
			{schema.Transcript, transcripts},
			{schema.Customer, []string{customerID}},
		}
		for _, v := range victims {
			for _, id := range v.ids {
				n, err := deleteNode(ctx, tx, v.label, id)
				if err != nil {
					return err
				}
				total += int(n)
			}
		}

		n, err := sweep.run(ctx, tx)
		total += n
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("customer cascade deleted", "op", op, "id", customerID, "nodes", total)
	return total, nil
}

// PruneOldData deletes calls and everything derived from them written more than days
// ago, then the orphaned risk patterns and compliance flags. It returns the number of
// nodes deleted.
func (s *Store) PruneOldData(ctx context.Context, days int) (int, error) {
	const op = "PruneOldData"

	if days < 0 {
		return 0, fmt.Errorf("%w: days must not be negative, got %d", ErrInvalidArgument, days)
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour).UTC().UnixNano()

	var total int
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var sweep orphanSweep
		for _, label := range prunable {
			nt := schema.MustNode(label)
			ids, err := queryStrings(ctx, tx,
				fmt.Sprintf("SELECT %s FROM %s WHERE %s < ?", nt.Key, nt.Table, schema.CreatedAt), cutoff)
			if err != nil {
				return err
			}
			if label == schema.Analysis {
				if err := sweep.collect(ctx, tx, ids); err != nil {
					return err
				}
			}
			for _, id := range ids {
				n, err := deleteNode(ctx, tx, label, id)
				if err != nil {
					return err
				}
				total += int(n)
			}
		}
		n, err := sweep.run(ctx, tx)
		total += n
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("old data pruned", "op", op, "days", days, "nodes", total)
	return total, nil
}

// ClearGraph deletes every node and relationship. The schema is kept.
func (s *Store) ClearGraph(ctx context.Context) (bool, error) {
	const op = "ClearGraph"

	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+schema.RelationshipsTable); err != nil {
			return err
		}
		for _, nt := range schema.Nodes() {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+nt.Table); err != nil {
				return fmt.Errorf("clear %s: %w", nt.Table, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	s.logger.Info("graph cleared", "op", op)
	return true, nil
}

// deleteNode removes a node and every relationship it takes part in. Relationship
// rows are matched by type and direction, so equal ids of different node types do not
// interfere. It returns the number of node rows deleted.
func deleteNode(ctx context.Context, tx *sql.Tx, label schema.NodeLabel, id string) (int64, error) {
	nt := schema.MustNode(label)

	if out := relTypes(schema.Outgoing(label)); len(out) > 0 {
		if err := deleteRelationships(ctx, tx, "from_id", id, out); err != nil {
			return 0, err
		}
	}
	if in := relTypes(schema.Incoming(label)); len(in) > 0 {
		if err := deleteRelationships(ctx, tx, "to_id", id, in); err != nil {
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", nt.Table, nt.Key), id)
	if err != nil {
		return 0, fmt.Errorf("delete %s %s: %w", label, id, err)
	}
	return res.RowsAffected()
}

func deleteRelationships(ctx context.Context, tx *sql.Tx, column, id string, types []any) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND rel_type IN (%s)",
		schema.RelationshipsTable, column, placeholders(len(types)))
	if _, err := tx.ExecContext(ctx, query, append([]any{id}, types...)...); err != nil {
		return fmt.Errorf("delete relationships of %s: %w", id, err)
	}
	return nil
}

func relTypes(rts []schema.RelationshipType) []any {
	out := make([]any, len(rts))
	for i, rt := range rts {
		out[i] = string(rt.Type)
	}
	return out
}

// orphanSweep remembers the risk patterns and compliance flags linked to analyses
// about to be deleted, and deletes those that end up with no linking analysis.
// Patterns that were never linked are left alone.
type orphanSweep struct {
	patterns []string
	flags    []string
}

func (o *orphanSweep) collect(ctx context.Context, tx *sql.Tx, analyses []string) error {
	patterns, err := targets(ctx, tx, schema.HasRiskPattern, analyses)
	if err != nil {
		return err
	}
	flags, err := targets(ctx, tx, schema.HasComplianceFlag, analyses)
	if err != nil {
		return err
	}
	o.patterns = union(o.patterns, patterns)
	o.flags = union(o.flags, flags)
	return nil
}

func (o *orphanSweep) run(ctx context.Context, tx *sql.Tx) (int, error) {
	var total int
	for _, c := range []struct {
		label schema.NodeLabel
		rel   schema.RelType
		ids   []string
	}{
		{schema.RiskPattern, schema.HasRiskPattern, o.patterns},
		{schema.ComplianceFlag, schema.HasComplianceFlag, o.flags},
	} {
		nt := schema.MustNode(c.label)
		query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND NOT EXISTS (
			SELECT 1 FROM %s WHERE rel_type = ? AND to_id = ?)`,
			nt.Table, nt.Key, schema.RelationshipsTable)
		for _, id := range c.ids {
			res, err := tx.ExecContext(ctx, query, id, string(c.rel), id)
			if err != nil {
				return total, fmt.Errorf("sweep %s %s: %w", c.label, id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return total, err
			}
			total += int(n)
		}
	}
	return total, nil
}

// union appends the ids of b missing from a, keeping order.
func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

