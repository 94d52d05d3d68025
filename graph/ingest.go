package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/schema"
)

// create runs an ingestion transaction. A key collision on the node being created
// rolls the whole transaction back and counts as success, so ingestion is idempotent.
// Any other collision propagates.
func (s *Store) create(ctx context.Context, op string, label schema.NodeLabel, id string, fn func(tx *sql.Tx, now int64) error) (bool, error) {
	now := s.timestamp()
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		return fn(tx, now)
	})
	var kc *KeyCollisionError
	if errors.As(err, &kc) && kc.Label == label && kc.Key == id {
		s.logger.Debug("node already exists", "op", op, "label", label, "id", id)
		return true, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.Debug("node created", "op", op, "label", label, "id", id)
	return true, nil
}

// AddCustomer creates a Customer. It returns true whether the customer is new or
// already present. Transcripts already ingested for the customer are linked with
// HAD_CALL.
func (s *Store) AddCustomer(ctx context.Context, rec CustomerRecord) (bool, error) {
	const op = "AddCustomer"

	if err := rec.Validate(); err != nil {
		return false, err
	}
	return s.create(ctx, op, schema.Customer, rec.CustomerID, func(tx *sql.Tx, now int64) error {
		err := insertNode(ctx, tx, op, schema.Customer, map[string]any{
			"customer_id":  rec.CustomerID,
			"profile_type": rec.ProfileType,
			"risk_level":   rec.RiskLevel,
		}, now)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO `+schema.RelationshipsTable+`
			(rel_type, from_id, to_id, weight, properties, created_at)
			SELECT ?, ?, transcript_id, NULL, NULL, ? FROM transcripts WHERE customer_id = ?
			ON CONFLICT (rel_type, from_id, to_id) DO NOTHING`,
			string(schema.HadCall), rec.CustomerID, now, rec.CustomerID)
		if err != nil {
			return fmt.Errorf("link existing calls: %w", err)
		}
		return nil
	})
}

// AddTranscript creates a Transcript. It returns true whether the transcript is new or
// already present. A transcript naming an existing customer is linked with HAD_CALL.
func (s *Store) AddTranscript(ctx context.Context, rec TranscriptRecord) (bool, error) {
	const op = "AddTranscript"

	if err := rec.Validate(); err != nil {
		return false, err
	}
	return s.create(ctx, op, schema.Transcript, rec.TranscriptID, func(tx *sql.Tx, now int64) error {
		values := map[string]any{
			"transcript_id": rec.TranscriptID,
			"topic":         rec.Topic,
			"message_count": rec.MessageCount,
		}
		if rec.CustomerID != "" {
			values["customer_id"] = rec.CustomerID
		}
		if err := insertNode(ctx, tx, op, schema.Transcript, values, now); err != nil {
			return err
		}
		if rec.CustomerID == "" {
			return nil
		}

		exists, err := nodeExists(ctx, tx, schema.Customer, rec.CustomerID)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		return link(ctx, tx, schema.HadCall, rec.CustomerID, rec.TranscriptID, nil, nil, now)
	})
}

// AddAnalysisWithRelationships creates an Analysis in one transaction together with
// its GENERATED_ANALYSIS link, its risk patterns and its compliance flags.
//
// Every risk score above RiskPatternThreshold is merged into the RiskPattern named by
// the risk and linked with the score as weight. Every compliance flag is classified,
// scored and merged into a ComplianceFlag linked with its severity as weight.
// Re-ingesting an existing analysis id changes nothing.
func (s *Store) AddAnalysisWithRelationships(ctx context.Context, rec AnalysisRecord) (bool, error) {
	const op = "AddAnalysisWithRelationships"

	if err := rec.Validate(); err != nil {
		return false, err
	}
	return s.create(ctx, op, schema.Analysis, rec.AnalysisID, func(tx *sql.Tx, now int64) error {
		err := insertNode(ctx, tx, op, schema.Analysis, map[string]any{
			"analysis_id":       rec.AnalysisID,
			"primary_intent":    rec.PrimaryIntent,
			"urgency_level":     rec.UrgencyLevel,
			"confidence_score":  rec.ConfidenceScore,
			"issue_resolved":    rec.IssueResolved,
			"escalation_needed": rec.EscalationNeeded,
		}, now)
		if err != nil {
			return err
		}

		if err := link(ctx, tx, schema.GeneratedAnalysis, rec.TranscriptID, rec.AnalysisID, nil, nil, now); err != nil {
			return err
		}

		risks := make([]string, 0, len(rec.RiskScores))
		for name := range rec.RiskScores {
			risks = append(risks, name)
		}
		sort.Strings(risks)

		for _, name := range risks {
			score := rec.RiskScores[name]
			if score <= RiskPatternThreshold {
				continue
			}
			id, err := upsertRiskPattern(ctx, tx, RiskPatternInput{
				PatternType: name,
				Description: RiskPatternDescription(name),
				RiskScore:   score,
			})
			if err != nil {
				return fmt.Errorf("risk pattern %s: %w", name, err)
			}
			if err := link(ctx, tx, schema.HasRiskPattern, rec.AnalysisID, id, float(score), nil, now); err != nil {
				return err
			}
		}

		for _, text := range rec.ComplianceFlags {
			if text == "" {
				continue
			}
			severity := ComplianceSeverity(text)
			id, err := upsertComplianceFlag(ctx, tx, ComplianceFlagInput{
				FlagType:    ClassifyComplianceFlag(text),
				Description: text,
				Severity:    severity,
			})
			if err != nil {
				return fmt.Errorf("compliance flag %q: %w", text, err)
			}
			if err := link(ctx, tx, schema.HasComplianceFlag, rec.AnalysisID, id, float(severity), nil, now); err != nil {
				return err
			}
		}

		if rec.EscalationNeeded && rec.EscalateTo != "" {
			var props map[string]any
			if rec.EscalationReason != "" {
				props = map[string]any{"reason": rec.EscalationReason}
			}
			return link(ctx, tx, schema.RequiresEscalation, rec.AnalysisID, rec.EscalateTo, nil, props, now)
		}
		return nil
	})
}

// AddPlanWithRelationships creates a Plan linked from its analysis.
func (s *Store) AddPlanWithRelationships(ctx context.Context, rec PlanRecord) (bool, error) {
	const op = "AddPlanWithRelationships"

	if err := rec.Validate(); err != nil {
		return false, err
	}
	return s.create(ctx, op, schema.Plan, rec.PlanID, func(tx *sql.Tx, now int64) error {
		err := insertNode(ctx, tx, op, schema.Plan, map[string]any{
			"plan_id":           rec.PlanID,
			"risk_level":        rec.RiskLevel,
			"approval_route":    rec.ApprovalRoute,
			"status":            rec.Status,
			"action_item_count": rec.ActionItemCount,
		}, now)
		if err != nil {
			return err
		}
		return link(ctx, tx, schema.GeneratedPlan, rec.AnalysisID, rec.PlanID, nil, nil, now)
	})
}

// AddWorkflowWithSteps creates a Workflow linked from its plan and/or analysis, and
// one WorkflowStep per step. Step ids are "<workflow_id>_step_<n>".
func (s *Store) AddWorkflowWithSteps(ctx context.Context, rec WorkflowRecord) (bool, error) {
	const op = "AddWorkflowWithSteps"

	if err := rec.Validate(); err != nil {
		return false, err
	}
	return s.create(ctx, op, schema.Workflow, rec.WorkflowID, func(tx *sql.Tx, now int64) error {
		err := insertNode(ctx, tx, op, schema.Workflow, map[string]any{
			"workflow_id":   rec.WorkflowID,
			"workflow_type": rec.WorkflowType,
			"action_item":   rec.ActionItem,
			"priority":      rec.Priority,
			"risk_level":    rec.RiskLevel,
			"status":        rec.Status,
		}, now)
		if err != nil {
			return err
		}

		if rec.PlanID != "" {
			if err := link(ctx, tx, schema.GeneratedWorkflow, rec.PlanID, rec.WorkflowID, nil, nil, now); err != nil {
				return err
			}
		}
		if rec.AnalysisID != "" {
			if err := link(ctx, tx, schema.AnalysisWorkflow, rec.AnalysisID, rec.WorkflowID, nil, nil, now); err != nil {
				return err
			}
		}

		for i, step := range rec.Steps {
			n := step.StepNumber
			if n == 0 {
				n = i + 1
			}
			stepID := StepID(rec.WorkflowID, n)
			err := insertNode(ctx, tx, op, schema.WorkflowStep, map[string]any{
				"step_id":     stepID,
				"step_number": n,
				"action":      step.Action,
				"tool_needed": step.ToolNeeded,
				"details":     step.Details,
			}, now)
			if err != nil {
				return err
			}
			if err := link(ctx, tx, schema.HasStep, rec.WorkflowID, stepID, float(float64(n)), nil, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// StepID returns the id of step n of a workflow.
func StepID(workflowID string, n int) string {
	return fmt.Sprintf("%s_step_%d", workflowID, n)
}

// AddExecutionWithRelationships creates an Execution linked from its workflow.
func (s *Store) AddExecutionWithRelationships(ctx context.Context, rec ExecutionRecord) (bool, error) {
	const op = "AddExecutionWithRelationships"

	if err := rec.Validate(); err != nil {
		return false, err
	}
	return s.create(ctx, op, schema.Execution, rec.ExecutionID, func(tx *sql.Tx, now int64) error {
		err := insertNode(ctx, tx, op, schema.Execution, map[string]any{
			"execution_id":    rec.ExecutionID,
			"status":          rec.Status,
			"executed_by":     rec.ExecutedBy,
			"steps_completed": rec.StepsCompleted,
			"error_message":   rec.ErrorMessage,
		}, now)
		if err != nil {
			return err
		}
		return link(ctx, tx, schema.HasExecution, rec.WorkflowID, rec.ExecutionID, nil, nil, now)
	})
}

// LinkCustomerCall links an existing customer to an existing transcript with HAD_CALL.
func (s *Store) LinkCustomerCall(ctx context.Context, customerID, transcriptID string) error {
	return s.linkNodes(ctx, "LinkCustomerCall", schema.HadCall, customerID, transcriptID, nil, nil)
}

// LinkSimilarCustomers links two existing customers with SIMILAR_TO. similarity must
// lie in [0, 1].
func (s *Store) LinkSimilarCustomers(ctx context.Context, customerID, similarID string, similarity float64) error {
	if similarity < 0 || similarity > 1 {
		return fmt.Errorf("%w: similarity %v outside [0, 1]", ErrInvalidArgument, similarity)
	}
	if customerID == similarID {
		return fmt.Errorf("%w: customer %s cannot be similar to itself", ErrInvalidArgument, customerID)
	}
	return s.linkNodes(ctx, "LinkSimilarCustomers", schema.SimilarTo, customerID, similarID, float(similarity), nil)
}

// LinkEscalation links an analysis to the analysis it escalates to with
// REQUIRES_ESCALATION.
func (s *Store) LinkEscalation(ctx context.Context, fromAnalysisID, toAnalysisID, reason string) error {
	var props map[string]any
	if reason != "" {
		props = map[string]any{"reason": reason}
	}
	return s.linkNodes(ctx, "LinkEscalation", schema.RequiresEscalation, fromAnalysisID, toAnalysisID, nil, props)
}

// linkNodes creates one relationship between two existing nodes. Both endpoints must
// exist; linking an existing triple is a no-op.
func (s *Store) linkNodes(ctx context.Context, op string, rel schema.RelType, from, to string, weight *float64, props map[string]any) error {
	rt, ok := schema.Relationship(rel)
	if !ok {
		return fmt.Errorf("%w: unknown relationship %s", ErrInvalidArgument, rel)
	}
	if from == "" || to == "" {
		return fmt.Errorf("%w: %s requires both endpoint ids", ErrInvalidArgument, rel)
	}

	now := s.timestamp()
	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		for _, end := range []struct {
			label schema.NodeLabel
			id    string
		}{{rt.From, from}, {rt.To, to}} {
			exists, err := nodeExists(ctx, tx, end.label, end.id)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: %s %s", ErrNodeNotFound, end.label, end.id)
			}
		}
		return link(ctx, tx, rel, from, to, weight, props, now)
	})
}
