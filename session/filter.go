package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/graph"
)

// ErrInvalidFilter is returned for a workflow filter that does not compile or does not
// evaluate to a boolean.
var ErrInvalidFilter = errors.New("invalid workflow filter")

// FilterWorkflows returns the active transcript's workflows for which expr is true.
// expr is a CEL expression over a `workflow` map with the keys workflow_id,
// workflow_type, action_item, priority, risk_level, status, plan_id, analysis_id,
// step_count and created_at, for example:
//
//	workflow.priority == "high" && workflow.step_count > 2
func (s *Session) FilterWorkflows(ctx context.Context, expr string) ([]graph.Workflow, error) {
	transcriptID := s.Active().TranscriptID
	out, err := s.filterWorkflows(ctx, transcriptID, expr)
	if err != nil {
		s.record("filter_workflows_failed", nonEmpty(map[string]string{"transcript_id": transcriptID, "filter": expr}))
		return nil, err
	}
	s.record("filter_workflows", map[string]string{"transcript_id": transcriptID, "filter": expr})
	return out, nil
}

func (s *Session) filterWorkflows(ctx context.Context, transcriptID, expr string) ([]graph.Workflow, error) {
	prg, err := compileFilter(expr)
	if err != nil {
		return nil, err
	}
	if transcriptID == "" {
		return nil, ErrNoActiveTranscript
	}
	all, err := s.reader.GetWorkflowsForTranscript(ctx, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("workflows for %s: %w", transcriptID, err)
	}

	var out []graph.Workflow
	for _, w := range all {
		val, _, err := prg.ContextEval(ctx, map[string]any{"workflow": workflowVars(w)})
		if err != nil {
			return nil, fmt.Errorf("%w: evaluate on %s: %v", ErrInvalidFilter, w.WorkflowID, err)
		}
		keep, ok := val.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("%w: expression yields %s, not bool", ErrInvalidFilter, val.Type().TypeName())
		}
		if keep {
			out = append(out, w)
		}
	}
	return out, nil
}

func compileFilter(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("workflow", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create filter environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, iss.Err())
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: expression yields %s, not bool", ErrInvalidFilter, out)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return prg, nil
}

func workflowVars(w graph.Workflow) map[string]any {
	return map[string]any{
		"workflow_id":   w.WorkflowID,
		"workflow_type": w.WorkflowType,
		"action_item":   w.ActionItem,
		"priority":      w.Priority,
		"risk_level":    w.RiskLevel,
		"status":        w.Status,
		"plan_id":       w.PlanID,
		"analysis_id":   w.AnalysisID,
		"step_count":    int64(w.StepCount),
		"created_at":    w.CreatedAt,
	}
}
