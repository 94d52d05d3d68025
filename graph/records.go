package graph

import (
	"fmt"
	"strconv"
)

// Ingestion records. Each record declares the fields its ingestion call needs;
// Validate reports the first missing required field.

// CustomerRecord is the input of AddCustomer.
type CustomerRecord struct {
	CustomerID  string `json:"customer_id"` // required
	ProfileType string `json:"profile_type,omitempty"`
	RiskLevel   string `json:"risk_level,omitempty"`
}

func (r CustomerRecord) Validate() error {
	if r.CustomerID == "" {
		return missingField("CustomerRecord", "customer_id")
	}
	return nil
}

// TranscriptRecord is the input of AddTranscript. A transcript naming an existing
// customer is linked to it with HAD_CALL.
type TranscriptRecord struct {
	TranscriptID string `json:"transcript_id"` // required
	CustomerID   string `json:"customer_id,omitempty"`
	Topic        string `json:"topic,omitempty"`
	MessageCount int    `json:"message_count,omitempty"`
}

func (r TranscriptRecord) Validate() error {
	if r.TranscriptID == "" {
		return missingField("TranscriptRecord", "transcript_id")
	}
	return nil
}

// AnalysisRecord is the input of AddAnalysisWithRelationships.
type AnalysisRecord struct {
	AnalysisID       string  `json:"analysis_id"`   // required
	TranscriptID     string  `json:"transcript_id"` // required
	PrimaryIntent    string  `json:"primary_intent,omitempty"`
	UrgencyLevel     string  `json:"urgency_level,omitempty"`
	ConfidenceScore  float64 `json:"confidence_score,omitempty"`
	IssueResolved    bool    `json:"issue_resolved,omitempty"`
	EscalationNeeded bool    `json:"escalation_needed,omitempty"`

	// RiskScores maps a risk name (e.g. "delinquency_risk") to a score in [0, 1].
	// Scores above RiskPatternThreshold become RiskPattern links.
	RiskScores map[string]float64 `json:"risk_scores,omitempty"`

	// ComplianceFlags are free-text compliance observations.
	ComplianceFlags []string `json:"compliance_flags,omitempty"`

	// EscalateTo names the analysis this one escalates to. It is linked with
	// REQUIRES_ESCALATION when EscalationNeeded is set.
	EscalateTo       string `json:"escalate_to,omitempty"`
	EscalationReason string `json:"escalation_reason,omitempty"`
}

func (r AnalysisRecord) Validate() error {
	if r.AnalysisID == "" {
		return missingField("AnalysisRecord", "analysis_id")
	}
	if r.TranscriptID == "" {
		return missingField("AnalysisRecord", "transcript_id")
	}
	return nil
}

// PlanRecord is the input of AddPlanWithRelationships.
type PlanRecord struct {
	PlanID          string `json:"plan_id"`     // required
	AnalysisID      string `json:"analysis_id"` // required
	RiskLevel       string `json:"risk_level,omitempty"`
	ApprovalRoute   string `json:"approval_route,omitempty"`
	Status          string `json:"status,omitempty"`
	ActionItemCount int    `json:"action_item_count,omitempty"`
}

func (r PlanRecord) Validate() error {
	if r.PlanID == "" {
		return missingField("PlanRecord", "plan_id")
	}
	if r.AnalysisID == "" {
		return missingField("PlanRecord", "analysis_id")
	}
	return nil
}

// WorkflowStepRecord is one step of a workflow. StepNumber defaults to the step's
// 1-based position.
type WorkflowStepRecord struct {
	StepNumber int    `json:"step_number,omitempty"`
	Action     string `json:"action"`
	ToolNeeded string `json:"tool_needed,omitempty"`
	Details    string `json:"details,omitempty"`
}

// WorkflowRecord is the input of AddWorkflowWithSteps. At least one of PlanID and
// AnalysisID must be set; the workflow is linked from each that is.
type WorkflowRecord struct {
	WorkflowID   string               `json:"workflow_id"`   // required
	WorkflowType string               `json:"workflow_type"` // required
	PlanID       string               `json:"plan_id,omitempty"`
	AnalysisID   string               `json:"analysis_id,omitempty"`
	ActionItem   string               `json:"action_item,omitempty"`
	Priority     string               `json:"priority,omitempty"`
	RiskLevel    string               `json:"risk_level,omitempty"`
	Status       string               `json:"status,omitempty"`
	Steps        []WorkflowStepRecord `json:"steps,omitempty"`
}

func (r WorkflowRecord) Validate() error {
	if r.WorkflowID == "" {
		return missingField("WorkflowRecord", "workflow_id")
	}
	if r.WorkflowType == "" {
		return missingField("WorkflowRecord", "workflow_type")
	}
	if r.PlanID == "" && r.AnalysisID == "" {
		return missingField("WorkflowRecord", "plan_id or analysis_id")
	}
	numbers := make(map[int]bool, len(r.Steps))
	for i, step := range r.Steps {
		if step.Action == "" {
			return missingField("WorkflowRecord", stepField(i, "action"))
		}
		n := step.StepNumber
		if n == 0 {
			n = i + 1
		}
		if n < 0 || numbers[n] {
			return fmt.Errorf("WorkflowRecord: %w: %s = %d", ErrInvalidArgument, stepField(i, "step_number"), n)
		}
		numbers[n] = true
	}
	return nil
}

// ExecutionRecord is the input of AddExecutionWithRelationships.
type ExecutionRecord struct {
	ExecutionID    string `json:"execution_id"` // required
	WorkflowID     string `json:"workflow_id"`  // required
	Status         string `json:"status,omitempty"`
	ExecutedBy     string `json:"executed_by,omitempty"`
	StepsCompleted int    `json:"steps_completed,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

func (r ExecutionRecord) Validate() error {
	if r.ExecutionID == "" {
		return missingField("ExecutionRecord", "execution_id")
	}
	if r.WorkflowID == "" {
		return missingField("ExecutionRecord", "workflow_id")
	}
	return nil
}

// RiskPatternInput is the composite-keyed input of UpsertRiskPattern.
type RiskPatternInput struct {
	PatternType string  `json:"pattern_type"` // required
	Description string  `json:"description"`  // required
	RiskScore   float64 `json:"risk_score"`
}

func (r RiskPatternInput) Validate() error {
	if r.PatternType == "" {
		return missingField("RiskPatternInput", "pattern_type")
	}
	if r.Description == "" {
		return missingField("RiskPatternInput", "description")
	}
	return nil
}

// ComplianceFlagInput is the composite-keyed input of UpsertComplianceFlag.
type ComplianceFlagInput struct {
	FlagType    string  `json:"flag_type"`   // required
	Description string  `json:"description"` // required
	Severity    float64 `json:"severity"`
}

func (r ComplianceFlagInput) Validate() error {
	if r.FlagType == "" {
		return missingField("ComplianceFlagInput", "flag_type")
	}
	if r.Description == "" {
		return missingField("ComplianceFlagInput", "description")
	}
	return nil
}

func stepField(i int, name string) string {
	return "steps[" + strconv.Itoa(i) + "]." + name
}
