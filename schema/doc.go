// Package schema declares the typed knowledge graph: node types, relationship types and
// their attributes.
//
// The declaration is static and carries no behavior beyond rendering the idempotent DDL
// the graph store applies on every open. Everything else in the module depends on it.
//
// # Node Types
//
//	Customer       customer_id     profile_type, risk_level
//	Transcript     transcript_id   customer_id, topic, message_count
//	Analysis       analysis_id     primary_intent, urgency_level, confidence_score, ...
//	RiskPattern    pattern_id      pattern_type, description, risk_score, frequency
//	ComplianceFlag flag_id         flag_type, description, severity
//	Plan           plan_id         risk_level, approval_route, status, action_item_count
//	Workflow       workflow_id     workflow_type, action_item, priority, risk_level, status
//	WorkflowStep   step_id         step_number, action, tool_needed, details
//	Execution      execution_id    status, executed_by, steps_completed, error_message
//
// RiskPattern and ComplianceFlag carry a composite unique key on (type, description) so
// that repeated observations merge into one node instead of proliferating duplicates.
//
// # Relationship Types
//
// Relationships are directed and typed; the endpoint node types are fixed per type, so a
// relationship row is identified by (type, from_id, to_id):
//
//	Customer   -HAD_CALL->            Transcript
//	Transcript -GENERATED_ANALYSIS->  Analysis
//	Analysis   -HAS_RISK_PATTERN->    RiskPattern
//	Analysis   -HAS_COMPLIANCE_FLAG-> ComplianceFlag
//	Customer   -SIMILAR_TO->          Customer
//	Analysis   -REQUIRES_ESCALATION-> Analysis
//	Analysis   -GENERATED_PLAN->      Plan
//	Plan       -GENERATED_WORKFLOW->  Workflow
//	Analysis   -ANALYSIS_WORKFLOW->   Workflow
//	Workflow   -HAS_STEP->            WorkflowStep
//	Workflow   -HAS_EXECUTION->       Execution
package schema
