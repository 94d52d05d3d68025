package schema

import (
	"fmt"
)

// NodeLabel names a node type.
type NodeLabel string

// Node labels.
const (
	Customer       NodeLabel = "Customer"
	Transcript     NodeLabel = "Transcript"
	Analysis       NodeLabel = "Analysis"
	RiskPattern    NodeLabel = "RiskPattern"
	ComplianceFlag NodeLabel = "ComplianceFlag"
	Plan           NodeLabel = "Plan"
	Workflow       NodeLabel = "Workflow"
	WorkflowStep   NodeLabel = "WorkflowStep"
	Execution      NodeLabel = "Execution"
)

// RelType names a relationship type.
type RelType string

// Relationship types.
const (
	HadCall            RelType = "HAD_CALL"
	GeneratedAnalysis  RelType = "GENERATED_ANALYSIS"
	HasRiskPattern     RelType = "HAS_RISK_PATTERN"
	HasComplianceFlag  RelType = "HAS_COMPLIANCE_FLAG"
	SimilarTo          RelType = "SIMILAR_TO"
	RequiresEscalation RelType = "REQUIRES_ESCALATION"
	GeneratedPlan      RelType = "GENERATED_PLAN"
	GeneratedWorkflow  RelType = "GENERATED_WORKFLOW"
	AnalysisWorkflow   RelType = "ANALYSIS_WORKFLOW"
	HasStep            RelType = "HAS_STEP"
	HasExecution       RelType = "HAS_EXECUTION"
)

// RelationshipsTable is the single table holding every relationship row.
const RelationshipsTable = "relationships"

// CreatedAt is the store-assigned timestamp column present on timestamped node types.
const CreatedAt = "created_at"

// AttrKind is the primitive scalar kind of an attribute.
type AttrKind int

const (
	KindString AttrKind = iota
	KindInt
	KindFloat
	KindBool
	// KindTime values are stored as Unix nanoseconds.
	KindTime
)

// String returns the kind name.
func (k AttrKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("AttrKind(%d)", int(k))
	}
}

// sqlType maps the kind onto a SQLite column affinity.
func (k AttrKind) sqlType() string {
	switch k {
	case KindInt, KindBool, KindTime:
		return "INTEGER"
	case KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Attribute is a single scalar attribute of a node type.
type Attribute struct {
	Name     string
	Kind     AttrKind
	Required bool
}

// NodeType declares one node type.
type NodeType struct {
	Label NodeLabel

	// Table is the backing table name.
	Table string

	// Key is the primary key attribute name.
	Key string

	// Attributes lists every attribute, key first, in column order.
	Attributes []Attribute

	// Unique lists composite unique keys used for merge-or-create.
	Unique [][]string
}

// Columns returns the column names in declaration order.
func (n NodeType) Columns() []string {
	cols := make([]string, len(n.Attributes))
	for i, a := range n.Attributes {
		cols[i] = a.Name
	}
	return cols
}

// Attribute looks up an attribute by name.
func (n NodeType) Attribute(name string) (Attribute, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Timestamped reports whether the store assigns created_at for this type.
func (n NodeType) Timestamped() bool {
	_, ok := n.Attribute(CreatedAt)
	return ok
}

// RelationshipType declares one directed relationship type.
type RelationshipType struct {
	Type RelType
	From NodeLabel
	To   NodeLabel

	// Weight names the meaning of the numeric weight column ("confidence",
	// "severity", "similarity"...). Empty when the weight is unused.
	Weight string
}

var nodeTypes = []NodeType{
	{
		Label: Customer,
		Table: "customers",
		Key:   "customer_id",
		Attributes: []Attribute{
			{Name: "customer_id", Kind: KindString, Required: true},
			{Name: "profile_type", Kind: KindString},
			{Name: "risk_level", Kind: KindString},
			{Name: CreatedAt, Kind: KindTime},
		},
	},
	{
		Label: Transcript,
		Table: "transcripts",
		Key:   "transcript_id",
		Attributes: []Attribute{
			{Name: "transcript_id", Kind: KindString, Required: true},
			{Name: "customer_id", Kind: KindString},
			{Name: "topic", Kind: KindString},
			{Name: "message_count", Kind: KindInt},
			{Name: CreatedAt, Kind: KindTime},
		},
	},
	{
		Label: Analysis,
		Table: "analyses",
		Key:   "analysis_id",
		Attributes: []Attribute{
			{Name: "analysis_id", Kind: KindString, Required: true},
			{Name: "primary_intent", Kind: KindString},
			{Name: "urgency_level", Kind: KindString},
			{Name: "confidence_score", Kind: KindFloat},
			{Name: "issue_resolved", Kind: KindBool},
			{Name: "escalation_needed", Kind: KindBool},
			{Name: CreatedAt, Kind: KindTime},
		},
	},
	{
		Label: RiskPattern,
		Table: "risk_patterns",
		Key:   "pattern_id",
		Attributes: []Attribute{
			{Name: "pattern_id", Kind: KindString, Required: true},
			{Name: "pattern_type", Kind: KindString, Required: true},
			{Name: "description", Kind: KindString, Required: true},
			{Name: "risk_score", Kind: KindFloat},
			{Name: "frequency", Kind: KindInt},
		},
		Unique: [][]string{{"pattern_type", "description"}},
	},
	{
		Label: ComplianceFlag,
		Table: "compliance_flags",
		Key:   "flag_id",
		Attributes: []Attribute{
			{Name: "flag_id", Kind: KindString, Required: true},
			{Name: "flag_type", Kind: KindString, Required: true},
			{Name: "description", Kind: KindString, Required: true},
			{Name: "severity", Kind: KindFloat},
		},
		Unique: [][]string{{"flag_type", "description"}},
	},
	{
		Label: Plan,
		Table: "plans",
		Key:   "plan_id",
		Attributes: []Attribute{
			{Name: "plan_id", Kind: KindString, Required: true},
			{Name: "risk_level", Kind: KindString},
			{Name: "approval_route", Kind: KindString},
			{Name: "status", Kind: KindString},
			{Name: "action_item_count", Kind: KindInt},
			{Name: CreatedAt, Kind: KindTime},
		},
	},
	{
		Label: Workflow,
		Table: "workflows",
		Key:   "workflow_id",
		Attributes: []Attribute{
			{Name: "workflow_id", Kind: KindString, Required: true},
			{Name: "workflow_type", Kind: KindString, Required: true},
			{Name: "action_item", Kind: KindString},
			{Name: "priority", Kind: KindString},
			{Name: "risk_level", Kind: KindString},
			{Name: "status", Kind: KindString},
			{Name: CreatedAt, Kind: KindTime},
		},
	},
	{
		Label: WorkflowStep,
		Table: "workflow_steps",
		Key:   "step_id",
		Attributes: []Attribute{
			{Name: "step_id", Kind: KindString, Required: true},
			{Name: "step_number", Kind: KindInt},
			{Name: "action", Kind: KindString},
			{Name: "tool_needed", Kind: KindString},
			{Name: "details", Kind: KindString},
			{Name: CreatedAt, Kind: KindTime},
		},
	},
	{
		Label: Execution,
		Table: "executions",
		Key:   "execution_id",
		Attributes: []Attribute{
			{Name: "execution_id", Kind: KindString, Required: true},
			{Name: "status", Kind: KindString},
			{Name: "executed_by", Kind: KindString},
			{Name: "steps_completed", Kind: KindInt},
			{Name: "error_message", Kind: KindString},
			{Name: CreatedAt, Kind: KindTime},
		},
	},
}

var relationshipTypes = []RelationshipType{
	{Type: HadCall, From: Customer, To: Transcript},
	{Type: GeneratedAnalysis, From: Transcript, To: Analysis},
	{Type: HasRiskPattern, From: Analysis, To: RiskPattern, Weight: "confidence"},
	{Type: HasComplianceFlag, From: Analysis, To: ComplianceFlag, Weight: "severity"},
	{Type: SimilarTo, From: Customer, To: Customer, Weight: "similarity"},
	{Type: RequiresEscalation, From: Analysis, To: Analysis},
	{Type: GeneratedPlan, From: Analysis, To: Plan},
	{Type: GeneratedWorkflow, From: Plan, To: Workflow},
	{Type: AnalysisWorkflow, From: Analysis, To: Workflow},
	{Type: HasStep, From: Workflow, To: WorkflowStep, Weight: "step_number"},
	{Type: HasExecution, From: Workflow, To: Execution},
}

// Nodes returns every declared node type in declaration order.
func Nodes() []NodeType {
	out := make([]NodeType, len(nodeTypes))
	copy(out, nodeTypes)
	return out
}

// Relationships returns every declared relationship type in declaration order.
func Relationships() []RelationshipType {
	out := make([]RelationshipType, len(relationshipTypes))
	copy(out, relationshipTypes)
	return out
}

// Node returns the declaration for label.
func Node(label NodeLabel) (NodeType, bool) {
	for _, n := range nodeTypes {
		if n.Label == label {
			return n, true
		}
	}
	return NodeType{}, false
}

// MustNode is Node for labels known at compile time. It panics on an undeclared label.
func MustNode(label NodeLabel) NodeType {
	n, ok := Node(label)
	if !ok {
		panic(fmt.Sprintf("schema: undeclared node label %q", label))
	}
	return n
}

// NodeTypeForTable returns the declaration stored in table.
func NodeTypeForTable(table string) (NodeType, bool) {
	for _, n := range nodeTypes {
		if n.Table == table {
			return n, true
		}
	}
	return NodeType{}, false
}

// Relationship returns the declaration for t.
func Relationship(t RelType) (RelationshipType, bool) {
	for _, r := range relationshipTypes {
		if r.Type == t {
			return r, true
		}
	}
	return RelationshipType{}, false
}

// Outgoing returns the relationship types whose source is label.
func Outgoing(label NodeLabel) []RelationshipType {
	var out []RelationshipType
	for _, r := range relationshipTypes {
		if r.From == label {
			out = append(out, r)
		}
	}
	return out
}

// Incoming returns the relationship types whose target is label.
func Incoming(label NodeLabel) []RelationshipType {
	var out []RelationshipType
	for _, r := range relationshipTypes {
		if r.To == label {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks the declaration is self-consistent.
func Validate() error {
	seenLabels := make(map[NodeLabel]bool)
	seenTables := make(map[string]bool)
	for _, n := range nodeTypes {
		if seenLabels[n.Label] {
			return fmt.Errorf("duplicate node label %q", n.Label)
		}
		if seenTables[n.Table] || n.Table == RelationshipsTable {
			return fmt.Errorf("duplicate table %q", n.Table)
		}
		seenLabels[n.Label] = true
		seenTables[n.Table] = true

		if len(n.Attributes) == 0 || n.Attributes[0].Name != n.Key {
			return fmt.Errorf("node %s: key %q must be the first attribute", n.Label, n.Key)
		}
		for _, u := range n.Unique {
			for _, col := range u {
				if _, ok := n.Attribute(col); !ok {
					return fmt.Errorf("node %s: unique column %q is not an attribute", n.Label, col)
				}
			}
		}
	}

	seenRels := make(map[RelType]bool)
	for _, r := range relationshipTypes {
		if seenRels[r.Type] {
			return fmt.Errorf("duplicate relationship type %q", r.Type)
		}
		seenRels[r.Type] = true
		if !seenLabels[r.From] {
			return fmt.Errorf("relationship %s: unknown source %q", r.Type, r.From)
		}
		if !seenLabels[r.To] {
			return fmt.Errorf("relationship %s: unknown target %q", r.Type, r.To)
		}
	}
	return nil
}
