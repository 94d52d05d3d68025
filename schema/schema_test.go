package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Validate())
}

func TestNode(t *testing.T) {
	tests := []struct {
		label NodeLabel
		table string
		key   string
	}{
		{Customer, "customers", "customer_id"},
		{Transcript, "transcripts", "transcript_id"},
		{Analysis, "analyses", "analysis_id"},
		{RiskPattern, "risk_patterns", "pattern_id"},
		{ComplianceFlag, "compliance_flags", "flag_id"},
		{Plan, "plans", "plan_id"},
		{Workflow, "workflows", "workflow_id"},
		{WorkflowStep, "workflow_steps", "step_id"},
		{Execution, "executions", "execution_id"},
	}

	for _, tt := range tests {
		t.Run(string(tt.label), func(t *testing.T) {
			n, ok := Node(tt.label)
			require.True(t, ok)
			assert.Equal(t, tt.table, n.Table)
			assert.Equal(t, tt.key, n.Key)
			assert.Equal(t, tt.key, n.Columns()[0])

			byTable, ok := NodeTypeForTable(tt.table)
			require.True(t, ok)
			assert.Equal(t, tt.label, byTable.Label)
		})
	}

	_, ok := Node("Unknown")
	assert.False(t, ok)
	_, ok = NodeTypeForTable("relationships")
	assert.False(t, ok)
	assert.Panics(t, func() { MustNode("Unknown") })
}

func TestTimestamped(t *testing.T) {
	assert.True(t, MustNode(Customer).Timestamped())
	assert.True(t, MustNode(Analysis).Timestamped())
	assert.False(t, MustNode(RiskPattern).Timestamped())
	assert.False(t, MustNode(ComplianceFlag).Timestamped())
}

func TestRelationshipEndpoints(t *testing.T) {
	r, ok := Relationship(GeneratedAnalysis)
	require.True(t, ok)
	assert.Equal(t, Transcript, r.From)
	assert.Equal(t, Analysis, r.To)

	r, ok = Relationship(SimilarTo)
	require.True(t, ok)
	assert.Equal(t, Customer, r.From)
	assert.Equal(t, Customer, r.To)
	assert.Equal(t, "similarity", r.Weight)

	_, ok = Relationship("NOPE")
	assert.False(t, ok)
}

func TestOutgoingIncoming(t *testing.T) {
	var out []RelType
	for _, r := range Outgoing(Analysis) {
		out = append(out, r.Type)
	}
	assert.ElementsMatch(t, []RelType{
		HasRiskPattern, HasComplianceFlag, RequiresEscalation, GeneratedPlan, AnalysisWorkflow,
	}, out)

	var in []RelType
	for _, r := range Incoming(Workflow) {
		in = append(in, r.Type)
	}
	assert.ElementsMatch(t, []RelType{GeneratedWorkflow, AnalysisWorkflow}, in)
}

func TestDDL(t *testing.T) {
	stmts := DDL()
	require.NotEmpty(t, stmts)

	joined := strings.Join(stmts, ";\n")
	for _, n := range Nodes() {
		assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+n.Table+" (")
	}
	assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS relationships (")
	assert.Contains(t, joined, "UNIQUE (pattern_type, description)")
	assert.Contains(t, joined, "UNIQUE (flag_type, description)")
	assert.Contains(t, joined, "customer_id TEXT NOT NULL PRIMARY KEY")

	for _, s := range stmts {
		assert.Contains(t, s, "IF NOT EXISTS", "statement must be idempotent: %s", s)
	}
}

func TestAttrKindString(t *testing.T) {
	assert.Equal(t, "string", KindString.String())
	assert.Equal(t, "time", KindTime.String())
	assert.Equal(t, "AttrKind(42)", AttrKind(42).String())
}
