package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/schema"
)

func TestClearGraph(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	seedPipeline(t, store)

	ok, err := store.ClearGraph(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	st := stats(t, store)
	assert.Equal(t, int64(0), st.TotalNodes)
	assert.Equal(t, int64(0), st.Relationships)
	for label, n := range st.NodeCounts {
		assert.Equal(t, int64(0), n, label)
	}

	// Reusing an id is a fresh create, not a collision.
	ok, err = store.AddTranscript(ctx, TranscriptRecord{TranscriptID: "CALL_T", Topic: "new"})
	require.NoError(t, err)
	assert.True(t, ok)

	node, err := store.GetNode(ctx, schema.Transcript, "CALL_T")
	require.NoError(t, err)
	assert.Equal(t, "new", node.String("topic"))
}

func TestDeleteCustomerCascade(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.AddCustomer(ctx, CustomerRecord{CustomerID: "CUST_1"})
	require.NoError(t, err)
	_, err = store.AddTranscript(ctx, TranscriptRecord{TranscriptID: "CALL_1", CustomerID: "CUST_1"})
	require.NoError(t, err)
	_, err = store.AddAnalysisWithRelationships(ctx, AnalysisRecord{
		AnalysisID:      "A_1",
		TranscriptID:    "CALL_1",
		RiskScores:      map[string]float64{"delinquency_risk": 0.8},
		ComplianceFlags: []string{"potential elder abuse"},
	})
	require.NoError(t, err)
	_, err = store.AddPlanWithRelationships(ctx, PlanRecord{PlanID: "P_1", AnalysisID: "A_1"})
	require.NoError(t, err)
	_, err = store.AddWorkflowWithSteps(ctx, WorkflowRecord{
		WorkflowID: "W_1", WorkflowType: "BORROWER", PlanID: "P_1",
		Steps: []WorkflowStepRecord{{Action: "call"}},
	})
	require.NoError(t, err)
	_, err = store.AddExecutionWithRelationships(ctx, ExecutionRecord{ExecutionID: "E_1", WorkflowID: "W_1"})
	require.NoError(t, err)

	patterns, err := store.GetHighRiskClusters(ctx, 0)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	patternID := patterns[0].PatternID

	// An unrelated customer keeps its shared pattern alive only if linked.
	_, err = store.AddCustomer(ctx, CustomerRecord{CustomerID: "CUST_2"})
	require.NoError(t, err)

	deleted, err := store.DeleteCustomerCascade(ctx, "CUST_1")
	require.NoError(t, err)
	// customer, transcript, analysis, plan, workflow, step, execution, pattern, flag
	assert.Equal(t, 9, deleted)

	for _, n := range []struct {
		label schema.NodeLabel
		id    string
	}{
		{schema.Customer, "CUST_1"},
		{schema.Transcript, "CALL_1"},
		{schema.Analysis, "A_1"},
		{schema.Plan, "P_1"},
		{schema.Workflow, "W_1"},
		{schema.WorkflowStep, StepID("W_1", 1)},
		{schema.Execution, "E_1"},
		{schema.RiskPattern, patternID},
	} {
		_, err := store.GetNode(ctx, n.label, n.id)
		assert.ErrorIs(t, err, ErrNodeNotFound, "%s %s", n.label, n.id)
	}

	st := stats(t, store)
	assert.Equal(t, int64(1), st.TotalNodes)
	assert.Equal(t, int64(0), st.Relationships)

	t.Run("missing customer", func(t *testing.T) {
		n, err := store.DeleteCustomerCascade(ctx, "CUST_NOPE")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestDeleteAnalysisNode(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.AddTranscript(ctx, TranscriptRecord{TranscriptID: "CALL_1"})
	require.NoError(t, err)
	_, err = store.AddAnalysisWithRelationships(ctx, AnalysisRecord{
		AnalysisID: "A_1", TranscriptID: "CALL_1",
		RiskScores: map[string]float64{"delinquency_risk": 0.8, "churn_risk": 0.9},
	})
	require.NoError(t, err)
	_, err = store.AddAnalysisWithRelationships(ctx, AnalysisRecord{
		AnalysisID: "A_2", TranscriptID: "CALL_1",
		RiskScores: map[string]float64{"delinquency_risk": 0.7},
	})
	require.NoError(t, err)
	_, err = store.UpsertRiskPattern(ctx, RiskPatternInput{PatternType: "manual", Description: "Seeded", RiskScore: 0.4})
	require.NoError(t, err)

	ok, err := store.DeleteAnalysisNode(ctx, "A_1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.GetNode(ctx, schema.Analysis, "A_1")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	clusters, err := store.GetHighRiskClusters(ctx, 0)
	require.NoError(t, err)
	var types []string
	for _, c := range clusters {
		types = append(types, c.PatternType)
	}
	// churn_risk was only linked to A_1; the seeded pattern was never linked.
	assert.ElementsMatch(t, []string{"delinquency_risk", "manual"}, types)

	ok, err = store.DeleteAnalysisNode(ctx, "A_1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int64(1), stats(t, store).RelationshipCounts[schema.GeneratedAnalysis])
}

func TestPruneOldData(t *testing.T) {
	store, clock := setupTestStore(t)
	ctx := context.Background()

	_, err := store.AddCustomer(ctx, CustomerRecord{CustomerID: "CUST_1"})
	require.NoError(t, err)
	_, err = store.AddTranscript(ctx, TranscriptRecord{TranscriptID: "OLD_CALL", CustomerID: "CUST_1"})
	require.NoError(t, err)
	_, err = store.AddAnalysisWithRelationships(ctx, AnalysisRecord{
		AnalysisID: "OLD_A", TranscriptID: "OLD_CALL",
		RiskScores: map[string]float64{"churn_risk": 0.9},
	})
	require.NoError(t, err)

	clock.Advance(45 * 24 * time.Hour)

	_, err = store.AddTranscript(ctx, TranscriptRecord{TranscriptID: "NEW_CALL", CustomerID: "CUST_1"})
	require.NoError(t, err)

	n, err := store.PruneOldData(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "old call, its analysis and the orphaned pattern")

	_, err = store.GetNode(ctx, schema.Transcript, "OLD_CALL")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = store.GetNode(ctx, schema.Transcript, "NEW_CALL")
	assert.NoError(t, err)
	_, err = store.GetNode(ctx, schema.Customer, "CUST_1")
	assert.NoError(t, err)

	assert.Equal(t, int64(1), stats(t, store).RelationshipCounts[schema.HadCall])

	_, err = store.PruneOldData(ctx, -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
