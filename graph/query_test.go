package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/schema"
)

func TestGetHighRiskClusters(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for _, p := range []RiskPatternInput{
		{PatternType: "churn_risk", Description: "High churn risk", RiskScore: 0.3},
		{PatternType: "complaint_risk", Description: "High complaint risk", RiskScore: 0.6},
		{PatternType: "delinquency_risk", Description: "High delinquency risk", RiskScore: 0.8},
	} {
		_, err := store.UpsertRiskPattern(ctx, p)
		require.NoError(t, err)
	}

	t.Run("threshold", func(t *testing.T) {
		clusters, err := store.GetHighRiskClusters(ctx, 0.7)
		require.NoError(t, err)
		require.Len(t, clusters, 1)
		assert.Equal(t, "delinquency_risk", clusters[0].PatternType)
		assert.Equal(t, 0.8, clusters[0].RiskScore)
		assert.Equal(t, 0, clusters[0].AnalysisCount)
		assert.Empty(t, clusters[0].AnalysisIDs)
	})

	t.Run("linked analyses", func(t *testing.T) {
		_, err := store.AddTranscript(ctx, TranscriptRecord{TranscriptID: "CALL_1"})
		require.NoError(t, err)
		for _, id := range []string{"ANALYSIS_1", "ANALYSIS_2"} {
			_, err := store.AddAnalysisWithRelationships(ctx, AnalysisRecord{
				AnalysisID:   id,
				TranscriptID: "CALL_1",
				RiskScores:   map[string]float64{"delinquency_risk": 0.75},
			})
			require.NoError(t, err)
		}

		clusters, err := store.GetHighRiskClusters(ctx, 0.5)
		require.NoError(t, err)
		require.Len(t, clusters, 2)

		assert.Equal(t, "delinquency_risk", clusters[0].PatternType)
		assert.Equal(t, 2, clusters[0].AnalysisCount)
		assert.Equal(t, []string{"ANALYSIS_1", "ANALYSIS_2"}, clusters[0].AnalysisIDs)
		assert.Equal(t, 3, clusters[0].Frequency)

		assert.Equal(t, "complaint_risk", clusters[1].PatternType)
		assert.Equal(t, 0, clusters[1].AnalysisCount)
	})
}

func TestFindSimilarRiskPatterns(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.AddTranscript(ctx, TranscriptRecord{TranscriptID: "CALL_1"})
	require.NoError(t, err)

	analyses := []AnalysisRecord{
		{AnalysisID: "A_SELF", RiskScores: map[string]float64{"delinquency_risk": 0.8, "churn_risk": 0.7}},
		{AnalysisID: "A_PEER", PrimaryIntent: "hardship", UrgencyLevel: "high", ConfidenceScore: 0.9,
			RiskScores: map[string]float64{"delinquency_risk": 0.6}},
		{AnalysisID: "A_BOTH", PrimaryIntent: "refinance", ConfidenceScore: 0.5,
			RiskScores: map[string]float64{"delinquency_risk": 0.9, "churn_risk": 0.9}},
		{AnalysisID: "A_NONE", RiskScores: map[string]float64{"complaint_risk": 0.9}},
	}
	for _, a := range analyses {
		a.TranscriptID = "CALL_1"
		_, err := store.AddAnalysisWithRelationships(ctx, a)
		require.NoError(t, err)
	}

	matches, err := store.FindSimilarRiskPatterns(ctx, "A_SELF", 0)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	for _, m := range matches {
		assert.NotEqual(t, "A_SELF", m.AnalysisID)
		assert.NotEqual(t, "A_NONE", m.AnalysisID)
	}

	// delinquency_risk ends at 0.9, churn_risk at 0.9 too; ties break on peer confidence.
	assert.Equal(t, "A_PEER", matches[0].AnalysisID)
	assert.Equal(t, "hardship", matches[0].PrimaryIntent)
	assert.Equal(t, "high", matches[0].UrgencyLevel)

	limited, err := store.FindSimilarRiskPatterns(ctx, "A_SELF", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := store.FindSimilarRiskPatterns(ctx, "A_NONE", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetCustomerRecommendations(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"CUST_ME", "CUST_NEAR", "CUST_FAR", "CUST_STRANGER"} {
		_, err := store.AddCustomer(ctx, CustomerRecord{CustomerID: id})
		require.NoError(t, err)
	}
	require.NoError(t, store.LinkSimilarCustomers(ctx, "CUST_ME", "CUST_NEAR", 0.9))
	// Matched in either direction.
	require.NoError(t, store.LinkSimilarCustomers(ctx, "CUST_FAR", "CUST_ME", 0.4))

	calls := []struct {
		customer, call, analysis, intent string
		resolved                         bool
	}{
		{"CUST_NEAR", "CALL_N", "A_N", "payment_plan", true},
		{"CUST_FAR", "CALL_F", "A_F", "forbearance", false},
		{"CUST_STRANGER", "CALL_S", "A_S", "refinance", true},
	}
	for _, c := range calls {
		_, err := store.AddTranscript(ctx, TranscriptRecord{TranscriptID: c.call, CustomerID: c.customer})
		require.NoError(t, err)
		_, err = store.AddAnalysisWithRelationships(ctx, AnalysisRecord{
			AnalysisID:    c.analysis,
			TranscriptID:  c.call,
			PrimaryIntent: c.intent,
			IssueResolved: c.resolved,
			RiskScores:    map[string]float64{"delinquency_risk": 0.8},
		})
		require.NoError(t, err)
	}

	recs, err := store.GetCustomerRecommendations(ctx, "CUST_ME")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "CUST_NEAR", recs[0].PeerCustomerID)
	assert.Equal(t, "payment_plan", recs[0].RecommendedAction)
	assert.Equal(t, "delinquency_risk", recs[0].BasisPattern)
	assert.Equal(t, "High delinquency risk", recs[0].PatternDescription)
	assert.True(t, recs[0].Resolved)
	assert.Equal(t, 0.9, recs[0].Similarity)

	assert.Equal(t, "CUST_FAR", recs[1].PeerCustomerID)
	assert.False(t, recs[1].Resolved)

	empty, err := store.GetCustomerRecommendations(ctx, "CUST_STRANGER")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// seedPipeline writes T -> A -> P -> W1, W2 in that order, plus an older analysis.
func seedPipeline(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.AddCustomer(ctx, CustomerRecord{CustomerID: "CUST_1"})
	require.NoError(t, err)
	_, err = store.AddTranscript(ctx, TranscriptRecord{TranscriptID: "CALL_T", CustomerID: "CUST_1"})
	require.NoError(t, err)
	_, err = store.AddAnalysisWithRelationships(ctx, AnalysisRecord{AnalysisID: "A_OLD", TranscriptID: "CALL_T"})
	require.NoError(t, err)
	_, err = store.AddAnalysisWithRelationships(ctx, AnalysisRecord{AnalysisID: "A", TranscriptID: "CALL_T"})
	require.NoError(t, err)
	_, err = store.AddPlanWithRelationships(ctx, PlanRecord{PlanID: "P", AnalysisID: "A"})
	require.NoError(t, err)
	_, err = store.AddWorkflowWithSteps(ctx, WorkflowRecord{
		WorkflowID: "W1", WorkflowType: "BORROWER", PlanID: "P", AnalysisID: "A",
		Steps: []WorkflowStepRecord{{Action: "call"}, {Action: "email"}},
	})
	require.NoError(t, err)
	_, err = store.AddWorkflowWithSteps(ctx, WorkflowRecord{
		WorkflowID: "W2", WorkflowType: "ADVISOR", AnalysisID: "A",
	})
	require.NoError(t, err)
}

func TestGetPipelineForTranscript(t *testing.T) {
	ctx := context.Background()

	t.Run("analysis with two workflows", func(t *testing.T) {
		store, _ := setupTestStore(t)
		_, err := store.AddTranscript(ctx, TranscriptRecord{TranscriptID: "T"})
		require.NoError(t, err)
		_, err = store.AddAnalysisWithRelationships(ctx, AnalysisRecord{AnalysisID: "A1", TranscriptID: "T"})
		require.NoError(t, err)
		for _, id := range []string{"W1", "W2"} {
			_, err = store.AddWorkflowWithSteps(ctx, WorkflowRecord{WorkflowID: id, WorkflowType: "BORROWER", AnalysisID: "A1"})
			require.NoError(t, err)
		}

		p, err := store.GetPipelineForTranscript(ctx, "T")
		require.NoError(t, err)
		assert.Equal(t, "A1", p.AnalysisID)
		assert.Equal(t, []string{"W1", "W2"}, p.WorkflowIDs)
		assert.Equal(t, "W1", p.ActiveWorkflowID)
		assert.Empty(t, p.PlanID)
		assert.Empty(t, p.CustomerID)
	})

	t.Run("full pipeline", func(t *testing.T) {
		store, _ := setupTestStore(t)
		seedPipeline(t, store)

		p, err := store.GetPipelineForTranscript(ctx, "CALL_T")
		require.NoError(t, err)
		assert.Equal(t, "CALL_T", p.TranscriptID)
		assert.Equal(t, "CUST_1", p.CustomerID)
		assert.Equal(t, "A", p.AnalysisID, "newest analysis")
		assert.Equal(t, []string{"A", "A_OLD"}, p.AnalysisIDs)
		assert.Equal(t, "P", p.PlanID)
		assert.Equal(t, []string{"W1", "W2"}, p.WorkflowIDs)
		assert.Equal(t, "W1", p.ActiveWorkflowID)
	})

	t.Run("transcript without analysis", func(t *testing.T) {
		store, _ := setupTestStore(t)
		_, err := store.AddTranscript(ctx, TranscriptRecord{TranscriptID: "LONELY"})
		require.NoError(t, err)

		p, err := store.GetPipelineForTranscript(ctx, "LONELY")
		require.NoError(t, err)
		assert.Empty(t, p.AnalysisID)
		assert.Empty(t, p.WorkflowIDs)
	})

	t.Run("missing transcript", func(t *testing.T) {
		store, _ := setupTestStore(t)
		_, err := store.GetPipelineForTranscript(ctx, "NOPE")
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})
}

func TestGetWorkflowsForTranscript(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	seedPipeline(t, store)

	workflows, err := store.GetWorkflowsForTranscript(ctx, "CALL_T")
	require.NoError(t, err)
	require.Len(t, workflows, 2, "W1 is linked from plan and analysis but listed once")

	assert.Equal(t, "W1", workflows[0].WorkflowID)
	assert.Equal(t, "P", workflows[0].PlanID)
	assert.Equal(t, "A", workflows[0].AnalysisID)
	assert.Equal(t, 2, workflows[0].StepCount)
	assert.Equal(t, "BORROWER", workflows[0].WorkflowType)

	assert.Equal(t, "W2", workflows[1].WorkflowID)
	assert.Empty(t, workflows[1].PlanID)
	assert.Equal(t, 0, workflows[1].StepCount)

	none, err := store.GetWorkflowsForTranscript(ctx, "NOPE")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLatestTranscript(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.LatestTranscript(ctx, "")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = store.AddCustomer(ctx, CustomerRecord{CustomerID: "CUST_1"})
	require.NoError(t, err)
	for _, tr := range []TranscriptRecord{
		{TranscriptID: "CALL_1", CustomerID: "CUST_1"},
		{TranscriptID: "CALL_2", CustomerID: "CUST_1"},
		{TranscriptID: "CALL_3", CustomerID: "CUST_2"},
	} {
		_, err := store.AddTranscript(ctx, tr)
		require.NoError(t, err)
	}

	id, err := store.LatestTranscript(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "CALL_3", id)

	id, err = store.LatestTranscript(ctx, "CUST_1")
	require.NoError(t, err)
	assert.Equal(t, "CALL_2", id)

	_, err = store.LatestTranscript(ctx, "CUST_9")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestGetGraphStatistics(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	seedPipeline(t, store)

	st := stats(t, store)
	assert.Equal(t, int64(1), st.NodeCounts[schema.Customer])
	assert.Equal(t, int64(2), st.NodeCounts[schema.Analysis])
	assert.Equal(t, int64(2), st.NodeCounts[schema.Workflow])
	assert.Equal(t, int64(2), st.NodeCounts[schema.WorkflowStep])
	assert.Equal(t, int64(9), st.TotalNodes)
	assert.Len(t, st.NodeCounts, len(schema.Nodes()))
	assert.Len(t, st.RelationshipCounts, len(schema.Relationships()))

	var sum int64
	for _, n := range st.RelationshipCounts {
		sum += n
	}
	assert.Equal(t, st.Relationships, sum)

	t.Run("broken table propagates", func(t *testing.T) {
		_, err := store.ExecuteStatement(ctx, "DROP TABLE plans", nil)
		require.NoError(t, err)

		_, err = store.GetGraphStatistics(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, &StoreError{Kind: KindQuery})

		partial, err := store.GetGraphStatisticsBestEffort(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Plan")
		assert.Equal(t, int64(2), partial.NodeCounts[schema.Analysis])
		_, counted := partial.NodeCounts[schema.Plan]
		assert.False(t, counted)
	})
}
