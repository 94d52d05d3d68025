package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/schema"
)

func TestValueCoercion(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		wantStr   string
		wantInt   int64
		wantFloat float64
		wantBool  bool
	}{
		{name: "string", value: "hello", wantStr: "hello"},
		{name: "numeric string", value: "42", wantStr: "42", wantInt: 42, wantFloat: 42},
		{name: "bytes", value: []byte("3.5"), wantStr: "3.5", wantFloat: 3.5},
		{name: "int64", value: int64(7), wantStr: "7", wantInt: 7, wantFloat: 7, wantBool: true},
		{name: "zero int64", value: int64(0), wantStr: "0"},
		{name: "float64", value: 0.25, wantStr: "0.25", wantFloat: 0.25},
		{name: "bool", value: true, wantStr: "true", wantInt: 1, wantBool: true},
		{name: "bool string", value: "true", wantStr: "true", wantBool: true},
		{name: "nil", value: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStr, stringValue(tt.value))
			assert.Equal(t, tt.wantInt, intValue(tt.value))
			assert.InDelta(t, tt.wantFloat, floatValue(tt.value), 1e-9)
			assert.Equal(t, tt.wantBool, boolValue(tt.value))
		})
	}
}

func TestRecordAccessors(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.AddTranscript(ctx, TranscriptRecord{TranscriptID: "CALL_1", Topic: "escrow", MessageCount: 12})
	require.NoError(t, err)
	_, err = store.AddAnalysisWithRelationships(ctx, AnalysisRecord{
		AnalysisID: "A_1", TranscriptID: "CALL_1", ConfidenceScore: 0.82, IssueResolved: true,
	})
	require.NoError(t, err)

	rows, err := store.ExecuteQuery(ctx, `
		SELECT t.topic, t.message_count, a.confidence_score, a.issue_resolved
		FROM transcripts t JOIN analyses a ON a.analysis_id = :analysis
		WHERE t.transcript_id = :transcript`,
		map[string]any{"analysis": "A_1", "transcript": "CALL_1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "escrow", r.String("topic"))
	assert.Equal(t, int64(12), r.Int("message_count"))
	assert.InDelta(t, 0.82, r.Float("confidence_score"), 1e-9)
	assert.True(t, r.Bool("issue_resolved"))
	assert.Empty(t, r.String("missing"))

	node, err := store.GetNode(ctx, schema.Analysis, "A_1")
	require.NoError(t, err)
	assert.True(t, node.Bool("issue_resolved"))
	assert.InDelta(t, 0.82, node.Float("confidence_score"), 1e-9)
	assert.False(t, node.Bool("escalation_needed"))

	tnode, err := store.GetNode(ctx, schema.Transcript, "CALL_1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), tnode.Int("message_count"))
}
