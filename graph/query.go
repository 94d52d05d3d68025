package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultSimilarLimit bounds FindSimilarRiskPatterns when the caller passes no limit.
const DefaultSimilarLimit = 10

// RiskCluster is one high-risk pattern and the analyses that share it.
type RiskCluster struct {
	PatternID     string   `json:"pattern_id"`
	PatternType   string   `json:"pattern_type"`
	Description   string   `json:"description"`
	RiskScore     float64  `json:"risk_score"`
	Frequency     int      `json:"frequency"`
	AnalysisCount int      `json:"analysis_count"`
	AnalysisIDs   []string `json:"analysis_ids"`
}

// SimilarAnalysis is a peer analysis sharing a risk pattern with the queried one.
type SimilarAnalysis struct {
	AnalysisID      string  `json:"analysis_id"`
	PatternType     string  `json:"pattern_type"`
	RiskScore       float64 `json:"risk_score"`
	PrimaryIntent   string  `json:"primary_intent"`
	UrgencyLevel    string  `json:"urgency_level"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Recommendation surfaces what worked for a similar customer.
type Recommendation struct {
	PeerCustomerID     string  `json:"peer_customer_id"`
	Similarity         float64 `json:"similarity"`
	AnalysisID         string  `json:"analysis_id"`
	RecommendedAction  string  `json:"recommended_action"`
	BasisPattern       string  `json:"basis_pattern"`
	PatternDescription string  `json:"pattern_description"`
	Resolved           bool    `json:"resolved"`
}

// Pipeline bundles the ids derived from one transcript.
//
// Analyses and plans are ordered newest first by write time; AnalysisID and PlanID are
// the newest of each. Workflows are kept in creation order and the first is active.
type Pipeline struct {
	TranscriptID     string   `json:"transcript_id"`
	CustomerID       string   `json:"customer_id,omitempty"`
	AnalysisID       string   `json:"analysis_id,omitempty"`
	AnalysisIDs      []string `json:"analysis_ids,omitempty"`
	PlanID           string   `json:"plan_id,omitempty"`
	PlanIDs          []string `json:"plan_ids,omitempty"`
	WorkflowIDs      []string `json:"workflow_ids,omitempty"`
	ActiveWorkflowID string   `json:"active_workflow_id,omitempty"`
}

// Workflow is a workflow reachable from a transcript.
type Workflow struct {
	WorkflowID   string    `json:"workflow_id"`
	WorkflowType string    `json:"workflow_type"`
	ActionItem   string    `json:"action_item"`
	Priority     string    `json:"priority"`
	RiskLevel    string    `json:"risk_level"`
	Status       string    `json:"status"`
	PlanID       string    `json:"plan_id,omitempty"`
	AnalysisID   string    `json:"analysis_id"`
	StepCount    int       `json:"step_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// GetHighRiskClusters returns the risk patterns scoring at least threshold, each with
// the analyses linked to it, ordered by risk score descending.
func (s *Store) GetHighRiskClusters(ctx context.Context, threshold float64) ([]RiskCluster, error) {
	const op = "GetHighRiskClusters"

	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		SELECT p.pattern_id, p.pattern_type, p.description,
			COALESCE(p.risk_score, 0), COALESCE(p.frequency, 0), r.from_id
		FROM risk_patterns p
		LEFT JOIN relationships r ON r.rel_type = 'HAS_RISK_PATTERN' AND r.to_id = p.pattern_id
		WHERE p.risk_score >= ?
		ORDER BY p.risk_score DESC, p.pattern_id, r.created_at, r.from_id`, threshold)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var clusters []RiskCluster
	for rows.Next() {
		var c RiskCluster
		var analysisID sql.NullString
		if err := rows.Scan(&c.PatternID, &c.PatternType, &c.Description, &c.RiskScore, &c.Frequency, &analysisID); err != nil {
			return nil, wrapErr(op, err)
		}
		if n := len(clusters); n == 0 || clusters[n-1].PatternID != c.PatternID {
			c.AnalysisIDs = []string{}
			clusters = append(clusters, c)
		}
		if analysisID.Valid {
			last := &clusters[len(clusters)-1]
			last.AnalysisIDs = append(last.AnalysisIDs, analysisID.String)
			last.AnalysisCount++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return clusters, nil
}

// FindSimilarRiskPatterns returns other analyses sharing at least one risk pattern with
// analysisID, one row per shared pattern, highest risk first. A limit of zero or less
// means DefaultSimilarLimit.
func (s *Store) FindSimilarRiskPatterns(ctx context.Context, analysisID string, limit int) ([]SimilarAnalysis, error) {
	const op = "FindSimilarRiskPatterns"

	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		SELECT o.analysis_id, p.pattern_type, COALESCE(p.risk_score, 0),
			COALESCE(o.primary_intent, ''), COALESCE(o.urgency_level, ''), COALESCE(o.confidence_score, 0)
		FROM relationships mine
		JOIN relationships theirs ON theirs.rel_type = mine.rel_type
			AND theirs.to_id = mine.to_id AND theirs.from_id <> mine.from_id
		JOIN risk_patterns p ON p.pattern_id = mine.to_id
		JOIN analyses o ON o.analysis_id = theirs.from_id
		WHERE mine.rel_type = 'HAS_RISK_PATTERN' AND mine.from_id = ?
		ORDER BY p.risk_score DESC, o.confidence_score DESC, o.analysis_id
		LIMIT ?`, analysisID, limit)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var out []SimilarAnalysis
	for rows.Next() {
		var m SimilarAnalysis
		if err := rows.Scan(&m.AnalysisID, &m.PatternType, &m.RiskScore, &m.PrimaryIntent, &m.UrgencyLevel, &m.ConfidenceScore); err != nil {
			return nil, wrapErr(op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}

// GetCustomerRecommendations follows SIMILAR_TO (in either direction) to peer
// customers, then their calls, analyses and risk patterns, and returns each peer
// analysis intent as a candidate action. Results are ordered by similarity, resolved
// outcomes first.
func (s *Store) GetCustomerRecommendations(ctx context.Context, customerID string) ([]Recommendation, error) {
	const op = "GetCustomerRecommendations"

	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		WITH peers(peer_id, similarity) AS (
			SELECT peer_id, MAX(similarity) FROM (
				SELECT to_id AS peer_id, COALESCE(weight, 0) AS similarity FROM relationships
				WHERE rel_type = 'SIMILAR_TO' AND from_id = :customer
				UNION ALL
				SELECT from_id, COALESCE(weight, 0) FROM relationships
				WHERE rel_type = 'SIMILAR_TO' AND to_id = :customer
			)
			WHERE peer_id <> :customer
			GROUP BY peer_id
		)
		SELECT peers.peer_id, peers.similarity, a.analysis_id,
			COALESCE(a.primary_intent, ''), rp.pattern_type, rp.description,
			COALESCE(a.issue_resolved, 0)
		FROM peers
		JOIN relationships hc ON hc.rel_type = 'HAD_CALL' AND hc.from_id = peers.peer_id
		JOIN relationships ga ON ga.rel_type = 'GENERATED_ANALYSIS' AND ga.from_id = hc.to_id
		JOIN analyses a ON a.analysis_id = ga.to_id
		JOIN relationships hr ON hr.rel_type = 'HAS_RISK_PATTERN' AND hr.from_id = a.analysis_id
		JOIN risk_patterns rp ON rp.pattern_id = hr.to_id
		ORDER BY peers.similarity DESC, a.issue_resolved DESC, rp.risk_score DESC,
			a.analysis_id, rp.pattern_type`,
		sql.Named("customer", customerID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var out []Recommendation
	for rows.Next() {
		var r Recommendation
		var resolved int64
		if err := rows.Scan(&r.PeerCustomerID, &r.Similarity, &r.AnalysisID, &r.RecommendedAction,
			&r.BasisPattern, &r.PatternDescription, &resolved); err != nil {
			return nil, wrapErr(op, err)
		}
		r.Resolved = resolved != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}

// transcriptSources derives, from :transcript, its analyses, their plans and every
// workflow generated from either.
const transcriptSources = `
	analyses_of(analysis_id) AS (
		SELECT to_id FROM relationships
		WHERE rel_type = 'GENERATED_ANALYSIS' AND from_id = :transcript
	),
	plans_of(plan_id, analysis_id) AS (
		SELECT r.to_id, r.from_id FROM relationships r
		JOIN analyses_of a ON a.analysis_id = r.from_id
		WHERE r.rel_type = 'GENERATED_PLAN'
	),
	workflows_of(workflow_id, plan_id, analysis_id) AS (
		SELECT r.to_id, '', r.from_id FROM relationships r
		JOIN analyses_of a ON a.analysis_id = r.from_id
		WHERE r.rel_type = 'ANALYSIS_WORKFLOW'
		UNION ALL
		SELECT r.to_id, p.plan_id, p.analysis_id FROM relationships r
		JOIN plans_of p ON p.plan_id = r.from_id
		WHERE r.rel_type = 'GENERATED_WORKFLOW'
	)`

// GetPipelineForTranscript derives the ids related to a transcript in one traversal.
// It returns ErrNodeNotFound when the transcript does not exist.
func (s *Store) GetPipelineForTranscript(ctx context.Context, transcriptID string) (*Pipeline, error) {
	const op = "GetPipelineForTranscript"

	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		WITH `+transcriptSources+`
		SELECT 'transcript' AS kind, t.transcript_id AS id,
			COALESCE(NULLIF(t.customer_id, ''),
				(SELECT from_id FROM relationships
				 WHERE rel_type = 'HAD_CALL' AND to_id = t.transcript_id
				 ORDER BY created_at LIMIT 1), '') AS customer,
			t.created_at AS ts, t.rowid AS rid
		FROM transcripts t WHERE t.transcript_id = :transcript
		UNION ALL
		SELECT 'analysis', a.analysis_id, '', a.created_at, a.rowid
		FROM analyses a WHERE a.analysis_id IN (SELECT analysis_id FROM analyses_of)
		UNION ALL
		SELECT 'plan', p.plan_id, '', p.created_at, p.rowid
		FROM plans p WHERE p.plan_id IN (SELECT plan_id FROM plans_of)
		UNION ALL
		SELECT 'workflow', w.workflow_id, '', w.created_at, w.rowid
		FROM workflows w WHERE w.workflow_id IN (SELECT workflow_id FROM workflows_of)
		ORDER BY ts, rid`,
		sql.Named("transcript", transcriptID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var p *Pipeline
	var analyses, plans []string
	var workflows []string
	for rows.Next() {
		var kind, id, customer string
		var ts, rid int64
		if err := rows.Scan(&kind, &id, &customer, &ts, &rid); err != nil {
			return nil, wrapErr(op, err)
		}
		switch kind {
		case "transcript":
			p = &Pipeline{TranscriptID: id, CustomerID: customer}
		case "analysis":
			analyses = append(analyses, id)
		case "plan":
			plans = append(plans, id)
		case "workflow":
			workflows = append(workflows, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: transcript %s", ErrNodeNotFound, transcriptID)
	}

	p.AnalysisIDs = newestFirst(analyses)
	p.PlanIDs = newestFirst(plans)
	p.WorkflowIDs = workflows
	if len(p.AnalysisIDs) > 0 {
		p.AnalysisID = p.AnalysisIDs[0]
	}
	if len(p.PlanIDs) > 0 {
		p.PlanID = p.PlanIDs[0]
	}
	if len(p.WorkflowIDs) > 0 {
		p.ActiveWorkflowID = p.WorkflowIDs[0]
	}
	return p, nil
}

func newestFirst(oldestFirst []string) []string {
	out := make([]string, len(oldestFirst))
	for i, id := range oldestFirst {
		out[len(oldestFirst)-1-i] = id
	}
	return out
}

// GetWorkflowsForTranscript returns the workflows reachable from a transcript in
// creation order. A workflow linked from both its plan and its analysis appears once.
func (s *Store) GetWorkflowsForTranscript(ctx context.Context, transcriptID string) ([]Workflow, error) {
	const op = "GetWorkflowsForTranscript"

	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		WITH `+transcriptSources+`
		SELECT w.workflow_id, w.workflow_type, COALESCE(w.action_item, ''),
			COALESCE(w.priority, ''), COALESCE(w.risk_level, ''), COALESCE(w.status, ''),
			src.plan_id, src.analysis_id, w.created_at,
			(SELECT COUNT(*) FROM relationships s
			 WHERE s.rel_type = 'HAS_STEP' AND s.from_id = w.workflow_id)
		FROM workflows_of src
		JOIN workflows w ON w.workflow_id = src.workflow_id
		ORDER BY w.created_at, w.rowid, src.plan_id DESC`,
		sql.Named("transcript", transcriptID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var out []Workflow
	seen := make(map[string]bool)
	for rows.Next() {
		var w Workflow
		var created int64
		if err := rows.Scan(&w.WorkflowID, &w.WorkflowType, &w.ActionItem, &w.Priority, &w.RiskLevel,
			&w.Status, &w.PlanID, &w.AnalysisID, &created, &w.StepCount); err != nil {
			return nil, wrapErr(op, err)
		}
		if seen[w.WorkflowID] {
			continue
		}
		seen[w.WorkflowID] = true
		w.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}

// LatestTranscript returns the most recently written transcript id. When customerID is
// set the search is limited to that customer's calls. It returns ErrNodeNotFound when
// there is none.
func (s *Store) LatestTranscript(ctx context.Context, customerID string) (string, error) {
	const op = "LatestTranscript"

	q, err := s.reader()
	if err != nil {
		return "", err
	}

	var id string
	if customerID == "" {
		err = q.QueryRowContext(ctx,
			"SELECT transcript_id FROM transcripts ORDER BY created_at DESC, rowid DESC LIMIT 1").Scan(&id)
	} else {
		err = q.QueryRowContext(ctx, `
			SELECT transcript_id FROM transcripts
			WHERE customer_id = :customer OR transcript_id IN (
				SELECT to_id FROM relationships WHERE rel_type = 'HAD_CALL' AND from_id = :customer
			)
			ORDER BY created_at DESC, rowid DESC LIMIT 1`,
			sql.Named("customer", customerID)).Scan(&id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no transcript", ErrNodeNotFound)
	}
	if err != nil {
		return "", wrapErr(op, err)
	}
	return id, nil
}
