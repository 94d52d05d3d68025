package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/graph"
	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/schema"
)

// ErrNoActiveTranscript is returned by operations that need SetActive first.
var ErrNoActiveTranscript = errors.New("no active transcript")

// Reader is the read side of the graph the resolver needs. Both *graph.Store and the
// queued callgraph.Store satisfy it.
type Reader interface {
	GetPipelineForTranscript(ctx context.Context, transcriptID string) (*graph.Pipeline, error)
	GetWorkflowsForTranscript(ctx context.Context, transcriptID string) ([]graph.Workflow, error)
	LatestTranscript(ctx context.Context, customerID string) (string, error)
	FindNode(ctx context.Context, id string) (*graph.Node, error)
}

// Active is a snapshot of the ids the session currently refers to.
type Active struct {
	TranscriptID     string   `json:"transcript_id,omitempty"`
	CustomerID       string   `json:"customer_id,omitempty"`
	AnalysisID       string   `json:"analysis_id,omitempty"`
	PlanID           string   `json:"plan_id,omitempty"`
	WorkflowIDs      []string `json:"workflow_ids,omitempty"`
	ActiveWorkflowID string   `json:"active_workflow_id,omitempty"`
}

// Reference is a resolved entity.
type Reference struct {
	Label schema.NodeLabel `json:"label"`
	ID    string           `json:"id"`
	// Source says how the reference was resolved: "context", "graph" or "explicit".
	Source string `json:"source"`
}

// Reference sources.
const (
	SourceContext  = "context"
	SourceGraph    = "graph"
	SourceExplicit = "explicit"
)

// FlowEntry is one line of the conversation-flow log.
type FlowEntry struct {
	Action string            `json:"action"`
	IDs    map[string]string `json:"ids,omitempty"`
	At     time.Time         `json:"at"`
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp flow entries.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session holds the entity ids of one conversation and resolves references such as
// "the plan" or "this call" to them. It never writes to the graph and keeps only ids.
// A Session may be shared by goroutines serving the same conversation.
type Session struct {
	reader Reader
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	active Active
	flow   []FlowEntry
}

// New creates a session with no active transcript.
func New(reader Reader, opts ...Option) *Session {
	s := &Session{
		reader: reader,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	return s
}

// SetActive makes transcriptID the conversation's subject and derives the related ids
// from one pipeline traversal. On failure the previous context is kept.
func (s *Session) SetActive(ctx context.Context, transcriptID string) error {
	if transcriptID == "" {
		return fmt.Errorf("%w: transcript id is required", graph.ErrInvalidArgument)
	}

	p, err := s.reader.GetPipelineForTranscript(ctx, transcriptID)
	if err != nil {
		s.record("set_active_failed", map[string]string{"transcript_id": transcriptID})
		return fmt.Errorf("set active transcript %s: %w", transcriptID, err)
	}

	active := Active{
		TranscriptID:     p.TranscriptID,
		CustomerID:       p.CustomerID,
		AnalysisID:       p.AnalysisID,
		PlanID:           p.PlanID,
		WorkflowIDs:      append([]string(nil), p.WorkflowIDs...),
		ActiveWorkflowID: p.ActiveWorkflowID,
	}

	s.mu.Lock()
	s.active = active
	s.appendLocked("set_active", nonEmpty(map[string]string{
		"transcript_id": active.TranscriptID,
		"customer_id":   active.CustomerID,
		"analysis_id":   active.AnalysisID,
		"plan_id":       active.PlanID,
		"workflow_id":   active.ActiveWorkflowID,
	}))
	s.mu.Unlock()

	s.logger.Debug("active transcript set",
		"transcript_id", active.TranscriptID,
		"analysis_id", active.AnalysisID,
		"workflows", len(active.WorkflowIDs))
	return nil
}

// Active returns a copy of the current context.
func (s *Session) Active() Active {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.active
	a.WorkflowIDs = append([]string(nil), s.active.WorkflowIDs...)
	return a
}

// Clear forgets the active ids. The flow log is kept.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = Active{}
	s.appendLocked("clear", nil)
}

// explicitID matches tokens shaped like generated entity ids, e.g. CALL_7F3A or
// ANALYSIS-001.
var explicitID = regexp.MustCompile(`\b[A-Za-z]+[_-][A-Za-z0-9_-]*[0-9][A-Za-z0-9_-]*\b`)

var latestCall = []string{"last call", "latest call", "previous call", "most recent call"}

// contextual phrases, checked in order after explicit ids and latest-call phrases.
var contextual = []struct {
	phrases []string
	label   schema.NodeLabel
	id      func(a Active) string
}{
	{[]string{"the analysis", "this analysis"}, schema.Analysis, func(a Active) string { return a.AnalysisID }},
	{[]string{"the plan", "this plan"}, schema.Plan, func(a Active) string { return a.PlanID }},
	{[]string{"the workflow", "this workflow"}, schema.Workflow, func(a Active) string { return a.ActiveWorkflowID }},
	{[]string{"the customer", "this customer"}, schema.Customer, func(a Active) string { return a.CustomerID }},
	{[]string{"this call", "the call", "the transcript", "this transcript"}, schema.Transcript, func(a Active) string { return a.TranscriptID }},
}

// Resolve maps free text to an entity. It reports false, with no error, when the text
// names nothing resolvable, including when it needs a context that is not set.
func (s *Session) Resolve(ctx context.Context, text string) (Reference, bool, error) {
	ref, ok, err := s.resolve(ctx, text)
	ids := map[string]string{"text": text}
	if ok {
		ids["label"] = string(ref.Label)
		ids["id"] = ref.ID
	}
	s.record("resolve", ids)
	return ref, ok, err
}

func (s *Session) resolve(ctx context.Context, text string) (Reference, bool, error) {
	for _, token := range explicitID.FindAllString(text, -1) {
		node, err := s.reader.FindNode(ctx, token)
		if errors.Is(err, graph.ErrNodeNotFound) {
			continue
		}
		if err != nil {
			return Reference{}, false, fmt.Errorf("resolve %q: %w", token, err)
		}
		return Reference{Label: node.Label, ID: node.ID, Source: SourceExplicit}, true, nil
	}

	lower := strings.ToLower(text)
	active := s.Active()

	if containsAny(lower, latestCall) {
		id, err := s.reader.LatestTranscript(ctx, active.CustomerID)
		if errors.Is(err, graph.ErrNodeNotFound) {
			return Reference{}, false, nil
		}
		if err != nil {
			return Reference{}, false, fmt.Errorf("resolve latest call: %w", err)
		}
		return Reference{Label: schema.Transcript, ID: id, Source: SourceGraph}, true, nil
	}

	for _, c := range contextual {
		if !containsAny(lower, c.phrases) {
			continue
		}
		if id := c.id(active); id != "" {
			return Reference{Label: c.label, ID: id, Source: SourceContext}, true, nil
		}
		return Reference{}, false, nil
	}
	return Reference{}, false, nil
}

// GetWorkflows returns the active transcript's workflows. A non-empty typeFilter keeps
// only workflows of that type, compared case-insensitively.
func (s *Session) GetWorkflows(ctx context.Context, typeFilter string) ([]graph.Workflow, error) {
	transcriptID := s.Active().TranscriptID
	if transcriptID == "" {
		s.record("get_workflows_failed", nonEmpty(map[string]string{"type": typeFilter}))
		return nil, ErrNoActiveTranscript
	}

	all, err := s.reader.GetWorkflowsForTranscript(ctx, transcriptID)
	if err != nil {
		s.record("get_workflows_failed", nonEmpty(map[string]string{
			"transcript_id": transcriptID,
			"type":          typeFilter,
		}))
		return nil, fmt.Errorf("workflows for %s: %w", transcriptID, err)
	}

	out := all
	if typeFilter != "" {
		out = make([]graph.Workflow, 0, len(all))
		for _, w := range all {
			if strings.EqualFold(w.WorkflowType, typeFilter) {
				out = append(out, w)
			}
		}
	}

	s.record("get_workflows", nonEmpty(map[string]string{
		"transcript_id": transcriptID,
		"type":          typeFilter,
	}))
	return out, nil
}

// Summary returns the last n flow entries, oldest first. n <= 0 returns them all.
func (s *Session) Summary(n int) []FlowEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if n > 0 && n < len(s.flow) {
		start = len(s.flow) - n
	}
	out := make([]FlowEntry, len(s.flow)-start)
	copy(out, s.flow[start:])
	return out
}

func (s *Session) record(action string, ids map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(action, ids)
}

func (s *Session) appendLocked(action string, ids map[string]string) {
	s.flow = append(s.flow, FlowEntry{Action: action, IDs: ids, At: s.now()})
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func nonEmpty(m map[string]string) map[string]string {
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
