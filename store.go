package callgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/feed"
	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/graph"
	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/health"
	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/queue"
	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/schema"
)

// Store is the shared entry point to the call graph. Mutations are funnelled through
// a single-worker queue and return a Pending result; reads go straight to the graph
// and may not yet see writes that are still queued. Call Drain for read-after-write.
//
// A Store is created with Open and handed to every collaborator that needs it. It is
// safe for concurrent use.
type Store struct {
	graph  *graph.Store
	queue  *queue.Queue[*graph.Store]
	feed   feed.Client
	logger *slog.Logger

	ownsFeed       bool
	stopTimeout    time.Duration
	publishTimeout time.Duration

	// mu guards closed and released. Reads hold it shared for their whole duration so
	// the graph is never released under them.
	mu       sync.RWMutex
	closed   bool
	released bool
}

// Open opens the graph in cfg.DataDir, starts the write queue and, when configured,
// connects the change feed.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := storeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	graphOpts := []graph.Option{
		graph.WithLogger(o.logger),
		graph.WithBusyTimeout(cfg.Graph.GetBusyTimeout()),
		graph.WithMaxOpenConns(cfg.Graph.GetMaxOpenConns()),
	}
	if o.clock != nil {
		graphOpts = append(graphOpts, graph.WithClock(o.clock))
	}
	g, err := graph.Open(ctx, cfg.DataDir, graphOpts...)
	if err != nil {
		return nil, err
	}

	s := &Store{
		graph:          g,
		feed:           o.feed,
		logger:         o.logger.With("component", "callgraph"),
		stopTimeout:    cfg.Queue.GetStopTimeout(),
		publishTimeout: cfg.Queue.GetPublishTimeout(),
	}

	if s.feed == nil && cfg.Feed != nil {
		redisOpts := cfg.Feed.redisOptions()
		redisOpts.Logger = o.logger
		client, err := feed.NewRedisClient(redisOpts)
		if err != nil {
			CloseWithLog(g, s.logger, "graph")
			return nil, fmt.Errorf("open change feed: %w", err)
		}
		s.feed = client
		s.ownsFeed = true
	}

	queueOpts := []queue.Option{
		queue.WithLogger(o.logger),
		queue.WithTracer(o.tracer),
		queue.WithMeter(o.meter),
	}
	if s.feed != nil {
		queueOpts = append(queueOpts, queue.WithOnComplete(s.publish))
	}
	q, err := queue.New[*graph.Store](queueOpts...)
	if err == nil {
		err = q.Start(g)
	}
	if err != nil {
		s.closeResources()
		return nil, fmt.Errorf("start write queue: %w", err)
	}
	s.queue = q

	s.logger.Info("call graph opened", "dir", g.Dir(), "feed", s.feed != nil)
	return s, nil
}

// Close stops accepting writes, waits for queued writes to finish and releases the
// graph and any feed the store created. It waits at most the configured stop timeout,
// or until ctx is done if that comes first. If queued writes are still running when
// it gives up, the graph is left open for them and the error wraps
// queue.ErrStopTimeout; calling Close again waits for them once more and releases the
// graph when they are done. Close returns nil once the store has been released.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	timeout := s.stopTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	if err := s.queue.Stop(timeout); err != nil {
		s.logger.Warn("write queue did not stop in time", "timeout", timeout, "pending", s.queue.Len())
		return fmt.Errorf("close call graph: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	if err := s.closeResources(); err != nil {
		return fmt.Errorf("close call graph: %w", err)
	}
	s.logger.Info("call graph closed")
	return nil
}

func (s *Store) closeResources() error {
	var errs []error
	if err := s.graph.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.ownsFeed {
		if err := s.feed.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close change feed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Drain blocks until every write submitted so far has been applied, or timeout
// elapses, and reports whether the queue drained.
func (s *Store) Drain(timeout time.Duration) bool {
	return s.queue.Drain(timeout)
}

// Graph returns the underlying graph for read-only collaborators. Writing through it
// bypasses the queue.
func (s *Store) Graph() *graph.Store {
	return s.graph
}

// Feed returns the change feed, or nil when none is configured.
func (s *Store) Feed() feed.Client {
	return s.feed
}

// Health combines the engine, write queue and change feed checks.
func (s *Store) Health(ctx context.Context) health.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	checks := []health.Status{s.graph.Health(ctx), s.queue.Health()}
	if s.feed != nil {
		checks = append(checks, health.ErrorCheck("change feed", s.feed.Ping(ctx)))
	}
	return health.Combine(checks...)
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// read runs fn against the graph unless the store is closed.
func read[R any](s *Store, fn func(g *graph.Store) (R, error)) (R, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		var zero R
		return zero, ErrClosed
	}
	return fn(s.graph)
}

// publish turns a finished queue operation into a change event. Feed failures are
// logged and never affect the operation's result.
func (s *Store) publish(ctx context.Context, c queue.Completion) {
	event := feed.ChangeEvent{
		ID:          uuid.NewString(),
		RequestID:   c.ID,
		Operation:   c.Name,
		Status:      feed.StatusApplied,
		StartedAt:   c.StartedAt.UnixMilli(),
		CompletedAt: c.StartedAt.Add(c.Duration).UnixMilli(),
	}
	if c.Err != nil {
		event.Status = feed.StatusFailed
		event.Error = c.Err.Error()
	}

	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.feed.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish change event", "op", c.Name, "request_id", c.ID, "error", err)
	}
}

// submit queues fn against the graph.
func submit[R any](ctx context.Context, s *Store, name string, fn func(ctx context.Context, g *graph.Store) (R, error)) (*queue.Pending[R], error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	p, err := queue.Submit(ctx, s.queue, name, fn)
	if errors.Is(err, queue.ErrStopped) {
		return nil, ErrClosed
	}
	return p, err
}

// AddCustomer queues an idempotent customer create.
func (s *Store) AddCustomer(ctx context.Context, rec graph.CustomerRecord) (*queue.Pending[bool], error) {
	return submit(ctx, s, "AddCustomer", func(ctx context.Context, g *graph.Store) (bool, error) {
		return g.AddCustomer(ctx, rec)
	})
}

// AddTranscript queues an idempotent transcript create.
func (s *Store) AddTranscript(ctx context.Context, rec graph.TranscriptRecord) (*queue.Pending[bool], error) {
	return submit(ctx, s, "AddTranscript", func(ctx context.Context, g *graph.Store) (bool, error) {
		return g.AddTranscript(ctx, rec)
	})
}

// AddAnalysisWithRelationships queues an analysis with its risk patterns and
// compliance flags.
func (s *Store) AddAnalysisWithRelationships(ctx context.Context, rec graph.AnalysisRecord) (*queue.Pending[bool], error) {
	return submit(ctx, s, "AddAnalysisWithRelationships", func(ctx context.Context, g *graph.Store) (bool, error) {
		return g.AddAnalysisWithRelationships(ctx, rec)
	})
}

// AddPlanWithRelationships queues a plan linked from its analysis.
func (s *Store) AddPlanWithRelationships(ctx context.Context, rec graph.PlanRecord) (*queue.Pending[bool], error) {
	return submit(ctx, s, "AddPlanWithRelationships", func(ctx context.Context, g *graph.Store) (bool, error) {
		return g.AddPlanWithRelationships(ctx, rec)
	})
}

// AddWorkflowWithSteps queues a workflow with its steps.
func (s *Store) AddWorkflowWithSteps(ctx context.Context, rec graph.WorkflowRecord) (*queue.Pending[bool], error) {
	return submit(ctx, s, "AddWorkflowWithSteps", func(ctx context.Context, g *graph.Store) (bool, error) {
		return g.AddWorkflowWithSteps(ctx, rec)
	})
}

// AddExecutionWithRelationships queues an execution linked from its workflow.
func (s *Store) AddExecutionWithRelationships(ctx context.Context, rec graph.ExecutionRecord) (*queue.Pending[bool], error) {
	return submit(ctx, s, "AddExecutionWithRelationships", func(ctx context.Context, g *graph.Store) (bool, error) {
		return g.AddExecutionWithRelationships(ctx, rec)
	})
}

// UpsertRiskPattern queues a merge-or-create of a risk pattern; the pending value is
// the pattern id.
func (s *Store) UpsertRiskPattern(ctx context.Context, in graph.RiskPatternInput) (*queue.Pending[string], error) {
	return submit(ctx, s, "UpsertRiskPattern", func(ctx context.Context, g *graph.Store) (string, error) {
		return g.UpsertRiskPattern(ctx, in)
	})
}

// UpsertComplianceFlag queues a merge-or-create of a compliance flag; the pending
// value is the flag id.
func (s *Store) UpsertComplianceFlag(ctx context.Context, in graph.ComplianceFlagInput) (*queue.Pending[string], error) {
	return submit(ctx, s, "UpsertComplianceFlag", func(ctx context.Context, g *graph.Store) (string, error) {
		return g.UpsertComplianceFlag(ctx, in)
	})
}

// LinkCustomerCall queues a HAD_CALL relationship.
func (s *Store) LinkCustomerCall(ctx context.Context, customerID, transcriptID string) (*queue.Pending[struct{}], error) {
	return submit(ctx, s, "LinkCustomerCall", func(ctx context.Context, g *graph.Store) (struct{}, error) {
		return struct{}{}, g.LinkCustomerCall(ctx, customerID, transcriptID)
	})
}

// LinkSimilarCustomers queues a SIMILAR_TO relationship with its similarity score.
func (s *Store) LinkSimilarCustomers(ctx context.Context, customerID, similarID string, similarity float64) (*queue.Pending[struct{}], error) {
	return submit(ctx, s, "LinkSimilarCustomers", func(ctx context.Context, g *graph.Store) (struct{}, error) {
		return struct{}{}, g.LinkSimilarCustomers(ctx, customerID, similarID, similarity)
	})
}

// LinkEscalation queues a REQUIRES_ESCALATION relationship between two analyses.
func (s *Store) LinkEscalation(ctx context.Context, fromAnalysisID, toAnalysisID, reason string) (*queue.Pending[struct{}], error) {
	return submit(ctx, s, "LinkEscalation", func(ctx context.Context, g *graph.Store) (struct{}, error) {
		return struct{}{}, g.LinkEscalation(ctx, fromAnalysisID, toAnalysisID, reason)
	})
}

// DeleteAnalysisNode queues the removal of an analysis and its orphaned patterns.
func (s *Store) DeleteAnalysisNode(ctx context.Context, analysisID string) (*queue.Pending[bool], error) {
	return submit(ctx, s, "DeleteAnalysisNode", func(ctx context.Context, g *graph.Store) (bool, error) {
		return g.DeleteAnalysisNode(ctx, analysisID)
	})
}

// DeleteCustomerCascade queues the removal of a customer and everything derived from
// its calls. The pending value is the number of nodes deleted.
func (s *Store) DeleteCustomerCascade(ctx context.Context, customerID string) (*queue.Pending[int], error) {
	return submit(ctx, s, "DeleteCustomerCascade", func(ctx context.Context, g *graph.Store) (int, error) {
		return g.DeleteCustomerCascade(ctx, customerID)
	})
}

// PruneOldData queues the removal of call data older than days. The pending value is
// the number of nodes deleted.
func (s *Store) PruneOldData(ctx context.Context, days int) (*queue.Pending[int], error) {
	return submit(ctx, s, "PruneOldData", func(ctx context.Context, g *graph.Store) (int, error) {
		return g.PruneOldData(ctx, days)
	})
}

// ClearGraph queues the removal of every node and relationship.
func (s *Store) ClearGraph(ctx context.Context) (*queue.Pending[bool], error) {
	return submit(ctx, s, "ClearGraph", func(ctx context.Context, g *graph.Store) (bool, error) {
		return g.ClearGraph(ctx)
	})
}

// ExecuteStatement queues an ad-hoc write. The pending value is the affected row count.
func (s *Store) ExecuteStatement(ctx context.Context, statement string, params map[string]any) (*queue.Pending[int64], error) {
	return submit(ctx, s, "ExecuteStatement", func(ctx context.Context, g *graph.Store) (int64, error) {
		return g.ExecuteStatement(ctx, statement, params)
	})
}

// Reads. Each runs directly against the graph, concurrently with queued writes, and
// returns ErrClosed once Close has been called.

// ExecuteQuery runs a read-only statement with named parameters.
func (s *Store) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	return read(s, func(g *graph.Store) ([]graph.Record, error) {
		return g.ExecuteQuery(ctx, query, params)
	})
}

// GetHighRiskClusters returns risk patterns at or above threshold with their analyses.
func (s *Store) GetHighRiskClusters(ctx context.Context, threshold float64) ([]graph.RiskCluster, error) {
	return read(s, func(g *graph.Store) ([]graph.RiskCluster, error) {
		return g.GetHighRiskClusters(ctx, threshold)
	})
}

// FindSimilarRiskPatterns returns analyses sharing risk patterns with analysisID.
func (s *Store) FindSimilarRiskPatterns(ctx context.Context, analysisID string, limit int) ([]graph.SimilarAnalysis, error) {
	return read(s, func(g *graph.Store) ([]graph.SimilarAnalysis, error) {
		return g.FindSimilarRiskPatterns(ctx, analysisID, limit)
	})
}

// GetCustomerRecommendations suggests actions taken for similar customers.
func (s *Store) GetCustomerRecommendations(ctx context.Context, customerID string) ([]graph.Recommendation, error) {
	return read(s, func(g *graph.Store) ([]graph.Recommendation, error) {
		return g.GetCustomerRecommendations(ctx, customerID)
	})
}

// GetGraphStatistics counts nodes per type and relationships per type.
func (s *Store) GetGraphStatistics(ctx context.Context) (graph.Statistics, error) {
	return read(s, func(g *graph.Store) (graph.Statistics, error) {
		return g.GetGraphStatistics(ctx)
	})
}

// GetGraphStatisticsBestEffort is GetGraphStatistics that keeps the counts it could
// read and joins the failures.
func (s *Store) GetGraphStatisticsBestEffort(ctx context.Context) (graph.Statistics, error) {
	return read(s, func(g *graph.Store) (graph.Statistics, error) {
		return g.GetGraphStatisticsBestEffort(ctx)
	})
}

// GetPipelineForTranscript returns the ids derived from a transcript.
func (s *Store) GetPipelineForTranscript(ctx context.Context, transcriptID string) (*graph.Pipeline, error) {
	return read(s, func(g *graph.Store) (*graph.Pipeline, error) {
		return g.GetPipelineForTranscript(ctx, transcriptID)
	})
}

// GetWorkflowsForTranscript returns the workflows derived from a transcript.
func (s *Store) GetWorkflowsForTranscript(ctx context.Context, transcriptID string) ([]graph.Workflow, error) {
	return read(s, func(g *graph.Store) ([]graph.Workflow, error) {
		return g.GetWorkflowsForTranscript(ctx, transcriptID)
	})
}

// LatestTranscript returns the newest transcript id, of customerID when it is set.
func (s *Store) LatestTranscript(ctx context.Context, customerID string) (string, error) {
	return read(s, func(g *graph.Store) (string, error) {
		return g.LatestTranscript(ctx, customerID)
	})
}

// GetNode returns a node by label and id.
func (s *Store) GetNode(ctx context.Context, label schema.NodeLabel, id string) (*graph.Node, error) {
	return read(s, func(g *graph.Store) (*graph.Node, error) {
		return g.GetNode(ctx, label, id)
	})
}

// FindNode returns the node with id, whatever its label.
func (s *Store) FindNode(ctx context.Context, id string) (*graph.Node, error) {
	return read(s, func(g *graph.Store) (*graph.Node, error) {
		return g.FindNode(ctx, id)
	})
}
