// Package callgraph is an embeddable knowledge graph of a call center: customers,
// their calls, the analyses and remediation plans derived from those calls, and the
// workflows that carry the plans out.
//
// The graph lives in a single SQLite database directory. Writers from any number of
// goroutines are serialized through one queue worker, so the engine only ever sees a
// single writer; readers go to the database directly.
//
// # Getting Started
//
//	store, err := callgraph.Open(ctx, callgraph.Config{DataDir: "./data"},
//		callgraph.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	defer store.Close(ctx)
//
//	p, err := store.AddTranscript(ctx, graph.TranscriptRecord{TranscriptID: "CALL_7F3A", CustomerID: "CUST_42"})
//	if err != nil {
//		return err
//	}
//	if _, err := p.Wait(ctx); err != nil {
//		return err
//	}
//
// Every mutation returns a *queue.Pending. Reads are not queued and may run ahead of
// writes still in the queue; call Drain first when a read must observe them:
//
//	store.Drain(5 * time.Second)
//	stats, err := store.GetGraphStatistics(ctx)
//
// # Packages
//
//   - schema: node and relationship declarations, DDL
//   - graph: the store itself, every read and write
//   - queue: the single-worker write queue
//   - session: per-conversation reference resolution ("the plan", "this call")
//   - feed: Redis change feed of applied writes
//   - health: health check primitives
//
// # Configuration
//
// Config can be built in code or read from callgraph.yaml with LoadConfig:
//
//	data_dir: ./data
//	graph:
//	  busy_timeout: 5s
//	queue:
//	  stop_timeout: 30s
//	feed:
//	  url: redis://localhost:6379
package callgraph
