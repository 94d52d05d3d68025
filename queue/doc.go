// Package queue serializes writes from many goroutines onto one worker.
//
// A Queue owns a target (for the call graph, the *graph.Store) and runs each
// submitted operation against it one at a time, in submission order. Producers get
// a Pending handle back immediately and may wait on it or ignore it:
//
//	q, _ := queue.New[*graph.Store](queue.WithLogger(logger))
//	_ = q.Start(store)
//
//	p, err := queue.Submit(ctx, q, "AddTranscript",
//		func(ctx context.Context, s *graph.Store) (bool, error) {
//			return s.AddTranscript(ctx, rec)
//		})
//	if err != nil {
//		return err // queue not running
//	}
//	created, err := p.Wait(ctx)
//
// Cancelling the submitting context does not cancel a queued operation. Drain waits
// for everything submitted so far; Stop refuses new work and lets the backlog finish.
//
// Each operation gets one span and feeds three instruments: callgraph.queue.depth,
// callgraph.queue.operations and callgraph.queue.duration. Tracer and meter default
// to no-op providers.
package queue
