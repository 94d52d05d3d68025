// Package graph stores the call-center knowledge graph in an embedded, file-backed
// SQLite database and implements every read and mutate operation on it.
//
// # Ingestion
//
// Each ingestion call takes a typed record and runs in one transaction. Creating a
// node whose key already exists is a successful no-op, so producers may retry or
// replay freely:
//
//	store, err := graph.Open(ctx, "/var/lib/callgraph")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	_, err = store.AddTranscript(ctx, graph.TranscriptRecord{
//	    TranscriptID: "CALL_7F3A",
//	    CustomerID:   "CUST_001",
//	    Topic:        "payment_assistance",
//	})
//
// Risk patterns and compliance flags are shared nodes merged on (type, description):
// ingesting the same pattern twice increments its frequency instead of duplicating it.
//
// # Concurrency
//
// Reads may run from any goroutine. The engine admits a single writer, so mutations
// must be funneled through one goroutine; package queue provides that worker and the
// root package wires the two together.
//
// # Errors
//
// Engine failures are returned as *StoreError, categorized by Kind. Only a collision
// on the key being created is absorbed; every other failure propagates, and no read
// substitutes an empty result for a failed query.
package graph
