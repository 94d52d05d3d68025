// Package feed publishes graph change events over Redis.
//
// Every mutation the write queue finishes produces one ChangeEvent. Events are
// published on a pub/sub channel for live consumers (dashboards, cache invalidation,
// downstream indexers) and pushed onto a bounded list so late consumers can catch up
// on recent history.
//
// # Redis Key Schema
//
//   - callgraph:changes - Pub/Sub channel for change events
//   - callgraph:changes:recent - List of the most recent events, newest first
//
// Both names are configurable through RedisOptions.
//
// # Usage
//
//	client, err := feed.NewRedisClient(feed.RedisOptions{
//		URL: "redis://localhost:6379",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	events, err := client.Subscribe(ctx)
//	for event := range events {
//		fmt.Println(event.Operation, event.Status)
//	}
//
// The feed is a side channel: a failed publish never fails the mutation it
// describes.
package feed
