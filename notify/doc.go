// Package notify provides the best-effort broadcast channel for ledger
// events.
//
// # Overview
//
// Transactions emit events (task created, completed, cancelled) and chat
// messages ride the same channel. Delivery is fire-and-forget: events are
// not part of replicated state, a dropped event never fails the
// transaction that produced it, and a malformed inbound payload is
// silently ignored.
//
// # Available Implementations
//
//   - NATSBroadcaster: production fan-out over core NATS pub/sub
//   - MemoryBroadcaster: in-process fan-out for testing and demos
//
// # Usage
//
//	b := notify.NewMemoryBroadcaster(notify.DefaultConfig())
//	sub, _ := b.Subscribe()
//	go func() {
//	    for ev := range sub.Events() {
//	        fmt.Println(ev.Type, ev.ID, ev.Status)
//	    }
//	}()
//	b.Publish(notify.TaskUpdate("task_000001", "open"))
//	b.Publish(notify.Chat("shipping the fix now"))
package notify
