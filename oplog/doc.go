// Package oplog provides the ordered operation log that replicates
// transactions between ledger nodes.
//
// # Overview
//
// The log is the single source of ordering: Append assigns each
// operation a strictly increasing sequence number, and every node
// applies operations in that order. Delivery is gapless and in order,
// never best-effort; a subscriber that falls behind is waited on, not
// skipped. Nodes resume after restart by subscribing from their applied
// cursor plus one.
//
// # Available Implementations
//
//   - NATSLog: production replication on a NATS JetStream stream; the
//     stream sequence is the operation sequence
//   - MemoryLog: in-process log for testing and single-node use
//
// # Usage
//
//	log := oplog.NewMemoryLog()
//	op, _ := oplog.NewOperation("add_task", "alice@example.com",
//	    map[string]string{"title": "Write spec"})
//	seq, _ := log.Append(op)
//
//	sub, _ := log.Subscribe(1)
//	for op := range sub.Operations() {
//	    // apply in order
//	}
package oplog
