// Package ledger implements the deterministic task state machine at the
// core of taskledger.
//
// The ledger applies externally ordered operations one at a time against
// a state store. Given the same operation sequence, every node's store
// reaches bit-identical state. Key properties:
//
//   - Sequential task ids from a shared counter (task_000001, ...)
//   - Status transitions only open to completed or open to cancelled
//   - Index sets kept in lockstep with the status field
//   - Rejections are computed before the first write, so a failed
//     operation never leaves partial state behind
//
// # Basic Usage
//
// Create a ledger over a store and a membership roster, then apply
// ordered operations:
//
//	st := store.NewMemoryStore()
//	roster := members.NewStaticRoster(members.StaticRosterConfig{
//	    Admins: []string{"ops"},
//	})
//	l := ledger.New(st, roster)
//
//	op, _ := oplog.NewOperation(ledger.MethodAddTask, "alice",
//	    ledger.AddTaskParams{Title: "Write the report"})
//	result, events, err := l.Apply(op)
//
// Views read local state directly and take no part in replication:
//
//	out, err := l.Query(ledger.MethodListTasks, nil)
//
// # Task Lifecycle
//
// Tasks move through the following states:
//
//	open → completed   (creator or assignee)
//	open → cancelled   (creator or admin)
//
// Both transitions are terminal. Applying a transition to a task already
// in a terminal status fails with an invalid-state rejection, never with
// silent re-processing.
//
// # Determinism
//
// Handlers never read the local clock, generate random values, or touch
// the network. Timestamps come from the operation envelope, stamped once
// at submission. Notification events are returned to the caller as
// values rather than published directly, keeping the apply path free of
// I/O beyond the store.
//
// # Thread Safety
//
// Apply takes an exclusive lock and Query a shared lock, so views never
// observe a transaction mid-write. Apply calls must still be issued one
// at a time in log order, by a single apply loop.
package ledger
