// Package node runs the apply loop that turns the ordered operation
// log into local task state.
//
// A node owns one state store and one ledger. It replays the log from
// its persisted cursor on startup, then applies live operations in
// sequence order as the log delivers them. Because every node applies
// the same operations in the same order against the same deterministic
// state machine, all nodes converge on identical state.
//
// # Basic Usage
//
//	n, err := node.New(node.Config{
//	    ID:     "node-a",
//	    Store:  st,
//	    Log:    log,
//	    Roster: roster,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := n.Start(); err != nil {
//	    return err
//	}
//	defer n.Close()
//
//	// Transactions go through the log and wait for the local apply.
//	result, err := n.Submit(ctx, ledger.MethodAddTask, "alice",
//	    ledger.AddTaskParams{Title: "Write the report"})
//
//	// Views read local state directly, no log round-trip.
//	out, err := n.Query(ledger.MethodListTasks, nil)
//
// # Submission
//
// Submit appends the operation to the shared log and blocks until this
// node's apply loop has processed it, so the caller sees the result of
// its own write. A rejection (validation, not found, unauthorized,
// invalid state) is returned as the Submit error; rejected operations
// remain part of the log and every node rejects them identically.
//
// # Restart
//
// The applied cursor is persisted in the store after each operation.
// On Start the node replays only operations past the cursor, so a node
// backed by a durable store catches up instead of rebuilding. A node
// with a fresh store replays the full log and arrives at the same
// state.
//
// # Effects
//
// Each applied transaction yields notification events. Only the node
// that accepted the submission publishes them; replicas applying the
// same operation stay silent, so a cluster broadcasts each event once
// and replay after restart re-broadcasts nothing.
//
// # Shutdown
//
// Close stops consuming the log, waits for the in-flight apply to
// finish, and fails pending Submit waiters. It does not close the
// store, log, or broadcaster; their owner closes them after the node.
package node
