// Package errors provides the structured error taxonomy for ledger
// operations. Every rejection a handler can produce carries a code that
// identifies the failure class, so the replication/RPC layer can report it
// without inspecting message text.
//
// # Error Codes
//
// The four codes raised by the deterministic core:
//
//   - VALIDATION: malformed, missing, or oversized input, caught before any
//     state read
//   - NOT_FOUND: the referenced task id does not exist
//   - INVALID_STATE: the task exists but is not in the status the requested
//     transition needs
//   - UNAUTHORIZED: the signer lacks the required relationship or role
//
// Collaborator and boundary failures use the remaining codes (TIMEOUT,
// UNAVAILABLE, UNKNOWN_METHOD, CORRUPTION, INTERNAL).
//
// # Categories
//
// Codes default to a category that fixes retry semantics: core rejections
// are permanent (retrying an identical operation cannot succeed),
// collaborator outages are transient, everything unexpected is internal.
//
// # Usage
//
// Create a rejection:
//
//	err := errors.InvalidState("task task_000007 is completed", errors.WithTaskID("task_000007"))
//
// Classify at the boundary:
//
//	if errors.Is(err, errors.ErrCodeUnauthorized) {
//	    // report as an unsuccessful transaction, do not retry
//	}
//
// # JSON
//
// Errors marshal to JSON so a rejection can cross the RPC boundary and be
// rebuilt on the far side with its code and metadata intact.
package errors
