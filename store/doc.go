// Package store provides the key-value and named-set storage the ledger
// state machine runs against.
//
// The Store interface is deliberately small: values, an atomic sequence
// counter, and named sets of task ids. Every primitive is deterministic
// given the same inputs, so replaying the same operation sequence against
// any backend produces the same observable state on every node.
//
// # Key Features
//
//   - Value operations: Get, Set (upsert)
//   - Increment: atomic counter, first call on an unseen key returns 1
//   - Named sets: SAdd, SRem, SMembers (lexicographic member order)
//   - Multiple backends: bbolt (durable, production), in-memory (testing)
//
// # Usage
//
//	// Production: durable bbolt file
//	s, _ := store.NewBoltStore(store.BoltStoreConfig{
//	    Path: "/var/lib/taskledger/state.db",
//	})
//	defer s.Close()
//
//	// Testing: in-memory
//	s := store.NewMemoryStore()
//
//	seq, _ := s.Increment("task_seq")
//	s.Set("task:task_000001", taskJSON)
//	s.SAdd("tasks:open", "task_000001")
//	ids, _ := s.SMembers("tasks:open")
package store
