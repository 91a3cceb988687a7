package node

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/BrightTonyTech/taskledger/errors"
	"github.com/BrightTonyTech/taskledger/ledger"
	"github.com/BrightTonyTech/taskledger/logging"
	"github.com/BrightTonyTech/taskledger/members"
	"github.com/BrightTonyTech/taskledger/notify"
	"github.com/BrightTonyTech/taskledger/oplog"
	"github.com/BrightTonyTech/taskledger/store"
)

func quietLogger() *logging.Logger {
	l := logging.New()
	l.SetOutput(io.Discard)
	return l
}

func testRoster() *members.StaticRoster {
	return members.NewStaticRoster(members.StaticRosterConfig{Admins: []string{"admin"}})
}

func newTestLog(t *testing.T) *oplog.MemoryLog {
	t.Helper()
	lg := oplog.NewMemoryLog()
	t.Cleanup(func() { lg.Close() })
	return lg
}

// startNode builds and starts a node over the given store and log.
func startNode(t *testing.T, id string, st store.Store, lg oplog.Log) *Node {
	t.Helper()
	n, err := New(Config{
		ID:     id,
		Store:  st,
		Log:    lg,
		Roster: testRoster(),
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { n.Close() })
	return n
}

func newTestNode(t *testing.T, lg oplog.Log) (*Node, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })
	return startNode(t, "n1", st, lg), st
}

// waitForSeq blocks until the node has applied at least seq.
func waitForSeq(t *testing.T, n *Node, seq uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n.Info().AppliedSeq >= seq {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("node %s stuck at seq %d, want %d", n.Info().ID, n.Info().AppliedSeq, seq)
}

func mustOp(t *testing.T, method, signer string, params interface{}) oplog.Operation {
	t.Helper()
	op, err := oplog.NewOperation(method, signer, params)
	if err != nil {
		t.Fatalf("NewOperation failed: %v", err)
	}
	return op
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return data
}

func TestNodeSubmitApplies(t *testing.T) {
	n, _ := newTestNode(t, newTestLog(t))
	ctx := context.Background()

	result, err := n.Submit(ctx, ledger.MethodAddTask, "alice", ledger.AddTaskParams{Title: "Write the report"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.ID != "task_000001" {
		t.Errorf("expected task_000001, got %s", result.ID)
	}
	if n.Info().AppliedSeq != 1 {
		t.Errorf("expected applied seq 1, got %d", n.Info().AppliedSeq)
	}

	// The submitter's own write is visible immediately after Submit
	out, err := n.Query(ledger.MethodGetTask, mustJSON(t, ledger.GetTaskParams{ID: result.ID}))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	got := out.(*ledger.GetResult)
	if got.Task.Title != "Write the report" {
		t.Errorf("unexpected title %q", got.Task.Title)
	}
}

func TestNodeSubmitRejection(t *testing.T) {
	n, _ := newTestNode(t, newTestLog(t))

	_, err := n.Submit(context.Background(), ledger.MethodCompleteTask, "alice",
		ledger.CompleteTaskParams{ID: "task_000099"})
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	// Rejected operations are still part of the ordered history
	if n.Info().AppliedSeq != 1 {
		t.Errorf("expected applied seq 1 after rejection, got %d", n.Info().AppliedSeq)
	}
	out, err := n.Query(ledger.MethodStats, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if stats := out.(*ledger.StatsResult); stats.Total != 0 {
		t.Errorf("rejection must not create state, got %d tasks", stats.Total)
	}
}

func TestNodeSubmitMethodGate(t *testing.T) {
	n, _ := newTestNode(t, newTestLog(t))
	ctx := context.Background()

	// Views never enter the log
	if _, err := n.Submit(ctx, ledger.MethodListTasks, "alice", nil); !errors.IsValidation(err) {
		t.Errorf("expected validation error for view submit, got %v", err)
	}
	// Unknown methods are refused before appending
	if _, err := n.Submit(ctx, "drop_everything", "alice", nil); !errors.Is(err, errors.ErrCodeUnknownMethod) {
		t.Errorf("expected unknown method error, got %v", err)
	}
	// Anonymous submissions are refused
	if _, err := n.Submit(ctx, ledger.MethodAddTask, "", ledger.AddTaskParams{Title: "x"}); !errors.IsValidation(err) {
		t.Errorf("expected validation error for empty signer, got %v", err)
	}
	if seq, _ := n.log.LastSeq(); seq != 0 {
		t.Errorf("refused submissions must not reach the log, last seq %d", seq)
	}
}

func TestNodeQueryViews(t *testing.T) {
	n, _ := newTestNode(t, newTestLog(t))
	ctx := context.Background()

	for _, title := range []string{"one", "two"} {
		if _, err := n.Submit(ctx, ledger.MethodAddTask, "alice", ledger.AddTaskParams{Title: title}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	out, err := n.Query(ledger.MethodListTasks, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if list := out.(*ledger.ListResult); list.Count != 2 {
		t.Errorf("expected 2 tasks, got %d", list.Count)
	}
}

func TestNodeReplayOnStart(t *testing.T) {
	lg := newTestLog(t)

	// History written before this node ever existed
	add1 := mustOp(t, ledger.MethodAddTask, "alice", ledger.AddTaskParams{Title: "one"})
	add2 := mustOp(t, ledger.MethodAddTask, "bob", ledger.AddTaskParams{Title: "two"})
	complete := mustOp(t, ledger.MethodCompleteTask, "alice", ledger.CompleteTaskParams{ID: "task_000001"})
	for _, op := range []oplog.Operation{add1, add2, complete} {
		if _, err := lg.Append(op); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	n, _ := newTestNode(t, lg)
	if n.Info().AppliedSeq != 3 {
		t.Errorf("expected replay to reach seq 3, got %d", n.Info().AppliedSeq)
	}

	out, err := n.Query(ledger.MethodStats, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	stats := out.(*ledger.StatsResult)
	if stats.Total != 2 || stats.Open != 1 || stats.Completed != 1 {
		t.Errorf("unexpected stats after replay: %+v", stats)
	}
}

func TestNodeCrossNodeWrite(t *testing.T) {
	lg := newTestLog(t)
	a, _ := newTestNode(t, lg)

	stB := store.NewMemoryStore()
	t.Cleanup(func() { stB.Close() })
	b := startNode(t, "n2", stB, lg)

	ctx := context.Background()
	result, err := a.Submit(ctx, ledger.MethodAddTask, "alice", ledger.AddTaskParams{Title: "shared", Assignee: "bob"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitForSeq(t, b, 1)

	// The assignee completes through a different node
	if _, err := b.Submit(ctx, ledger.MethodCompleteTask, "bob", ledger.CompleteTaskParams{ID: result.ID}); err != nil {
		t.Fatalf("cross-node complete failed: %v", err)
	}
	waitForSeq(t, a, 2)

	out, err := a.Query(ledger.MethodGetTask, mustJSON(t, ledger.GetTaskParams{ID: result.ID}))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if task := out.(*ledger.GetResult).Task; task.Status != ledger.StatusCompleted || task.CompletedBy != "bob" {
		t.Errorf("completion did not replicate: %+v", task)
	}
}

func TestNodeTwoNodesConverge(t *testing.T) {
	lg := newTestLog(t)
	stA := store.NewMemoryStore()
	t.Cleanup(func() { stA.Close() })
	stB := store.NewMemoryStore()
	t.Cleanup(func() { stB.Close() })
	a := startNode(t, "a", stA, lg)
	b := startNode(t, "b", stB, lg)

	ctx := context.Background()
	r1, err := a.Submit(ctx, ledger.MethodAddTask, "alice", ledger.AddTaskParams{Title: "draft", Assignee: "bob"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	r2, err := a.Submit(ctx, ledger.MethodAddTask, "bob", ledger.AddTaskParams{Title: "review"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := a.Submit(ctx, ledger.MethodCompleteTask, "bob", ledger.CompleteTaskParams{ID: r1.ID}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, err := a.Submit(ctx, ledger.MethodCancelTask, "admin", ledger.CancelTaskParams{ID: r2.ID}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	// A rejected operation is part of the shared history too
	if _, err := a.Submit(ctx, ledger.MethodCompleteTask, "alice", ledger.CompleteTaskParams{ID: r2.ID}); !errors.IsInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	waitForSeq(t, b, 5)

	// Task records are byte-identical on both nodes
	for _, id := range []string{r1.ID, r2.ID} {
		recA, err := stA.Get("task:" + id)
		if err != nil {
			t.Fatalf("Get on store A failed: %v", err)
		}
		recB, err := stB.Get("task:" + id)
		if err != nil {
			t.Fatalf("Get on store B failed: %v", err)
		}
		if !bytes.Equal(recA, recB) {
			t.Errorf("task %s diverged:\n  a: %s\n  b: %s", id, recA, recB)
		}
	}

	outA, err := a.Query(ledger.MethodStats, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	outB, err := b.Query(ledger.MethodStats, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	statsA, statsB := outA.(*ledger.StatsResult), outB.(*ledger.StatsResult)
	if *statsA != *statsB {
		t.Errorf("stats diverged: %+v vs %+v", statsA, statsB)
	}
	if statsA.Total != 2 || statsA.Completed != 1 || statsA.Cancelled != 1 {
		t.Errorf("unexpected stats: %+v", statsA)
	}
}

func TestNodeRestartResumesFromCursor(t *testing.T) {
	lg := newTestLog(t)
	path := filepath.Join(t.TempDir(), "ledger.db")

	st1, err := store.NewBoltStore(store.BoltStoreConfig{Path: path})
	if err != nil {
		t.Fatalf("NewBoltStore failed: %v", err)
	}
	n1, err := New(Config{ID: "n1", Store: st1, Log: lg, Roster: testRoster(), Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := n1.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx := context.Background()
	for _, title := range []string{"one", "two"} {
		if _, err := n1.Submit(ctx, ledger.MethodAddTask, "alice", ledger.AddTaskParams{Title: title}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	if err := n1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := st1.Close(); err != nil {
		t.Fatalf("store Close failed: %v", err)
	}

	// Same data directory, same log: the restarted node resumes
	// instead of re-applying history.
	st2, err := store.NewBoltStore(store.BoltStoreConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	t.Cleanup(func() { st2.Close() })
	n2 := startNode(t, "n1", st2, lg)

	if n2.Info().AppliedSeq != 2 {
		t.Errorf("expected cursor 2 after restart, got %d", n2.Info().AppliedSeq)
	}
	result, err := n2.Submit(ctx, ledger.MethodAddTask, "alice", ledger.AddTaskParams{Title: "three"})
	if err != nil {
		t.Fatalf("Submit after restart failed: %v", err)
	}
	if result.ID != "task_000003" {
		t.Errorf("counter did not survive restart: got %s", result.ID)
	}
	out, err := n2.Query(ledger.MethodStats, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if stats := out.(*ledger.StatsResult); stats.Total != 3 {
		t.Errorf("expected 3 tasks after restart, got %d", stats.Total)
	}
}

func TestNodeOriginatorAloneBroadcasts(t *testing.T) {
	lg := newTestLog(t)
	bc := notify.NewMemoryBroadcaster(notify.DefaultConfig())
	t.Cleanup(func() { bc.Close() })
	sub, err := bc.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	t.Cleanup(func() { sub.Unsubscribe() })

	var nodes []*Node
	for _, id := range []string{"a", "b"} {
		st := store.NewMemoryStore()
		t.Cleanup(func() { st.Close() })
		n, err := New(Config{
			ID: id, Store: st, Log: lg, Roster: testRoster(),
			Broadcaster: bc, Logger: quietLogger(),
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := n.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		t.Cleanup(func() { n.Close() })
		nodes = append(nodes, n)
	}

	result, err := nodes[0].Submit(context.Background(), ledger.MethodAddTask, "alice", ledger.AddTaskParams{Title: "t"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case event := <-sub.Events():
		if event != notify.TaskUpdate(result.ID, "open") {
			t.Errorf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("originator did not broadcast")
	}

	// The replica applies the same operation but must stay silent
	waitForSeq(t, nodes[1], 1)
	select {
	case event := <-sub.Events():
		t.Fatalf("replica broadcast a duplicate: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNodeClose(t *testing.T) {
	n, _ := newTestNode(t, newTestLog(t))

	if err := n.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if _, err := n.Submit(context.Background(), ledger.MethodAddTask, "alice", ledger.AddTaskParams{Title: "x"}); !errors.Is(err, errors.ErrCodeUnavailable) {
		t.Errorf("expected unavailable after close, got %v", err)
	}
	if _, err := n.Query(ledger.MethodStats, nil); !errors.Is(err, errors.ErrCodeUnavailable) {
		t.Errorf("expected unavailable after close, got %v", err)
	}
}

func TestNodeNewValidatesConfig(t *testing.T) {
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })
	lg := newTestLog(t)

	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing store", Config{Log: lg, Roster: testRoster()}},
		{"missing log", Config{Store: st, Roster: testRoster()}},
		{"missing roster", Config{Store: st, Log: lg}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Error("expected config error")
			}
		})
	}
}
