package node

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BrightTonyTech/taskledger/errors"
	"github.com/BrightTonyTech/taskledger/ledger"
	"github.com/BrightTonyTech/taskledger/logging"
	"github.com/BrightTonyTech/taskledger/members"
	"github.com/BrightTonyTech/taskledger/notify"
	"github.com/BrightTonyTech/taskledger/oplog"
	"github.com/BrightTonyTech/taskledger/store"
)

// appliedSeqKey stores the highest log sequence this node has applied.
const appliedSeqKey = "applied_seq"

// DefaultSubmitTimeout bounds the wait for a submitted operation's
// local apply.
const DefaultSubmitTimeout = 10 * time.Second

// Config configures a Node.
type Config struct {
	// ID names the node in log output.
	ID string

	// Store holds this node's copy of the replicated state.
	Store store.Store

	// Log is the ordered operation log shared by all nodes.
	Log oplog.Log

	// Roster answers membership questions for the state machine.
	Roster members.Roster

	// Broadcaster carries notification events. Nil disables
	// broadcasting; applies still succeed.
	Broadcaster notify.Broadcaster

	// Logger for node output. Nil uses a default stdout logger.
	Logger *logging.Logger

	// SubmitTimeout bounds the Submit wait. Zero means
	// DefaultSubmitTimeout.
	SubmitTimeout time.Duration
}

// Node applies the ordered operation log to a local state store and
// serves submissions and queries against it.
type Node struct {
	id            string
	store         store.Store
	log           oplog.Log
	bcast         notify.Broadcaster
	ledger        *ledger.Ledger
	logger        *logging.Logger
	submitTimeout time.Duration

	cursor atomic.Uint64

	mu      sync.Mutex
	waiters map[string]chan applyOutcome

	sub    oplog.LogSubscription
	done   chan struct{}
	closed atomic.Bool
}

// applyOutcome is what the apply loop hands back to a Submit waiter.
type applyOutcome struct {
	result *ledger.TxResult
	err    error
}

// Info reports a node's identity and replication position.
type Info struct {
	ID         string `json:"id"`
	AppliedSeq uint64 `json:"applied_seq"`
}

// New creates a node over the given collaborators. Call Start to begin
// applying the log.
func New(cfg Config) (*Node, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Log == nil {
		return nil, fmt.Errorf("operation log is required")
	}
	if cfg.Roster == nil {
		return nil, fmt.Errorf("roster is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}
	logger = logger.WithComponent("node")
	if cfg.ID != "" {
		logger = logger.WithNodeID(cfg.ID)
	}

	timeout := cfg.SubmitTimeout
	if timeout == 0 {
		timeout = DefaultSubmitTimeout
	}

	return &Node{
		id:            cfg.ID,
		store:         cfg.Store,
		log:           cfg.Log,
		bcast:         cfg.Broadcaster,
		ledger:        ledger.New(cfg.Store, cfg.Roster),
		logger:        logger,
		submitTimeout: timeout,
		waiters:       make(map[string]chan applyOutcome),
		done:          make(chan struct{}),
	}, nil
}

// Start replays the log from the persisted cursor, then begins applying
// live operations. It returns once the node has caught up with the log
// as of the call.
func (n *Node) Start() error {
	if n.closed.Load() {
		return errors.Unavailable("node is closed")
	}

	cursor, err := n.loadCursor()
	if err != nil {
		return err
	}
	n.cursor.Store(cursor)

	n.logger.ReplayStart(cursor + 1)
	start := time.Now()
	applied := 0
	err = n.log.Replay(cursor+1, func(op oplog.Operation) error {
		n.applyOne(op)
		applied++
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay operation log: %w", err)
	}
	n.logger.ReplayComplete(n.cursor.Load(), applied, time.Since(start))

	sub, err := n.log.Subscribe(n.cursor.Load() + 1)
	if err != nil {
		return fmt.Errorf("subscribe to operation log: %w", err)
	}
	n.sub = sub
	go n.applyLoop()
	return nil
}

// Submit appends a transaction to the shared log and waits until this
// node has applied it. The returned result or error is the local apply
// outcome; a rejection leaves state untouched on every node.
func (n *Node) Submit(ctx context.Context, method, signer string, params interface{}) (*ledger.TxResult, error) {
	if n.closed.Load() {
		return nil, errors.Unavailable("node is closed")
	}
	if !ledger.IsTransaction(method) {
		if ledger.IsView(method) {
			return nil, errors.Validationf("%s is a view, not a transaction", method)
		}
		return nil, errors.UnknownMethod(method)
	}
	if signer == "" {
		return nil, errors.Validation("signer is required")
	}

	op, err := oplog.NewOperation(method, signer, params)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}

	// Register the waiter before appending so the apply loop cannot
	// finish the operation before we are listening.
	ch := make(chan applyOutcome, 1)
	n.mu.Lock()
	n.waiters[op.ID] = ch
	n.mu.Unlock()

	if _, err := n.log.Append(op); err != nil {
		n.mu.Lock()
		delete(n.waiters, op.ID)
		n.mu.Unlock()
		return nil, errors.Unavailable("operation log unavailable", errors.WithCause(err))
	}

	if n.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.submitTimeout)
		defer cancel()
	}

	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		// The operation is already in the log and will still apply;
		// only the wait is abandoned. The apply loop cleans up the
		// waiter entry.
		return nil, errors.Timeout(fmt.Sprintf("operation %s not applied before deadline", op.ID))
	}
}

// Query runs a view against this node's local state.
func (n *Node) Query(method string, params json.RawMessage) (interface{}, error) {
	if n.closed.Load() {
		return nil, errors.Unavailable("node is closed")
	}
	return n.ledger.Query(method, params)
}

// Info returns the node's identity and applied position.
func (n *Node) Info() Info {
	return Info{
		ID:         n.id,
		AppliedSeq: n.cursor.Load(),
	}
}

// Close stops applying the log, waits for the in-flight operation to
// finish, and fails pending Submit waiters. Collaborators passed in via
// Config are not closed; close them after the node.
func (n *Node) Close() error {
	if n.closed.Swap(true) {
		return nil
	}

	if n.sub != nil {
		n.sub.Unsubscribe()
		<-n.done
	}

	n.mu.Lock()
	for id, ch := range n.waiters {
		delete(n.waiters, id)
		ch <- applyOutcome{err: errors.Unavailable("node is closed")}
	}
	n.mu.Unlock()
	return nil
}

// applyLoop consumes the log subscription until it closes.
func (n *Node) applyLoop() {
	defer close(n.done)
	for op := range n.sub.Operations() {
		n.applyOne(op)
	}
}

// applyOne runs a single operation through the ledger, advances the
// cursor, answers the local waiter, and publishes effects.
func (n *Node) applyOne(op oplog.Operation) {
	// Redelivered operation (reconnect, restart race) - already applied.
	if op.Seq != 0 && op.Seq <= n.cursor.Load() {
		return
	}

	result, events, err := n.ledger.Apply(op)
	if err != nil {
		n.logger.OpRejected(op.Method, op.Seq, err)
	} else {
		n.logger.OpApplied(op.Method, op.Seq, result.ID)
	}

	n.cursor.Store(op.Seq)
	if serr := n.storeCursor(op.Seq); serr != nil {
		n.logger.Error("cursor write failed", map[string]interface{}{
			"seq":   op.Seq,
			"error": serr.Error(),
		})
	}

	n.mu.Lock()
	ch, origin := n.waiters[op.ID]
	if origin {
		delete(n.waiters, op.ID)
	}
	n.mu.Unlock()
	if origin {
		ch <- applyOutcome{result: result, err: err}
	}

	// Only the accepting node publishes effects; replicas applying the
	// same operation stay silent, as does replay after restart.
	if origin && n.bcast != nil {
		for _, event := range events {
			if perr := n.bcast.Publish(event); perr != nil {
				n.logger.NotifyDropped(event.Type, perr.Error())
			}
		}
	}
}

// loadCursor reads the persisted applied position, 0 for a fresh store.
func (n *Node) loadCursor() (uint64, error) {
	data, err := n.store.Get(appliedSeqKey)
	if err != nil {
		if err == store.ErrNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("read applied cursor: %w", err)
	}
	seq, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("applied cursor is undecodable: %w", err)
	}
	return seq, nil
}

// storeCursor persists the applied position.
func (n *Node) storeCursor(seq uint64) error {
	return n.store.Set(appliedSeqKey, []byte(strconv.FormatUint(seq, 10)))
}
