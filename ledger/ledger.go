package ledger

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/BrightTonyTech/taskledger/errors"
	"github.com/BrightTonyTech/taskledger/members"
	"github.com/BrightTonyTech/taskledger/notify"
	"github.com/BrightTonyTech/taskledger/oplog"
	"github.com/BrightTonyTech/taskledger/store"
)

// State store key layout.
const (
	seqKey            = "task_seq"
	taskKeyPrefix     = "task:"
	allSetKey         = "tasks:all"
	openSetKey        = "tasks:open"
	completedSetKey   = "tasks:completed"
	cancelledSetKey   = "tasks:cancelled"
	assigneeKeyPrefix = "tasks:assignee:"
	opKeyPrefix       = "op:"
)

func taskKey(id string) string {
	return taskKeyPrefix + id
}

func opKey(opID string) string {
	return opKeyPrefix + opID
}

func assigneeKey(assignee string) string {
	return assigneeKeyPrefix + assignee
}

// statusSetKey returns the index set holding tasks in the given status.
func statusSetKey(s Status) string {
	switch s {
	case StatusOpen:
		return openSetKey
	case StatusCompleted:
		return completedSetKey
	case StatusCancelled:
		return cancelledSetKey
	}
	return ""
}

// formatTaskID renders a counter value as a task id.
func formatTaskID(seq int64) string {
	return fmt.Sprintf("task_%06d", seq)
}

// Ledger is the deterministic task state machine. All task data lives in
// the backing store; the ledger itself holds none, so a restarted node
// resumes from whatever its store already contains.
type Ledger struct {
	store  store.Store
	roster members.Roster
	mu     sync.RWMutex
}

// New creates a ledger over the given store and membership roster.
func New(s store.Store, roster members.Roster) *Ledger {
	return &Ledger{
		store:  s,
		roster: roster,
	}
}

// Apply executes one transaction against current state. Callers invoke
// it once per ordered operation, sequentially, never interleaved. On
// success it returns the transaction result and the notification events
// to broadcast. On rejection the store is left untouched and the events
// are nil.
func (l *Ledger) Apply(op oplog.Operation) (*TxResult, []notify.Event, error) {
	if err := oplog.ValidateOperation(op); err != nil {
		return nil, nil, errors.Validation(err.Error())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch op.Method {
	case MethodAddTask:
		return l.applyAddTask(op)
	case MethodCompleteTask:
		return l.applyCompleteTask(op)
	case MethodCancelTask:
		return l.applyCancelTask(op)
	default:
		return nil, nil, errors.UnknownMethod(op.Method)
	}
}

// applyAddTask allocates the next task id and persists a new open task.
// Any signer may create tasks.
func (l *Ledger) applyAddTask(op oplog.Operation) (*TxResult, []notify.Event, error) {
	var params AddTaskParams
	if err := decodeParams(op.Params, &params); err != nil {
		return nil, nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	// Replayed operation - return the recorded task (idempotent).
	if prev, err := l.store.Get(opKey(op.ID)); err == nil {
		task, err := l.loadTask(string(prev))
		if err != nil {
			return nil, nil, err
		}
		return &TxResult{Success: true, ID: task.ID, Task: task},
			[]notify.Event{notify.TaskUpdate(task.ID, task.Status.String())},
			nil
	}

	seq, err := l.store.Increment(seqKey)
	if err != nil {
		return nil, nil, fmt.Errorf("allocate task id: %w", err)
	}

	task := &Task{
		ID:        formatTaskID(seq),
		Title:     params.Title,
		Desc:      params.Desc,
		Assignee:  params.Assignee,
		Creator:   op.Signer,
		Status:    StatusOpen,
		CreatedAt: op.Time,
		UpdatedAt: op.Time,
	}

	if err := l.saveTask(task); err != nil {
		return nil, nil, err
	}
	if err := l.store.SAdd(allSetKey, task.ID); err != nil {
		return nil, nil, err
	}
	if err := l.store.SAdd(openSetKey, task.ID); err != nil {
		return nil, nil, err
	}
	if task.Assignee != "" {
		if err := l.store.SAdd(assigneeKey(task.Assignee), task.ID); err != nil {
			return nil, nil, err
		}
	}
	if err := l.store.Set(opKey(op.ID), []byte(task.ID)); err != nil {
		return nil, nil, fmt.Errorf("record operation %s: %w", op.ID, err)
	}

	return &TxResult{Success: true, ID: task.ID, Task: task},
		[]notify.Event{notify.TaskUpdate(task.ID, task.Status.String())},
		nil
}

// applyCompleteTask transitions an open task to completed. Only the
// creator or the assignee may complete a task; admin status grants no
// completion right.
func (l *Ledger) applyCompleteTask(op oplog.Operation) (*TxResult, []notify.Event, error) {
	var params CompleteTaskParams
	if err := decodeParams(op.Params, &params); err != nil {
		return nil, nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	task, err := l.loadTask(params.ID)
	if err != nil {
		return nil, nil, err
	}
	if task.Status != StatusOpen {
		return nil, nil, errors.InvalidState(
			fmt.Sprintf("task %s is %s, not open", task.ID, task.Status),
			errors.WithTaskID(task.ID),
		)
	}
	if op.Signer != task.Creator && op.Signer != task.Assignee {
		return nil, nil, errors.Unauthorized(
			"only the creator or assignee may complete a task",
			errors.WithTaskID(task.ID), errors.WithSigner(op.Signer),
		)
	}

	task.Status = StatusCompleted
	task.CompletedBy = op.Signer
	task.UpdatedAt = op.Time

	if err := l.saveTask(task); err != nil {
		return nil, nil, err
	}
	if err := l.store.SRem(openSetKey, task.ID); err != nil {
		return nil, nil, err
	}
	if err := l.store.SAdd(completedSetKey, task.ID); err != nil {
		return nil, nil, err
	}

	return &TxResult{Success: true, ID: task.ID, Task: task},
		[]notify.Event{notify.TaskUpdate(task.ID, task.Status.String())},
		nil
}

// applyCancelTask transitions an open task to cancelled. Only the
// creator or an admin may cancel; the assignee alone may not, asymmetric
// with completion.
func (l *Ledger) applyCancelTask(op oplog.Operation) (*TxResult, []notify.Event, error) {
	var params CancelTaskParams
	if err := decodeParams(op.Params, &params); err != nil {
		return nil, nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	task, err := l.loadTask(params.ID)
	if err != nil {
		return nil, nil, err
	}
	if task.Status != StatusOpen {
		return nil, nil, errors.InvalidState(
			fmt.Sprintf("task %s is %s, not open", task.ID, task.Status),
			errors.WithTaskID(task.ID),
		)
	}
	if op.Signer != task.Creator && !l.roster.IsAdmin(op.Signer) {
		return nil, nil, errors.Unauthorized(
			"only the creator or an admin may cancel a task",
			errors.WithTaskID(task.ID), errors.WithSigner(op.Signer),
		)
	}

	task.Status = StatusCancelled
	task.CancelledBy = op.Signer
	task.UpdatedAt = op.Time

	if err := l.saveTask(task); err != nil {
		return nil, nil, err
	}
	if err := l.store.SRem(openSetKey, task.ID); err != nil {
		return nil, nil, err
	}
	if err := l.store.SAdd(cancelledSetKey, task.ID); err != nil {
		return nil, nil, err
	}

	return &TxResult{Success: true, ID: task.ID, Task: task},
		[]notify.Event{notify.TaskUpdate(task.ID, task.Status.String())},
		nil
}

// loadTask reads and decodes a task record.
func (l *Ledger) loadTask(id string) (*Task, error) {
	data, err := l.store.Get(taskKey(id))
	if err != nil {
		if err == store.ErrNotFound {
			return nil, errors.NotFound(id)
		}
		return nil, err
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, errors.Corruption(
			fmt.Sprintf("task %s record is undecodable", id),
			errors.WithTaskID(id), errors.WithCause(err),
		)
	}
	return &task, nil
}

// saveTask encodes and persists a task record.
func (l *Ledger) saveTask(task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	return l.store.Set(taskKey(task.ID), data)
}

// decodeParams unmarshals raw operation params into v. Empty params
// leave v zero-valued so the per-method Validate reports what is
// missing.
func decodeParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Validation("malformed params", errors.WithCause(err))
	}
	return nil
}
