package ledger

import (
	"encoding/json"
	"sort"

	"github.com/BrightTonyTech/taskledger/errors"
)

// Query executes a read-only view against current local state. Views
// take no part in replication and require no authorization.
func (l *Ledger) Query(method string, params json.RawMessage) (interface{}, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch method {
	case MethodListTasks:
		return l.listTasks(params)
	case MethodGetTask:
		return l.getTask(params)
	case MethodStats:
		return l.stats()
	default:
		return nil, errors.UnknownMethod(method)
	}
}

// listTasks resolves the candidate id set from the narrowest applicable
// index: the assignee index when an assignee filter is present, else the
// status index, else all tasks. A status filter on top of an assignee
// filter is applied per task after loading, not by set intersection.
func (l *Ledger) listTasks(raw json.RawMessage) (*ListResult, error) {
	var params ListTasksParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var (
		ids []string
		err error
	)
	switch {
	case params.Assignee != "":
		ids, err = l.store.SMembers(assigneeKey(params.Assignee))
	case params.Status != "":
		ids, err = l.store.SMembers(statusSetKey(params.Status))
	default:
		ids, err = l.store.SMembers(allSetKey)
	}
	if err != nil {
		return nil, err
	}

	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		task, err := l.loadTask(id)
		if err != nil {
			// Skip index entries without a readable record.
			continue
		}
		if params.Assignee != "" && params.Status != "" && task.Status != params.Status {
			continue
		}
		tasks = append(tasks, task)
	}

	sortTasksNewestFirst(tasks)

	return &ListResult{Tasks: tasks, Count: len(tasks)}, nil
}

// getTask returns a single task record by id.
func (l *Ledger) getTask(raw json.RawMessage) (*GetResult, error) {
	var params GetTaskParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	task, err := l.loadTask(params.ID)
	if err != nil {
		return nil, err
	}
	return &GetResult{Task: task}, nil
}

// stats reports the cardinality of each index set.
func (l *Ledger) stats() (*StatsResult, error) {
	all, err := l.store.SMembers(allSetKey)
	if err != nil {
		return nil, err
	}
	open, err := l.store.SMembers(openSetKey)
	if err != nil {
		return nil, err
	}
	completed, err := l.store.SMembers(completedSetKey)
	if err != nil {
		return nil, err
	}
	cancelled, err := l.store.SMembers(cancelledSetKey)
	if err != nil {
		return nil, err
	}

	return &StatsResult{
		Total:     len(all),
		Open:      len(open),
		Completed: len(completed),
		Cancelled: len(cancelled),
	}, nil
}

// sortTasksNewestFirst orders tasks descending by creation time, with
// the task id breaking ties so every node lists in the same order.
func sortTasksNewestFirst(tasks []*Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})
}
