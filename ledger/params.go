package ledger

import (
	"strings"
	"unicode/utf8"

	"github.com/BrightTonyTech/taskledger/errors"
	"github.com/BrightTonyTech/taskledger/store"
)

// Method names form the complete contract surface of the ledger.
const (
	MethodAddTask      = "add_task"
	MethodCompleteTask = "complete_task"
	MethodCancelTask   = "cancel_task"
	MethodListTasks    = "list_tasks"
	MethodGetTask      = "get_task"
	MethodStats        = "stats"
)

// Input limits for add_task, measured in characters after trimming.
const (
	MaxTitleLen = 140
	MaxDescLen  = 1000
)

// IsTransaction reports whether method mutates state and must travel
// through the ordered operation log.
func IsTransaction(method string) bool {
	switch method {
	case MethodAddTask, MethodCompleteTask, MethodCancelTask:
		return true
	}
	return false
}

// IsView reports whether method is a read-only view answered from local
// state without replication.
func IsView(method string) bool {
	switch method {
	case MethodListTasks, MethodGetTask, MethodStats:
		return true
	}
	return false
}

// AddTaskParams is the input to add_task.
type AddTaskParams struct {
	Title    string `json:"title"`
	Desc     string `json:"desc,omitempty"`
	Assignee string `json:"assignee,omitempty"`
}

// Validate normalizes the params in place and enforces the input limits.
// The assignee is accepted without an existence check, but must form a
// usable index key.
func (p *AddTaskParams) Validate() error {
	p.Title = strings.TrimSpace(p.Title)
	p.Desc = strings.TrimSpace(p.Desc)
	p.Assignee = strings.TrimSpace(p.Assignee)

	if p.Title == "" {
		return errors.Validation("title is required")
	}
	if utf8.RuneCountInString(p.Title) > MaxTitleLen {
		return errors.Validationf("title exceeds %d characters", MaxTitleLen)
	}
	if utf8.RuneCountInString(p.Desc) > MaxDescLen {
		return errors.Validationf("desc exceeds %d characters", MaxDescLen)
	}
	if p.Assignee != "" {
		if err := store.ValidateKey(assigneeKey(p.Assignee)); err != nil {
			return errors.Validationf("invalid assignee %q", p.Assignee)
		}
	}
	return nil
}

// CompleteTaskParams is the input to complete_task.
type CompleteTaskParams struct {
	ID string `json:"id"`
}

// Validate checks that a task id was supplied.
func (p *CompleteTaskParams) Validate() error {
	if p.ID == "" {
		return errors.Validation("id is required")
	}
	return nil
}

// CancelTaskParams is the input to cancel_task.
type CancelTaskParams struct {
	ID string `json:"id"`
}

// Validate checks that a task id was supplied.
func (p *CancelTaskParams) Validate() error {
	if p.ID == "" {
		return errors.Validation("id is required")
	}
	return nil
}

// ListTasksParams is the input to list_tasks. Both filters are optional;
// when both are present the status filter is applied after resolving the
// assignee index.
type ListTasksParams struct {
	Status   Status `json:"status,omitempty"`
	Assignee string `json:"assignee,omitempty"`
}

// Validate checks the status filter against the known status values.
func (p *ListTasksParams) Validate() error {
	if p.Status != "" && !p.Status.Valid() {
		return errors.Validationf("unknown status %q", p.Status)
	}
	return nil
}

// GetTaskParams is the input to get_task.
type GetTaskParams struct {
	ID string `json:"id"`
}

// Validate checks that a task id was supplied.
func (p *GetTaskParams) Validate() error {
	if p.ID == "" {
		return errors.Validation("id is required")
	}
	return nil
}
