package ledger

import (
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	// StatusOpen is the only non-terminal status; every task starts here.
	StatusOpen Status = "open"

	// StatusCompleted indicates the task was finished by its creator or
	// assignee.
	StatusCompleted Status = "completed"

	// StatusCancelled indicates the task was withdrawn by its creator or
	// an admin.
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid returns true if s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Task is the central entity of the ledger.
//
// Tasks are created by add_task, transitioned at most once by
// complete_task or cancel_task, and never deleted. All timestamps come
// from the operation envelope, so every node stores identical records.
type Task struct {
	// ID is the sequential task identifier, task_NNNNNN. Immutable.
	ID string `json:"id"`

	// Title is the short task description, at most 140 characters.
	Title string `json:"title"`

	// Desc is the optional long description, at most 1000 characters.
	Desc string `json:"desc,omitempty"`

	// Assignee is the identity the task is assigned to, if any. Set at
	// creation and never reassigned.
	Assignee string `json:"assignee,omitempty"`

	// Creator is the signer of the creating operation. Immutable.
	Creator string `json:"creator"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// CreatedAt is the envelope timestamp of the creating operation.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the envelope timestamp of the last mutation.
	UpdatedAt time.Time `json:"updated_at"`

	// CompletedBy is the signer that completed the task, set only on the
	// open to completed transition.
	CompletedBy string `json:"completed_by,omitempty"`

	// CancelledBy is the signer that cancelled the task, set only on the
	// open to cancelled transition.
	CancelledBy string `json:"cancelled_by,omitempty"`
}
