package ledger

// TxResult is returned by every successful transaction.
type TxResult struct {
	// Success is always true on the result path; rejections surface as
	// errors instead.
	Success bool `json:"success"`

	// ID is the id of the task the transaction touched.
	ID string `json:"id"`

	// Task is the task record after the transaction applied.
	Task *Task `json:"task"`
}

// ListResult is returned by list_tasks.
type ListResult struct {
	// Tasks holds the matching tasks, newest first.
	Tasks []*Task `json:"tasks"`

	// Count is the number of matching tasks.
	Count int `json:"count"`
}

// GetResult is returned by get_task.
type GetResult struct {
	Task *Task `json:"task"`
}

// StatsResult is returned by stats. Under intact invariants,
// Open + Completed + Cancelled always equals Total.
type StatsResult struct {
	Total     int `json:"total"`
	Open      int `json:"open"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}
