package ledger

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusOpen, "open"},
		{StatusCompleted, "completed"},
		{StatusCancelled, "cancelled"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status %v.String() = %s, want %s", tt.status, got, tt.expected)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusOpen, false},
		{StatusCompleted, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		if tt.status.IsTerminal() != tt.terminal {
			t.Errorf("Status %s: expected terminal=%v, got %v", tt.status, tt.terminal, !tt.terminal)
		}
	}
}

func TestStatusValid(t *testing.T) {
	tests := []struct {
		status Status
		valid  bool
	}{
		{StatusOpen, true},
		{StatusCompleted, true},
		{StatusCancelled, true},
		{Status(""), false},
		{Status("pending"), false},
		{Status("OPEN"), false},
	}

	for _, tt := range tests {
		if tt.status.Valid() != tt.valid {
			t.Errorf("Status %q: expected valid=%v, got %v", tt.status, tt.valid, !tt.valid)
		}
	}
}

func TestFormatTaskID(t *testing.T) {
	tests := []struct {
		seq      int64
		expected string
	}{
		{1, "task_000001"},
		{42, "task_000042"},
		{999999, "task_999999"},
		{1234567, "task_1234567"},
	}

	for _, tt := range tests {
		if got := formatTaskID(tt.seq); got != tt.expected {
			t.Errorf("formatTaskID(%d) = %s, want %s", tt.seq, got, tt.expected)
		}
	}
}

func TestStatusSetKey(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusOpen, "tasks:open"},
		{StatusCompleted, "tasks:completed"},
		{StatusCancelled, "tasks:cancelled"},
		{Status("bogus"), ""},
	}

	for _, tt := range tests {
		if got := statusSetKey(tt.status); got != tt.expected {
			t.Errorf("statusSetKey(%q) = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestTaskKeys(t *testing.T) {
	if got := taskKey("task_000001"); got != "task:task_000001" {
		t.Errorf("taskKey = %q", got)
	}
	if got := assigneeKey("alice"); got != "tasks:assignee:alice" {
		t.Errorf("assigneeKey = %q", got)
	}
}

func TestTaskJSONShape(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	task := &Task{
		ID:        "task_000001",
		Title:     "Write the report",
		Creator:   "alice",
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got := string(data)

	for _, want := range []string{`"id":"task_000001"`, `"creator":"alice"`, `"status":"open"`, `"created_at"`, `"updated_at"`} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s in %s", want, got)
		}
	}

	// Unset optional fields stay off the wire.
	for _, absent := range []string{"desc", "assignee", "completed_by", "cancelled_by"} {
		if strings.Contains(got, absent) {
			t.Errorf("did not expect %q in %s", absent, got)
		}
	}
}

func TestTaskJSONRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)
	task := &Task{
		ID:          "task_000007",
		Title:       "Deploy",
		Desc:        "Roll out to staging first",
		Assignee:    "bob",
		Creator:     "alice",
		Status:      StatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now.Add(time.Hour),
		CompletedBy: "bob",
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got Task
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got.ID != task.ID || got.Title != task.Title || got.Desc != task.Desc {
		t.Errorf("identity fields changed: %+v", got)
	}
	if got.Assignee != "bob" || got.Creator != "alice" || got.CompletedBy != "bob" {
		t.Errorf("identity fields changed: %+v", got)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected status completed, got %s", got.Status)
	}
	if !got.CreatedAt.Equal(task.CreatedAt) || !got.UpdatedAt.Equal(task.UpdatedAt) {
		t.Errorf("timestamps changed: %v / %v", got.CreatedAt, got.UpdatedAt)
	}
}
