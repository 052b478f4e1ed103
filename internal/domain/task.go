package domain

import (
	"fmt"
	"time"
)

// TaskType distinguishes ordinary work from the graph's terminal gates.
type TaskType string

const (
	TaskWork         TaskType = "work"
	TaskVerification TaskType = "verification"
	TaskFinalization TaskType = "finalization"
)

// TaskStatus is a task's lifecycle state.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskReady    TaskStatus = "ready"
	TaskRunning  TaskStatus = "running"
	TaskComplete TaskStatus = "complete"
	TaskFailed   TaskStatus = "failed"
	TaskBlocked  TaskStatus = "blocked"
)

// taskTransitions is the validTransitions table for Task.Status, in the
// same shape the teacher uses in internal/tasks/types.go.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:  {TaskReady, TaskBlocked},
	TaskReady:    {TaskRunning, TaskBlocked, TaskPending},
	TaskRunning:  {TaskComplete, TaskFailed, TaskBlocked},
	TaskComplete: {},
	TaskFailed:   {TaskBlocked, TaskPending},
	TaskBlocked:  {TaskPending, TaskReady},
}

// ValidTaskTransition reports whether from->to is an allowed edge.
func ValidTaskTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	for _, s := range taskTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Task is one step in a mission's dependency graph.
type Task struct {
	ID          string   `json:"id"`
	MissionID   string   `json:"missionId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TaskType    TaskType `json:"taskType"`

	Status        TaskStatus `json:"status"`
	BlockedReason string     `json:"blockedReason,omitempty"`

	Deps              []string `json:"deps"`
	RequiredArtifacts []string `json:"requiredArtifacts"`
	ArtifactIDs       []string `json:"artifactIds"`
	AssignedAgent     string   `json:"assignedAgent,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	StateVersion uint64 `json:"_stateVersion"`
}

// Validate checks static field constraints, not graph-wide invariants
// (those belong to internal/graph, which sees the whole task set).
func (t *Task) Validate() error {
	if t.MissionID == "" {
		return fmt.Errorf("task missionId is required")
	}
	if t.Title == "" {
		return fmt.Errorf("task title is required")
	}
	switch t.TaskType {
	case TaskWork, TaskVerification, TaskFinalization:
	default:
		return fmt.Errorf("invalid taskType %q", t.TaskType)
	}
	for _, d := range t.Deps {
		if d == t.ID {
			return fmt.Errorf("task %s cannot depend on itself", t.ID)
		}
	}
	return nil
}

// TransitionTo validates and applies a status change, in the teacher's
// Task.TransitionTo idiom.
func (t *Task) TransitionTo(status TaskStatus) error {
	if !ValidTaskTransition(t.Status, status) {
		return fmt.Errorf("invalid task transition %s -> %s", t.Status, status)
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}
