package domain

import (
	"fmt"
	"time"
)

// AgentStatus is a delegated worker's lifecycle state.
type AgentStatus string

const (
	AgentSpawning AgentStatus = "spawning"
	AgentRunning  AgentStatus = "running"
	AgentStale    AgentStatus = "stale"
	AgentDead     AgentStatus = "dead"
	AgentComplete AgentStatus = "complete"
	AgentFailed   AgentStatus = "failed"
)

// AgentMode is the spawn model that produced the agent record.
type AgentMode string

const (
	AgentModeRecipe    AgentMode = "recipe"
	AgentModeImmediate AgentMode = "immediate"
)

var agentTransitions = map[AgentStatus][]AgentStatus{
	AgentSpawning: {AgentRunning, AgentFailed},
	AgentRunning:  {AgentStale, AgentComplete, AgentFailed},
	AgentStale:    {AgentRunning, AgentDead},
	AgentDead:     {},
	AgentComplete: {},
	AgentFailed:   {},
}

// ValidAgentTransition reports whether from->to is an allowed edge.
func ValidAgentTransition(from, to AgentStatus) bool {
	if from == to {
		return true
	}
	for _, s := range agentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Agent is the state store's record of a delegated external worker. The
// worker process itself is referenced, never owned, by this record.
type Agent struct {
	ID            string      `json:"id"`
	MissionID     string      `json:"missionId"`
	TaskID        string      `json:"taskId,omitempty"`
	Status        AgentStatus `json:"status"`
	Worktree      string      `json:"worktree"`
	PID           int         `json:"pid,omitempty"`
	LastHeartbeat *time.Time  `json:"lastHeartbeat,omitempty"`
	ExitCode      *int        `json:"exitCode,omitempty"`
	Error         string      `json:"error,omitempty"`
	Mode          AgentMode   `json:"mode"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	StateVersion uint64 `json:"_stateVersion"`
}

// Validate checks required fields and enum membership.
func (a *Agent) Validate() error {
	if a.MissionID == "" {
		return fmt.Errorf("agent missionId is required")
	}
	switch a.Mode {
	case AgentModeRecipe, AgentModeImmediate:
	default:
		return fmt.Errorf("invalid agent mode %q", a.Mode)
	}
	return nil
}

// IsLive reports whether the agent is in a non-terminal status.
func (a *Agent) IsLive() bool {
	switch a.Status {
	case AgentComplete, AgentDead, AgentFailed:
		return false
	default:
		return true
	}
}
