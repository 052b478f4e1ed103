package execution

import (
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
)

// HeartbeatPolicy defines how long an agent may go without a heartbeat
// before it is considered stale, then dead (spec.md §4.I).
type HeartbeatPolicy struct {
	Interval time.Duration
}

// DefaultHeartbeatPolicy beats every 30s, consistent with spec.md §4.I's
// default N.
func DefaultHeartbeatPolicy() HeartbeatPolicy {
	return HeartbeatPolicy{Interval: 30 * time.Second}
}

// StaleAfter is the no-beat duration after which a running agent is
// marked stale (2N).
func (p HeartbeatPolicy) StaleAfter() time.Duration { return 2 * p.Interval }

// DeadAfter is the no-beat duration after which an agent is marked dead
// and its task is reset to ready (5N).
func (p HeartbeatPolicy) DeadAfter() time.Duration { return 5 * p.Interval }

// Transition records one agent liveness change the sweep applied.
type Transition struct {
	AgentID string
	From    domain.AgentStatus
	To      domain.AgentStatus
}

// SweepHeartbeats walks every live agent and applies stale/dead
// transitions per policy, resetting the owning task to ready and
// writing a signal_report artifact when an agent is declared dead.
// Intended to be called once per watchdog tick (spec.md §4.J) — this
// engine owns the policy and the agent/task side effects; the watchdog
// owns the ticking loop.
func (e *Engine) SweepHeartbeats(now time.Time, policy HeartbeatPolicy) ([]Transition, error) {
	var transitions []Transition

	for _, a := range e.store.ListAgents() {
		if !a.IsLive() || a.LastHeartbeat == nil {
			continue
		}
		age := now.Sub(*a.LastHeartbeat)

		switch {
		case age >= policy.DeadAfter() && a.Status != domain.AgentDead:
			if err := e.markDead(a, now); err != nil {
				return transitions, err
			}
			transitions = append(transitions, Transition{AgentID: a.ID, From: a.Status, To: domain.AgentDead})

		case age >= policy.StaleAfter() && a.Status == domain.AgentRunning:
			if _, err := e.store.MutateAgent(a.ID, func(live *domain.Agent) error {
				live.Status = domain.AgentStale
				return nil
			}); err != nil {
				return transitions, err
			}
			transitions = append(transitions, Transition{AgentID: a.ID, From: domain.AgentRunning, To: domain.AgentStale})
		}
	}

	return transitions, nil
}

func (e *Engine) markDead(a *domain.Agent, now time.Time) error {
	if _, err := e.store.MutateAgent(a.ID, func(live *domain.Agent) error {
		live.Status = domain.AgentDead
		return nil
	}); err != nil {
		return fmt.Errorf("execution: mark agent %s dead: %w", a.ID, err)
	}

	if a.TaskID != "" {
		// Running has no direct edge to Ready (domain.taskTransitions); go
		// through Blocked, which both Running and Ready reach it from.
		if _, err := e.store.MutateTask(a.TaskID, func(t *domain.Task) error {
			if t.Status == domain.TaskRunning {
				t.Status = domain.TaskBlocked
				t.BlockedReason = "AGENT_DEAD"
			}
			return nil
		}); err != nil {
			return fmt.Errorf("execution: block task %s after agent death: %w", a.TaskID, err)
		}
		if _, err := e.store.MutateTask(a.TaskID, func(t *domain.Task) error {
			if t.Status == domain.TaskBlocked && t.BlockedReason == "AGENT_DEAD" {
				t.Status = domain.TaskReady
				t.BlockedReason = ""
			}
			return nil
		}); err != nil {
			return fmt.Errorf("execution: reset task %s after agent death: %w", a.TaskID, err)
		}

		report := &domain.Artifact{
			MissionID: a.MissionID,
			TaskID:    a.TaskID,
			Type:      domain.ArtifactSignalReport,
			Label:     "signal_report",
			Payload: map[string]interface{}{
				"agentId": a.ID,
				"signal":  "agent_dead",
				"at":      now.Format(time.RFC3339),
			},
			Provenance: domain.Provenance{Producer: "watchdog", AgentID: a.ID},
		}
		if _, err := e.store.CreateArtifact(report); err != nil {
			return fmt.Errorf("execution: record signal report for agent %s: %w", a.ID, err)
		}
	}

	return nil
}
