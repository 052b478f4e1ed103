package toolrouter

import (
	"time"

	"github.com/missioncontrol/missioncontrol/internal/breaker"
	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/execution"
	"github.com/missioncontrol/missioncontrol/internal/statestore"
)

// ResumeOutcome summarizes what Resume did for one mission, for startup
// logging.
type ResumeOutcome struct {
	MissionID string
	Outcome   string // "resubscribed", "agent_dead_task_reset", "task_reset", "ambiguous"
}

// Resume implements spec.md §4.L's resume-on-reconnect procedure: for
// every active mission it finds the last ready/running task and the
// last running/stale agent, reconciles agent liveness against the
// heartbeat policy, resets failed tasks the breaker still allows to
// retry, and escalates missions it cannot place into a known state.
// Never restarts a mission from scratch.
func Resume(store *statestore.Store, breakerEngine *breaker.Engine, policy execution.HeartbeatPolicy, now time.Time) ([]ResumeOutcome, error) {
	var outcomes []ResumeOutcome

	missions := store.ListMissions(domain.MissionRunning, domain.MissionBlocked, domain.MissionNeedsReview)
	for _, mission := range missions {
		outcome, err := resumeMission(store, breakerEngine, policy, mission, now)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func resumeMission(store *statestore.Store, breakerEngine *breaker.Engine, policy execution.HeartbeatPolicy, mission *domain.Mission, now time.Time) (ResumeOutcome, error) {
	tasks := store.ListTasksByMission(mission.ID)

	lastActive := lastTaskIn(tasks, domain.TaskReady, domain.TaskRunning)
	lastAgent := lastAgentIn(store, mission.ID, domain.AgentRunning, domain.AgentStale)

	switch {
	case lastAgent != nil:
		dead := lastAgent.LastHeartbeat == nil
		if !dead {
			dead = now.Sub(*lastAgent.LastHeartbeat) >= policy.DeadAfter()
		}
		if dead {
			if err := markDeadAndResetTask(store, lastAgent); err != nil {
				return ResumeOutcome{}, err
			}
			return ResumeOutcome{MissionID: mission.ID, Outcome: "agent_dead_task_reset"}, nil
		}
		return ResumeOutcome{MissionID: mission.ID, Outcome: "resubscribed"}, nil

	case lastActive != nil:
		return ResumeOutcome{MissionID: mission.ID, Outcome: "resubscribed"}, nil

	default:
		if resetAny, err := resetEligibleFailedTasks(store, breakerEngine, mission, tasks); err != nil {
			return ResumeOutcome{}, err
		} else if resetAny {
			return ResumeOutcome{MissionID: mission.ID, Outcome: "task_reset"}, nil
		}

		if err := escalateAmbiguous(store, mission); err != nil {
			return ResumeOutcome{}, err
		}
		return ResumeOutcome{MissionID: mission.ID, Outcome: "ambiguous"}, nil
	}
}

func lastTaskIn(tasks []*domain.Task, statuses ...domain.TaskStatus) *domain.Task {
	var found *domain.Task
	for _, t := range tasks {
		for _, s := range statuses {
			if t.Status == s {
				found = t
			}
		}
	}
	return found
}

func lastAgentIn(store *statestore.Store, missionID string, statuses ...domain.AgentStatus) *domain.Agent {
	var found *domain.Agent
	for _, a := range store.ListAgents() {
		if a.MissionID != missionID {
			continue
		}
		for _, s := range statuses {
			if a.Status == s {
				found = a
			}
		}
	}
	return found
}

// markDeadAndResetTask mirrors internal/execution's markDead recovery:
// Running has no direct edge to Ready, so the task goes through Blocked.
func markDeadAndResetTask(store *statestore.Store, agent *domain.Agent) error {
	if _, err := store.MutateAgent(agent.ID, func(a *domain.Agent) error {
		a.Status = domain.AgentDead
		return nil
	}); err != nil {
		return err
	}
	if agent.TaskID == "" {
		return nil
	}
	if _, err := store.MutateTask(agent.TaskID, func(t *domain.Task) error {
		t.Status = domain.TaskBlocked
		t.BlockedReason = "AGENT_DEAD"
		return nil
	}); err != nil {
		return err
	}
	_, err := store.MutateTask(agent.TaskID, func(t *domain.Task) error {
		t.Status = domain.TaskReady
		t.BlockedReason = ""
		return nil
	})
	return err
}

// resetEligibleFailedTasks resets every failed task back to ready
// (via the legal Failed->Pending->Ready hop) when the mission's breaker
// is not locked. It does not consult self-heal history, which lives in
// the selfheal engine's own in-memory state.
func resetEligibleFailedTasks(store *statestore.Store, breakerEngine *breaker.Engine, mission *domain.Mission, tasks []*domain.Task) (bool, error) {
	if breakerEngine.IsLocked(mission.ID) {
		return false, nil
	}

	reset := false
	for _, t := range tasks {
		if t.Status != domain.TaskFailed {
			continue
		}
		if _, err := store.MutateTask(t.ID, func(tt *domain.Task) error {
			tt.Status = domain.TaskPending
			return nil
		}); err != nil {
			return false, err
		}
		if _, err := store.MutateTask(t.ID, func(tt *domain.Task) error {
			tt.Status = domain.TaskReady
			return nil
		}); err != nil {
			return false, err
		}
		reset = true
	}
	return reset, nil
}

func escalateAmbiguous(store *statestore.Store, mission *domain.Mission) error {
	if !domain.ValidMissionTransition(mission.Status, domain.MissionNeedsReview) {
		return nil
	}
	_, err := store.MutateMission(mission.ID, func(m *domain.Mission) error {
		m.Status = domain.MissionNeedsReview
		m.BlockedReason = "AMBIGUOUS_RESUME"
		return nil
	})
	return err
}
