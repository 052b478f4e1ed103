package execution

import (
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/ratecost"
)

const immediateCooldown = 60 * time.Second

// maxImmediateExecsPerMission caps how many immediate spawns one
// mission may make; once it is reached, further immediate spawns are
// rejected (spec.md §4.I).
const maxImmediateExecsPerMission = 3

// ImmediateRequest describes an armed-mode spawn attempt.
type ImmediateRequest struct {
	MissionID         string
	TaskID            string
	Branch            string
	RequiredArtifacts []string
	RollbackStrategy  string
	EstimatedCost     ratecost.Estimate
}

// SpawnImmediate runs the full armed-mode gate chain and, on pass,
// allocates a worktree, creates the Agent record, and writes a
// pre_flight_snapshot artifact. On any failure it blocks the mission,
// records a failure_report artifact, and updates breaker counters.
func (e *Engine) SpawnImmediate(req ImmediateRequest) (*domain.Agent, Decision, error) {
	mission, err := e.store.GetMission(req.MissionID)
	if err != nil {
		return nil, Decision{}, err
	}
	global := e.store.GlobalState()
	now := time.Now().UTC()

	if reason, rejected := e.checkImmediatePreconditions(mission, global, req, now); rejected {
		return e.rejectImmediate(mission, reason)
	}

	worktree := ""
	if e.worktrees != nil {
		worktree, err = e.worktrees.Allocate(req.MissionID, req.Branch)
		if err != nil {
			return e.rejectImmediate(mission, fmt.Sprintf("worktree allocation failed: %v", err))
		}
	}

	agent, err := e.store.CreateAgent(&domain.Agent{
		MissionID: req.MissionID,
		TaskID:    req.TaskID,
		Worktree:  worktree,
		Mode:      domain.AgentModeImmediate,
	})
	if err != nil {
		return nil, Decision{}, fmt.Errorf("execution: create agent: %w", err)
	}

	snapshot := &domain.Artifact{
		MissionID: req.MissionID,
		TaskID:    req.TaskID,
		Type:      domain.ArtifactPreFlightSnapshot,
		Label:     "pre_flight_snapshot",
		Payload: map[string]interface{}{
			"agentId":           agent.ID,
			"worktree":          worktree,
			"requiredArtifacts": req.RequiredArtifacts,
			"rollbackStrategy":  req.RollbackStrategy,
			"estimatedCost":     req.EstimatedCost,
			"takenAt":           now.Format(time.RFC3339),
		},
		Provenance: domain.Provenance{Producer: "system", AgentID: agent.ID, Worktree: worktree},
	}
	if _, err := e.store.CreateArtifact(snapshot); err != nil {
		return nil, Decision{}, fmt.Errorf("execution: record pre-flight snapshot: %w", err)
	}

	if _, err := e.store.MutateMission(req.MissionID, func(m *domain.Mission) error {
		m.ImmediateExecCount++
		cooldownUntil := now.Add(immediateCooldown)
		m.CooldownUntil = &cooldownUntil
		return nil
	}); err != nil {
		return nil, Decision{}, fmt.Errorf("execution: update mission counters: %w", err)
	}
	e.store.IncrementHourly(1, 0, 0, now)
	if err := e.breaker.RecordImmediateExec(req.MissionID); err != nil {
		return nil, Decision{}, fmt.Errorf("execution: record immediate exec: %w", err)
	}

	return agent, allow(), nil
}

func (e *Engine) checkImmediatePreconditions(mission *domain.Mission, global *domain.GlobalState, req ImmediateRequest, now time.Time) (string, bool) {
	if !global.ArmedMode {
		return "armed mode is off", true
	}
	if !mission.RiskLevel.AtMost(global.RiskThreshold) {
		return fmt.Sprintf("mission risk %s exceeds threshold %s", mission.RiskLevel, global.RiskThreshold), true
	}
	if mission.Status == domain.MissionLocked {
		return "mission is locked", true
	}
	if e.breaker.IsLocked(req.MissionID) {
		return "mission circuit breaker is locked", true
	}
	if e.breaker.IsLocked("global") {
		return "global circuit breaker is locked", true
	}
	if mission.CooldownUntil != nil && now.Before(*mission.CooldownUntil) {
		return fmt.Sprintf("mission is in cooldown until %s", mission.CooldownUntil.Format(time.RFC3339)), true
	}
	if mission.ImmediateExecCount >= maxImmediateExecsPerMission {
		return fmt.Sprintf("mission has reached its immediate exec limit of %d", maxImmediateExecsPerMission), true
	}
	if e.maxSpawnPerHour > 0 && global.Hourly.SpawnCount >= e.maxSpawnPerHour {
		return fmt.Sprintf("global spawn rate has reached its hourly limit of %d", e.maxSpawnPerHour), true
	}
	if len(req.RequiredArtifacts) == 0 {
		return "immediate spawn requires at least one required artifact", true
	}
	if req.RollbackStrategy == "" {
		return "immediate spawn requires a rollback strategy", true
	}
	if mission.MaxEstimatedCost != nil && req.EstimatedCost.Max > *mission.MaxEstimatedCost {
		return fmt.Sprintf("estimated cost %.4f exceeds mission budget %.4f", req.EstimatedCost.Max, *mission.MaxEstimatedCost), true
	}
	return "", false
}

func (e *Engine) rejectImmediate(mission *domain.Mission, reason string) (*domain.Agent, Decision, error) {
	failureReport := &domain.Artifact{
		MissionID: mission.ID,
		Type:      domain.ArtifactBuildLog,
		Label:     "failure_report",
		Payload: map[string]interface{}{
			"reason": reason,
			"stage":  "immediate_spawn",
		},
		Provenance: domain.Provenance{Producer: "system"},
	}
	if _, err := e.store.CreateArtifact(failureReport); err != nil {
		return nil, Decision{}, fmt.Errorf("execution: record failure report: %w", err)
	}

	if domain.ValidMissionTransition(mission.Status, domain.MissionBlocked) {
		if _, err := e.store.MutateMission(mission.ID, func(m *domain.Mission) error {
			m.Status = domain.MissionBlocked
			m.BlockedReason = reason
			return nil
		}); err != nil {
			return nil, Decision{}, fmt.Errorf("execution: block mission: %w", err)
		}
	}
	if err := e.breaker.RecordFailure(mission.ID); err != nil {
		return nil, Decision{}, fmt.Errorf("execution: record breaker failure: %w", err)
	}

	return nil, deny(reason), nil
}
