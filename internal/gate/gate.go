// Package gate is the Gate Engine (spec.md §4.G): the single admission
// point every tool call and completion attempt passes through, composing
// internal/statestore, internal/validators, internal/breaker, and
// internal/graph behind one Engine.Validate entry point. Grounded on the
// teacher's pattern of a small chain of independent admission checks
// returning a typed reject reason (internal/mcp's connection/parameter
// checks ahead of Execute).
package gate

import (
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/breaker"
	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/graph"
	"github.com/missioncontrol/missioncontrol/internal/ratecost"
	"github.com/missioncontrol/missioncontrol/internal/statestore"
	"github.com/missioncontrol/missioncontrol/internal/validators"
)

// Code names the spec.md §7 error code a rejected Decision maps to, so
// toolrouter.Router can propagate the right one instead of collapsing
// every denial to the same code.
type Code string

const (
	CodeCircuitBreakerTripped Code = "CIRCUIT_BREAKER_TRIPPED"
	CodeMissionLocked         Code = "MISSION_LOCKED"
	CodeToolNotAllowed        Code = "TOOL_NOT_ALLOWED"
	CodeApprovalRequired      Code = "APPROVAL_REQUIRED"
	CodeCostExceeded          Code = "COST_EXCEEDED"
	CodeRateExceeded          Code = "RATE_EXCEEDED"
	CodeExecutionViolation    Code = "EXECUTION_VIOLATION"
	CodeCompletionBlocked     Code = "COMPLETION_BLOCKED"
	CodeValidation            Code = "VALIDATION_ERROR"
)

// Decision is the Gate Engine's verdict on one admission request.
type Decision struct {
	Allowed bool
	Reason  string
	Code    Code
	Details map[string]interface{}
}

func allow() Decision { return Decision{Allowed: true} }

func deny(code Code, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Code: code}
}

// immediateExecTools start a worker against the caller's armed-mode
// budget right away, the set spec.md §4.G step 2 requires armedMode and
// a risk-threshold check for.
var immediateExecTools = map[string]bool{
	"agent.spawn_agent_immediate": true,
	"agent.execute_recipe":        true,
}

// destructiveTools run operator-visible side effects outside the
// worker's own worktree (spec.md §4.G step 4's "tool is marked
// destructive" clause), independent of the owning mission's class.
var destructiveTools = map[string]bool{
	"selfheal.apply": true,
}

// Request describes one tool call or completion attempt to be gated.
type Request struct {
	MissionID     string
	TaskID        string
	Tool          string // "group.action", e.g. "task.create"
	Args          map[string]interface{}
	EstimatedCost *float64
	Provider      string
}

// Engine composes the independent admission checks into one gate.
type Engine struct {
	store     *statestore.Store
	breaker   *breaker.Engine
	providers *ratecost.Registry
}

// New builds a Gate Engine over store, breakerEngine, and the provider
// rate-limit registry the rate gate (step 6) consults. providers may be
// nil to skip the rate gate (e.g. in tests exercising only the other
// steps).
func New(store *statestore.Store, breakerEngine *breaker.Engine, providers *ratecost.Registry) *Engine {
	return &Engine{store: store, breaker: breakerEngine, providers: providers}
}

// Validate runs every admission check in spec.md §4.G's order,
// short-circuiting (and returning a deny Decision) on the first
// failure, exactly as the teacher's chain of independent checks does
// ahead of Execute.
func (e *Engine) Validate(req Request) (Decision, error) {
	mission, err := e.store.GetMission(req.MissionID)
	if err != nil {
		return Decision{}, err
	}
	now := time.Now().UTC()

	// 1. Breaker tripped.
	if e.breaker.IsLocked(req.MissionID) {
		return deny(CodeCircuitBreakerTripped, fmt.Sprintf("mission %s is locked by its circuit breaker", req.MissionID)), nil
	}
	if e.breaker.IsLocked("global") {
		return deny(CodeCircuitBreakerTripped, "global circuit breaker is locked"), nil
	}
	if mission.Status == domain.MissionLocked {
		return deny(CodeMissionLocked, fmt.Sprintf("mission %s status is locked", req.MissionID)), nil
	}

	// 2. Armed-mode gate for immediate/destructive tools.
	if immediateExecTools[req.Tool] || destructiveTools[req.Tool] {
		global := e.store.GlobalState()
		if !global.ArmedMode {
			return deny(CodeExecutionViolation, fmt.Sprintf("tool %s requires armed mode", req.Tool)), nil
		}
		if !mission.RiskLevel.AtMost(global.RiskThreshold) {
			return deny(CodeExecutionViolation, fmt.Sprintf("mission %s risk %s exceeds threshold %s", req.MissionID, mission.RiskLevel, global.RiskThreshold)), nil
		}
	}

	// 3. Tool permission.
	if !validators.MatchesToolGlob(req.Tool, mission.AllowedTools) {
		return deny(CodeToolNotAllowed, fmt.Sprintf("tool %s is not in mission %s's allowedTools", req.Tool, req.MissionID)), nil
	}

	// 4. Destructive gate.
	if mission.IsDestructive() || destructiveTools[req.Tool] {
		if d, err := e.checkApproval(mission, req); err != nil {
			return Decision{}, err
		} else if !d.Allowed {
			return d, nil
		}
	}

	// 5. Cost gate.
	if req.EstimatedCost != nil {
		if mission.MaxEstimatedCost != nil && *req.EstimatedCost > *mission.MaxEstimatedCost {
			return deny(CodeCostExceeded, fmt.Sprintf("estimated cost %.4f exceeds mission budget %.4f", *req.EstimatedCost, *mission.MaxEstimatedCost)), nil
		}
		if mission.MaxCostPerHour != nil {
			projected := mission.SpendInWindow(now) + *req.EstimatedCost
			if projected > *mission.MaxCostPerHour {
				return deny(CodeCostExceeded, fmt.Sprintf("projected hourly spend %.4f exceeds mission budget %.4f", projected, *mission.MaxCostPerHour)), nil
			}
		}
	}

	// 6. Rate gate.
	if req.Provider != "" && e.providers != nil {
		if limiter := e.providers.Get(req.Provider); limiter != nil {
			if allowed, reason := limiter.Allow(now); !allowed {
				return deny(CodeRateExceeded, fmt.Sprintf("provider %s throttled: %s", req.Provider, reason)), nil
			}
		}
	}

	// Commit the estimated spend only once the call is admitted.
	if req.EstimatedCost != nil {
		if _, err := e.store.RecordMissionSpend(req.MissionID, *req.EstimatedCost, now); err != nil {
			return Decision{}, fmt.Errorf("gate: record mission spend: %w", err)
		}
	}

	return allow(), nil
}

// checkApproval implements the destructive gate: it never auto-approves
// — on the first call for a given mission+tool it creates a pending
// Approval and denies with APPROVAL_REQUIRED; once that approval (or an
// earlier one for the same mission+tool) resolves approved, the call is
// admitted.
func (e *Engine) checkApproval(mission *domain.Mission, req Request) (Decision, error) {
	if existing, found := e.store.FindApprovalByAction(mission.ID, req.Tool); found {
		switch existing.Status {
		case domain.ApprovalApproved, domain.ApprovalAutoApproved:
			return allow(), nil
		default:
			d := deny(CodeApprovalRequired, fmt.Sprintf("mission %s requires approval for %s", mission.ID, req.Tool))
			d.Details = map[string]interface{}{"approvalId": existing.ID}
			return d, nil
		}
	}

	created, err := e.store.CreateApproval(&domain.Approval{
		MissionID: mission.ID,
		TaskID:    req.TaskID,
		Action:    req.Tool,
		ToolName:  req.Tool,
		RiskLevel: mission.RiskLevel,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("gate: create approval: %w", err)
	}
	d := deny(CodeApprovalRequired, fmt.Sprintf("mission %s requires approval for %s", mission.ID, req.Tool))
	d.Details = map[string]interface{}{"approvalId": created.ID}
	return d, nil
}

// ValidateCompletion gates a mission-complete attempt: it loads the
// mission's tasks (building a graph to check finalization status) and
// artifacts, then defers to validators.ValidateCompletion, surfacing
// any missing required artifact types in Details for COMPLETION_BLOCKED
// (spec.md §8's testable completion property).
func (e *Engine) ValidateCompletion(missionID string) (Decision, error) {
	mission, err := e.store.GetMission(missionID)
	if err != nil {
		return Decision{}, err
	}

	tasks := e.store.ListTasksByMission(missionID)
	g, err := graph.Build(tasks)
	if err != nil {
		return deny(CodeCompletionBlocked, fmt.Sprintf("task graph invalid: %v", err)), nil
	}

	artifacts := e.store.ListArtifactsByMission(missionID)

	if err := validators.ValidateCompletion(mission, artifacts, g.FinalizationComplete()); err != nil {
		d := deny(CodeCompletionBlocked, err.Error())
		if missing := validators.MissingArtifactTypes(mission.RequiredArtifacts, artifacts); len(missing) > 0 {
			d.Details = map[string]interface{}{"missingArtifacts": missing}
		}
		return d, nil
	}
	return allow(), nil
}

// ValidateMissionCreate gates a mission-create attempt against the
// mission-contract validator, before the mission ever reaches the store.
func (e *Engine) ValidateMissionCreate(mission *domain.Mission) (Decision, error) {
	if err := validators.ValidateMissionContract(mission); err != nil {
		return deny(CodeValidation, err.Error()), nil
	}
	return allow(), nil
}

// ValidateStatusTransition gates an explicit status-change request.
func (e *Engine) ValidateStatusTransition(kind, from, to string) (Decision, error) {
	if err := validators.ValidateStatusTransition(kind, from, to); err != nil {
		return deny(CodeValidation, err.Error()), nil
	}
	return allow(), nil
}
