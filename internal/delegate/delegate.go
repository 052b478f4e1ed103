// Package delegate is the Delegation Gate (spec.md §4.H): it enforces
// execution-authority on every tool call before the Gate Engine runs,
// and records a violation artifact on every rejection. Grounded on the
// teacher's agents.Spawner interface split between planning and
// dispatch, generalized here to the two-caller-identity model.
package delegate

import (
	"fmt"
	"strings"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/statestore"
)

// CallerIdentity is who is making the tool call, not to be confused
// with a mission's executionAuthority (which constrains what a mission's
// own agents may do).
type CallerIdentity string

const (
	CallerClaudeCode CallerIdentity = "CLAUDE_CODE"
	CallerDesktop    CallerIdentity = "DESKTOP"
)

// desktopAllowed is the Desktop-allowed tool set: mission/approval/state
// reads, plus a narrow spawn/health surface. Wildcard matching follows
// the same "x.*" convention as mission.allowedTools.
var desktopAllowed = []string{
	"mission.get", "mission.list",
	"task.get", "task.list",
	"artifact.get", "artifact.list",
	"approval.get", "approval.list",
	"state.get_stats",
	"agent.spawn_agent",
	"agent.get", "agent.list", "agent.heartbeat",
	"provider.health",
}

// executionTools are tools that, for a CLAUDE_CODE-authority mission,
// may not be invoked by a caller other than the mission's own worker —
// these mutate execution state in ways that should only originate from
// the delegated agent loop, not from an external Desktop client.
var executionTools = map[string]bool{
	"artifact.create":    true, // when artifact is code-producing; refined by IsExecutionArtifact
	"task.update_status": true, // toward completion
	"selfheal.apply":     true,
}

// matchesGlob mirrors validators.MatchesToolGlob without importing it,
// since the allowed-set glob syntax here is identical but scoped to the
// delegation gate's own fixed list.
func matchesGlob(tool string, allowed []string) bool {
	for _, pattern := range allowed {
		if pattern == "*" || pattern == tool {
			return true
		}
		if strings.HasSuffix(pattern, ".*") && strings.HasPrefix(tool, strings.TrimSuffix(pattern, "*")) {
			return true
		}
	}
	return false
}

// Request mirrors gate.Request plus the caller identity the Gate Engine
// does not need to know about.
type Request struct {
	Caller    CallerIdentity
	MissionID string
	TaskID    string
	Tool      string
}

// Code names the spec.md §7 error code a rejected Decision maps to, so
// toolrouter.Router can propagate the right one instead of collapsing
// every denial to the same code.
type Code string

const (
	CodeExecutionViolation Code = "EXECUTION_VIOLATION"
	CodeModeLockViolation  Code = "MODE_LOCK_VIOLATION"
)

// Decision is this gate's verdict.
type Decision struct {
	Allowed bool
	Reason  string
	Code    Code
}

// Gate enforces execution-authority ahead of the Gate Engine.
type Gate struct {
	store *statestore.Store
}

// New builds a delegation Gate over store.
func New(store *statestore.Store) *Gate {
	return &Gate{store: store}
}

// Validate checks caller identity, mission executionAuthority, and mode
// lock, recording a violation artifact and blocking the task in context
// on any rejection.
func (g *Gate) Validate(req Request) (Decision, error) {
	mission, err := g.store.GetMission(req.MissionID)
	if err != nil {
		return Decision{}, err
	}

	if reason, rejected := g.checkCallerIdentity(req, mission); rejected {
		return g.reject(req, mission, reason, CodeExecutionViolation)
	}
	if reason, rejected := g.checkModeLock(req, mission); rejected {
		return g.reject(req, mission, reason, CodeModeLockViolation)
	}

	return Decision{Allowed: true}, nil
}

func (g *Gate) checkCallerIdentity(req Request, mission *domain.Mission) (string, bool) {
	switch req.Caller {
	case CallerClaudeCode:
		// CLAUDE_CODE issuing execution tools against a CLAUDE_CODE-authority
		// mission is the expected path (the delegated worker itself); only a
		// DESKTOP caller attempting the same is a violation, handled below.
		return "", false
	case CallerDesktop:
		if !matchesGlob(req.Tool, desktopAllowed) {
			return fmt.Sprintf("tool %s is not in the Desktop-allowed set", req.Tool), true
		}
		if mission.ExecutionAuthority == domain.AuthorityClaudeCode && executionTools[req.Tool] {
			return fmt.Sprintf("mission %s requires CLAUDE_CODE authority for %s", mission.ID, req.Tool), true
		}
		return "", false
	default:
		return fmt.Sprintf("unknown caller identity %q", req.Caller), true
	}
}

func (g *Gate) checkModeLock(req Request, mission *domain.Mission) (string, bool) {
	switch mission.ExecutionMode {
	case domain.ModeRecipeOnly:
		if req.Tool == "agent.spawn_agent_immediate" {
			return fmt.Sprintf("mission %s is RECIPE_ONLY; spawn_agent_immediate is rejected", mission.ID), true
		}
	case domain.ModeImmediateOnly:
		if req.Tool == "agent.spawn_agent" {
			return fmt.Sprintf("mission %s is IMMEDIATE_ONLY; spawn_agent is rejected", mission.ID), true
		}
	}
	return "", false
}

func (g *Gate) reject(req Request, mission *domain.Mission, reason string, code Code) (Decision, error) {
	now := time.Now().UTC()
	violation := &domain.Artifact{
		MissionID: req.MissionID,
		TaskID:    req.TaskID,
		Type:      domain.ArtifactViolation,
		Label:     "execution_violation",
		Payload: map[string]interface{}{
			"attemptedAction":   req.Tool,
			"attemptedBy":       string(req.Caller),
			"requiredAuthority": string(mission.ExecutionAuthority),
			"toolAttempted":     req.Tool,
			"timestamp":         now.Format(time.RFC3339),
			"blocked":           true,
		},
		Provenance: domain.Provenance{Producer: "system"},
	}
	if _, err := g.store.CreateArtifact(violation); err != nil {
		return Decision{}, fmt.Errorf("delegate: record violation artifact: %w", err)
	}

	if req.TaskID != "" {
		if _, err := g.store.MutateTask(req.TaskID, func(t *domain.Task) error {
			t.Status = domain.TaskBlocked
			t.BlockedReason = "EXECUTION_VIOLATION"
			return nil
		}); err != nil {
			return Decision{}, fmt.Errorf("delegate: block task: %w", err)
		}
	}

	return Decision{Allowed: false, Reason: reason, Code: code}, nil
}
