// Package execution is the Hybrid Execution & Delegation Gate engine
// (spec.md §4.I): recipe-mode agent planning (no process started) and
// armed immediate-mode spawning, plus the heartbeat staleness policy
// that governs every spawned agent's liveness. Grounded on the
// teacher's internal/agents/spawner.go ProcessSpawner (spawn
// serialization, per-type sequence counters, running-agent tracking)
// and internal/supervisor/dispatcher.go's plan-then-dispatch split,
// generalized from launching a visible WezTerm pane to allocating an
// opaque worktree and registering an Agent record.
package execution

import (
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/breaker"
	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/ratecost"
	"github.com/missioncontrol/missioncontrol/internal/statestore"
)

// Decision is this engine's verdict on a spawn attempt.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// WorktreeAllocator hands out a worktree path for a newly spawned agent.
// Actual worktree creation is internal/git's concern; execution only
// depends on the narrow interface it needs.
type WorktreeAllocator interface {
	Allocate(missionID, branch string) (path string, err error)
}

// Engine plans (recipe mode) and spawns (immediate mode) agents.
type Engine struct {
	store           *statestore.Store
	estimator       *ratecost.Estimator
	breaker         *breaker.Engine
	worktrees       WorktreeAllocator
	maxSpawnPerHour int
}

// New builds an execution Engine. maxSpawnPerHour bounds the global
// immediate-spawn rate (spec.md §4.I default: 10).
func New(store *statestore.Store, estimator *ratecost.Estimator, breakerEngine *breaker.Engine, worktrees WorktreeAllocator, maxSpawnPerHour int) *Engine {
	return &Engine{store: store, estimator: estimator, breaker: breakerEngine, worktrees: worktrees, maxSpawnPerHour: maxSpawnPerHour}
}

// RecipeRequest describes a recipe to plan — no worker is started.
type RecipeRequest struct {
	MissionID         string
	TaskID            string
	Model             string
	Prompt            string
	Branch            string
	AllowedTools      []string
	RequiredArtifacts []string
	RiskLevel         domain.RiskLevel
	MinTokens         int
	MaxTokens         int
	ExpiresAfter      time.Duration
}

// CreateRecipe validates the mission contract and cost, then writes an
// immutable agent_recipe artifact. No worktree is allocated and no
// agent record is created — execute_recipe does that later.
func (e *Engine) CreateRecipe(req RecipeRequest) (*domain.Artifact, error) {
	mission, err := e.store.GetMission(req.MissionID)
	if err != nil {
		return nil, err
	}

	cost, err := e.estimator.Estimate(req.Model, req.MinTokens, req.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("execution: estimate cost: %w", err)
	}
	if mission.MaxEstimatedCost != nil && cost.Max > *mission.MaxEstimatedCost {
		return nil, fmt.Errorf("execution: estimated cost %.4f exceeds mission budget %.4f", cost.Max, *mission.MaxEstimatedCost)
	}

	now := time.Now().UTC()
	payload := map[string]interface{}{
		"model":             req.Model,
		"prompt":            req.Prompt,
		"branch":            req.Branch,
		"allowedTools":      req.AllowedTools,
		"requiredArtifacts": req.RequiredArtifacts,
		"riskLevel":         string(req.RiskLevel),
		"cost":              cost,
	}
	if req.ExpiresAfter > 0 {
		payload["expiresAt"] = now.Add(req.ExpiresAfter).Format(time.RFC3339)
	}

	artifact := &domain.Artifact{
		MissionID:  req.MissionID,
		TaskID:     req.TaskID,
		Type:       domain.ArtifactAgentRecipe,
		Label:      "agent_recipe",
		Payload:    payload,
		Provenance: domain.Provenance{Producer: "system"},
	}
	return e.store.CreateArtifact(artifact)
}

// ExecuteRecipe loads a previously created agent_recipe artifact and
// routes it through SpawnImmediate, the only path from recipe to a
// running agent (spec.md §4.I).
func (e *Engine) ExecuteRecipe(recipeArtifactID string, rollbackStrategy string) (*domain.Agent, Decision, error) {
	recipe, err := e.store.GetArtifact(recipeArtifactID)
	if err != nil {
		return nil, Decision{}, err
	}
	if recipe.Type != domain.ArtifactAgentRecipe {
		return nil, Decision{}, fmt.Errorf("execution: artifact %s is not an agent_recipe", recipeArtifactID)
	}

	branch, _ := recipe.Payload["branch"].(string)
	requiredArtifacts := stringSlice(recipe.Payload["requiredArtifacts"])

	cost := ratecost.Estimate{}
	if c, ok := recipe.Payload["cost"].(ratecost.Estimate); ok {
		cost = c
	}

	return e.SpawnImmediate(ImmediateRequest{
		MissionID:         recipe.MissionID,
		TaskID:            recipe.TaskID,
		Branch:            branch,
		RequiredArtifacts: requiredArtifacts,
		RollbackStrategy:  rollbackStrategy,
		EstimatedCost:     cost,
	})
}

func stringSlice(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
