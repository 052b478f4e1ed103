package execution

import (
	"testing"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/breaker"
	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/ratecost"
	"github.com/missioncontrol/missioncontrol/internal/statestore"
)

type fakeAllocator struct {
	path string
	err  error
}

func (f *fakeAllocator) Allocate(missionID, branch string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

func newTestEngine(t *testing.T, allocator WorktreeAllocator, maxSpawnPerHour int) (*Engine, *statestore.Store) {
	t.Helper()
	store := statestore.New()
	breakerEngine := breaker.New(store, breaker.Thresholds{MaxFailures: 10, MaxImmediateExecs: 10, LockDuration: time.Minute}, nil)
	return New(store, ratecost.NewEstimator(), breakerEngine, allocator, maxSpawnPerHour), store
}

func newTestMission(t *testing.T, store *statestore.Store) *domain.Mission {
	t.Helper()
	cost := 5.0
	m, err := store.CreateMission(&domain.Mission{
		Name:               "m",
		MissionClass:       domain.ClassImplementation,
		RiskLevel:          domain.RiskLow,
		TriggerSource:      domain.TriggerManual,
		CompletionGate:     "artifacts",
		ExecutionAuthority: domain.AuthorityClaudeCode,
		ExecutionMode:      domain.ModeImmediateOnly,
		AllowedTools:       []string{"*"},
		MaxEstimatedCost:   &cost,
	})
	if err != nil {
		t.Fatalf("CreateMission: %v", err)
	}
	if _, err := store.MutateMission(m.ID, func(mm *domain.Mission) error {
		mm.Status = domain.MissionRunning
		return nil
	}); err != nil {
		t.Fatalf("MutateMission to running: %v", err)
	}
	return m
}

func TestCreateRecipeWritesArtifact(t *testing.T) {
	e, store := newTestEngine(t, &fakeAllocator{path: "/work/tree"}, 10)
	m := newTestMission(t, store)

	artifact, err := e.CreateRecipe(RecipeRequest{
		MissionID:         m.ID,
		Model:             "claude-sonnet",
		Prompt:            "do the thing",
		RequiredArtifacts: []string{domain.ArtifactGitDiff},
		RiskLevel:         domain.RiskLow,
		MinTokens:         1000,
		MaxTokens:         2000,
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	if artifact.Type != domain.ArtifactAgentRecipe || !artifact.IsImmutable() {
		t.Fatalf("expected immutable agent_recipe artifact, got %+v", artifact)
	}
}

func TestCreateRecipeRejectsOverBudget(t *testing.T) {
	e, store := newTestEngine(t, nil, 10)
	m := newTestMission(t, store)

	_, err := e.CreateRecipe(RecipeRequest{
		MissionID: m.ID,
		Model:     "claude-opus",
		MinTokens: 1_000_000,
		MaxTokens: 2_000_000,
	})
	if err == nil {
		t.Fatal("expected cost-over-budget error")
	}
}

func TestSpawnImmediateRejectsWhenUnarmed(t *testing.T) {
	e, store := newTestEngine(t, &fakeAllocator{path: "/wt"}, 10)
	m := newTestMission(t, store)

	agent, d, err := e.SpawnImmediate(ImmediateRequest{
		MissionID:         m.ID,
		RequiredArtifacts: []string{domain.ArtifactGitDiff},
		RollbackStrategy:  "git revert",
	})
	if err != nil {
		t.Fatalf("SpawnImmediate: %v", err)
	}
	if d.Allowed || agent != nil {
		t.Fatal("expected rejection while unarmed")
	}

	got, _ := store.GetMission(m.ID)
	if got.Status != domain.MissionBlocked {
		t.Fatalf("expected mission blocked after rejection, got %s", got.Status)
	}
}

func TestSpawnImmediateSucceedsWhenArmed(t *testing.T) {
	e, store := newTestEngine(t, &fakeAllocator{path: "/wt"}, 10)
	m := newTestMission(t, store)
	store.SetArmedMode(true)

	agent, d, err := e.SpawnImmediate(ImmediateRequest{
		MissionID:         m.ID,
		Branch:            "agent/work",
		RequiredArtifacts: []string{domain.ArtifactGitDiff},
		RollbackStrategy:  "git revert",
		EstimatedCost:     ratecost.Estimate{Max: 1.0},
	})
	if err != nil {
		t.Fatalf("SpawnImmediate: %v", err)
	}
	if !d.Allowed || agent == nil {
		t.Fatalf("expected success, got reason: %s", d.Reason)
	}
	if agent.Worktree != "/wt" || agent.Status != domain.AgentSpawning {
		t.Fatalf("unexpected agent: %+v", agent)
	}

	got, _ := store.GetMission(m.ID)
	if got.ImmediateExecCount != 1 || got.CooldownUntil == nil {
		t.Fatalf("expected cooldown + counter update, got %+v", got)
	}
}

func TestSpawnImmediateRejectsDuringCooldown(t *testing.T) {
	e, store := newTestEngine(t, &fakeAllocator{path: "/wt"}, 10)
	m := newTestMission(t, store)
	store.SetArmedMode(true)

	req := ImmediateRequest{MissionID: m.ID, RequiredArtifacts: []string{domain.ArtifactGitDiff}, RollbackStrategy: "revert"}
	if _, d, err := e.SpawnImmediate(req); err != nil || !d.Allowed {
		t.Fatalf("first spawn should succeed: %v %+v", err, d)
	}

	_, d, err := e.SpawnImmediate(req)
	if err != nil {
		t.Fatalf("SpawnImmediate: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected second immediate spawn to be rejected by cooldown")
	}
}

func TestSweepHeartbeatsMarksDeadAndResetsTask(t *testing.T) {
	e, store := newTestEngine(t, &fakeAllocator{path: "/wt"}, 10)
	m := newTestMission(t, store)
	task, err := store.CreateTask(&domain.Task{MissionID: m.ID, Title: "t", TaskType: domain.TaskWork})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := store.MutateTask(task.ID, func(tt *domain.Task) error {
		tt.Status = domain.TaskReady
		return nil
	}); err != nil {
		t.Fatalf("MutateTask to ready: %v", err)
	}
	if _, err := store.MutateTask(task.ID, func(tt *domain.Task) error {
		tt.Status = domain.TaskRunning
		return nil
	}); err != nil {
		t.Fatalf("MutateTask to running: %v", err)
	}

	agent, err := store.CreateAgent(&domain.Agent{MissionID: m.ID, TaskID: task.ID, Mode: domain.AgentModeImmediate})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	old := time.Now().UTC().Add(-10 * time.Minute)
	if _, err := store.RecordHeartbeat(agent.ID, old); err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}
	if _, err := store.MutateAgent(agent.ID, func(a *domain.Agent) error {
		a.Status = domain.AgentRunning
		return nil
	}); err != nil {
		t.Fatalf("MutateAgent to running: %v", err)
	}

	policy := DefaultHeartbeatPolicy()
	transitions, err := e.SweepHeartbeats(time.Now().UTC(), policy)
	if err != nil {
		t.Fatalf("SweepHeartbeats: %v", err)
	}
	if len(transitions) != 1 || transitions[0].To != domain.AgentDead {
		t.Fatalf("expected one dead transition, got %+v", transitions)
	}

	gotTask, _ := store.GetTask(task.ID)
	if gotTask.Status != domain.TaskReady {
		t.Fatalf("expected task reset to ready, got %s", gotTask.Status)
	}

	artifacts := store.ListArtifactsByMission(m.ID)
	found := false
	for _, a := range artifacts {
		if a.Type == domain.ArtifactSignalReport {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a signal_report artifact for the dead agent")
	}
}
