package graph

import (
	"testing"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
)

func mkTask(id string, taskType domain.TaskType, status domain.TaskStatus, deps ...string) *domain.Task {
	return &domain.Task{
		ID:        id,
		MissionID: "mission-1",
		Title:     id,
		TaskType:  taskType,
		Status:    status,
		Deps:      deps,
		CreatedAt: time.Now().UTC(),
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	a := mkTask("task-a", domain.TaskWork, domain.TaskPending, "task-b")
	b := mkTask("task-b", domain.TaskWork, domain.TaskPending, "task-a")

	_, err := Build([]*domain.Task{a, b})
	if err == nil {
		t.Fatal("expected cycle detection error")
	}
}

func TestBuildRejectsUnresolvedDep(t *testing.T) {
	a := mkTask("task-a", domain.TaskWork, domain.TaskPending, "task-missing")
	_, err := Build([]*domain.Task{a})
	if err == nil {
		t.Fatal("expected error for unresolved dependency")
	}
}

func TestBuildRejectsVerificationWithDependents(t *testing.T) {
	v := mkTask("task-v", domain.TaskVerification, domain.TaskPending)
	dependent := mkTask("task-d", domain.TaskWork, domain.TaskPending, "task-v")

	_, err := Build([]*domain.Task{v, dependent})
	if err == nil {
		t.Fatal("expected error: verification task cannot have dependents")
	}
}

func TestBuildRejectsNonFinalizationDependingOnFinalization(t *testing.T) {
	fin := mkTask("task-f", domain.TaskFinalization, domain.TaskPending)
	work := mkTask("task-w", domain.TaskWork, domain.TaskPending, "task-f")

	_, err := Build([]*domain.Task{fin, work})
	if err == nil {
		t.Fatal("expected error: non-finalization task cannot depend on a finalization task")
	}
}

func TestReadyReturnsOnlyUnblockedTasks(t *testing.T) {
	a := mkTask("task-a", domain.TaskWork, domain.TaskComplete)
	b := mkTask("task-b", domain.TaskWork, domain.TaskPending, "task-a")
	c := mkTask("task-c", domain.TaskWork, domain.TaskPending, "task-missing-dep-not-used")
	c.Deps = nil // no deps, should be ready

	g, err := Build([]*domain.Task{a, b, c})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ready := g.Ready()
	ids := map[string]bool{}
	for _, t := range ready {
		ids[t.ID] = true
	}
	if !ids["task-b"] {
		t.Error("expected task-b to be ready (dep complete)")
	}
	if !ids["task-c"] {
		t.Error("expected task-c to be ready (no deps)")
	}
	if ids["task-a"] {
		t.Error("task-a is already complete, should not be in ready set")
	}
}

func TestExecutionOrderRespectsDeps(t *testing.T) {
	a := mkTask("task-a", domain.TaskWork, domain.TaskPending)
	b := mkTask("task-b", domain.TaskWork, domain.TaskPending, "task-a")
	c := mkTask("task-c", domain.TaskFinalization, domain.TaskPending, "task-b")

	g, err := Build([]*domain.Task{c, b, a})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	order, err := g.ExecutionOrder()
	if err != nil {
		t.Fatalf("ExecutionOrder: %v", err)
	}
	pos := map[string]int{}
	for i, t := range order {
		pos[t.ID] = i
	}
	if pos["task-a"] >= pos["task-b"] || pos["task-b"] >= pos["task-c"] {
		t.Fatalf("expected order a < b < c, got %v", order)
	}
}

func TestFinalizationComplete(t *testing.T) {
	fin := mkTask("task-f", domain.TaskFinalization, domain.TaskPending)
	g, _ := Build([]*domain.Task{fin})
	if g.FinalizationComplete() {
		t.Error("expected finalization incomplete")
	}

	fin.Status = domain.TaskComplete
	g, _ = Build([]*domain.Task{fin})
	if !g.FinalizationComplete() {
		t.Error("expected finalization complete")
	}
}

func TestTaskGateRequiresArtifacts(t *testing.T) {
	task := mkTask("task-a", domain.TaskWork, domain.TaskRunning)
	task.RequiredArtifacts = []string{domain.ArtifactGitDiff}

	if err := TaskGate(task, nil); err == nil {
		t.Fatal("expected error for missing required artifact")
	}

	artifacts := []*domain.Artifact{{Type: domain.ArtifactGitDiff}}
	if err := TaskGate(task, artifacts); err != nil {
		t.Fatalf("expected gate to pass, got %v", err)
	}
}

func TestTaskGateVerificationRequiresReport(t *testing.T) {
	task := mkTask("task-v", domain.TaskVerification, domain.TaskRunning)
	if err := TaskGate(task, nil); err == nil {
		t.Fatal("expected error: verification task requires a verification_report")
	}

	artifacts := []*domain.Artifact{{Type: domain.ArtifactVerificationReport}}
	if err := TaskGate(task, artifacts); err != nil {
		t.Fatalf("expected gate to pass, got %v", err)
	}
}

func TestVisualizeDoesNotPanic(t *testing.T) {
	a := mkTask("task-a", domain.TaskWork, domain.TaskComplete)
	b := mkTask("task-b", domain.TaskVerification, domain.TaskPending, "task-a")
	g, err := Build([]*domain.Task{a, b})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out := g.Visualize()
	if out == "" {
		t.Fatal("expected non-empty visualization")
	}
}
