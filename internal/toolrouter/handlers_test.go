package toolrouter

import (
	"testing"

	"github.com/missioncontrol/missioncontrol/internal/breaker"
	"github.com/missioncontrol/missioncontrol/internal/delegate"
	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/gate"
	"github.com/missioncontrol/missioncontrol/internal/statestore"
)

func newFullTestRouter(t *testing.T) (*Router, *statestore.Store) {
	t.Helper()
	store := statestore.New()
	breakerEngine := breaker.New(store, breaker.DefaultThresholds, nil)
	gateEngine := gate.New(store, breakerEngine, nil)
	r := New(store, delegate.New(store), gateEngine, breakerEngine, nil)
	r.RegisterAll(Deps{Store: store, Breaker: breakerEngine, Gate: gateEngine})
	return r, store
}

func TestMissionUpdateStatusBlocksCompletionOnMissingArtifact(t *testing.T) {
	r, store := newFullTestRouter(t)
	m, err := store.CreateMission(&domain.Mission{
		Name:               "m",
		MissionClass:       domain.ClassImplementation,
		RiskLevel:          domain.RiskLow,
		TriggerSource:      domain.TriggerManual,
		CompletionGate:     "artifacts",
		ExecutionAuthority: domain.AuthorityClaudeCode,
		ExecutionMode:      domain.ModeImmediateOnly,
		AllowedTools:       []string{"*"},
		RequiredArtifacts:  []string{domain.ArtifactGitDiff, domain.ArtifactVerificationReport},
	})
	if err != nil {
		t.Fatalf("CreateMission: %v", err)
	}
	if _, err := store.CreateArtifact(&domain.Artifact{
		MissionID: m.ID,
		Type:      domain.ArtifactGitDiff,
		Label:     "diff",
		Payload:   map[string]interface{}{"x": "y"},
		Provenance: domain.Provenance{Producer: "agent"},
	}); err != nil {
		t.Fatalf("CreateArtifact: %v", err)
	}

	result := r.Dispatch(CallRequest{
		Tool: "mission.update_status",
		Args: map[string]interface{}{"missionId": m.ID, "status": string(domain.MissionComplete)},
		Context: CallContext{
			Caller:    delegate.CallerClaudeCode,
			MissionID: m.ID,
		},
	})
	if result.OK || result.Code != ErrCompletionBlocked {
		t.Fatalf("expected COMPLETION_BLOCKED, got %+v", result)
	}
	missing, _ := result.Details["missingArtifacts"].([]string)
	if len(missing) != 1 || missing[0] != domain.ArtifactVerificationReport {
		t.Fatalf("expected missingArtifacts=[%s], got %+v", domain.ArtifactVerificationReport, result.Details["missingArtifacts"])
	}

	got, err := store.GetMission(m.ID)
	if err != nil {
		t.Fatalf("GetMission: %v", err)
	}
	if got.Status == domain.MissionComplete {
		t.Fatal("mission must not have completed")
	}
}

func TestTaskUpdateStatusRejectsIncompleteDependency(t *testing.T) {
	r, store := newFullTestRouter(t)
	m, err := store.CreateMission(&domain.Mission{
		Name:               "m",
		MissionClass:       domain.ClassImplementation,
		RiskLevel:          domain.RiskLow,
		TriggerSource:      domain.TriggerManual,
		CompletionGate:     "artifacts",
		ExecutionAuthority: domain.AuthorityClaudeCode,
		ExecutionMode:      domain.ModeImmediateOnly,
		AllowedTools:       []string{"*"},
	})
	if err != nil {
		t.Fatalf("CreateMission: %v", err)
	}

	t3, err := store.CreateTask(&domain.Task{MissionID: m.ID, Title: "T3", TaskType: domain.TaskWork})
	if err != nil {
		t.Fatalf("CreateTask T3: %v", err)
	}
	t4, err := store.CreateTask(&domain.Task{MissionID: m.ID, Title: "T4", TaskType: domain.TaskWork, Deps: []string{t3.ID}})
	if err != nil {
		t.Fatalf("CreateTask T4: %v", err)
	}
	if _, err := store.MutateTask(t4.ID, func(t *domain.Task) error {
		t.Status = domain.TaskReady
		return nil
	}); err != nil {
		t.Fatalf("MutateTask T4 -> ready: %v", err)
	}

	result := r.Dispatch(CallRequest{
		Tool: "task.update_status",
		Args: map[string]interface{}{"taskId": t4.ID, "status": string(domain.TaskRunning)},
		Context: CallContext{
			Caller:    delegate.CallerClaudeCode,
			MissionID: m.ID,
			TaskID:    t4.ID,
		},
	})
	if result.OK || result.Code != ErrDependencyNotMet {
		t.Fatalf("expected DEPENDENCY_NOT_MET, got %+v", result)
	}

	if _, err := store.MutateTask(t3.ID, func(t *domain.Task) error {
		t.Status = domain.TaskReady
		return nil
	}); err != nil {
		t.Fatalf("MutateTask T3 -> ready: %v", err)
	}
	if _, err := store.MutateTask(t3.ID, func(t *domain.Task) error {
		t.Status = domain.TaskRunning
		return nil
	}); err != nil {
		t.Fatalf("MutateTask T3 -> running: %v", err)
	}
	if _, err := store.MutateTask(t3.ID, func(t *domain.Task) error {
		t.Status = domain.TaskComplete
		return nil
	}); err != nil {
		t.Fatalf("MutateTask T3 -> complete: %v", err)
	}

	result = r.Dispatch(CallRequest{
		Tool: "task.update_status",
		Args: map[string]interface{}{"taskId": t4.ID, "status": string(domain.TaskRunning)},
		Context: CallContext{
			Caller:    delegate.CallerClaudeCode,
			MissionID: m.ID,
			TaskID:    t4.ID,
		},
	})
	if !result.OK {
		t.Fatalf("expected the transition to be admitted once the dependency completed, got %+v", result)
	}
}
