package validators

import (
	"testing"

	"github.com/missioncontrol/missioncontrol/internal/domain"
)

func baseMission() *domain.Mission {
	return &domain.Mission{
		ID:                 "mission-1",
		Name:               "test",
		MissionClass:       domain.ClassImplementation,
		RiskLevel:          domain.RiskLow,
		TriggerSource:      domain.TriggerManual,
		CompletionGate:     "artifacts",
		ExecutionAuthority: domain.AuthorityClaudeCode,
		ExecutionMode:      domain.ModeImmediateOnly,
		RequiredArtifacts:  []string{domain.ArtifactGitDiff},
		AllowedTools:       []string{"task.*"},
	}
}

func TestValidateMissionContractRequiresArtifacts(t *testing.T) {
	m := baseMission()
	m.RequiredArtifacts = nil
	if err := ValidateMissionContract(m); err == nil {
		t.Fatal("expected error for empty requiredArtifacts")
	}
}

func TestValidateMissionContractRejectsUnknownArtifactType(t *testing.T) {
	m := baseMission()
	m.RequiredArtifacts = []string{"not_a_type"}
	if err := ValidateMissionContract(m); err == nil {
		t.Fatal("expected error for unknown artifact type")
	}
}

func TestMatchesToolGlob(t *testing.T) {
	cases := []struct {
		tool    string
		allowed []string
		want    bool
	}{
		{"task.create", []string{"task.*"}, true},
		{"artifact.create", []string{"task.*"}, false},
		{"anything", []string{"*"}, true},
		{"task.create", []string{"task.create"}, true},
	}
	for _, c := range cases {
		if got := MatchesToolGlob(c.tool, c.allowed); got != c.want {
			t.Errorf("MatchesToolGlob(%s, %v) = %v, want %v", c.tool, c.allowed, got, c.want)
		}
	}
}

func TestValidateArtifactGate(t *testing.T) {
	required := []string{domain.ArtifactGitDiff, domain.ArtifactVerificationReport}
	present := []*domain.Artifact{{Type: domain.ArtifactGitDiff}}

	if err := ValidateArtifactGate(required, present); err == nil {
		t.Fatal("expected error for missing verification_report")
	}

	present = append(present, &domain.Artifact{Type: domain.ArtifactVerificationReport})
	if err := ValidateArtifactGate(required, present); err != nil {
		t.Fatalf("expected gate to pass, got %v", err)
	}
}

func TestValidateCompletionDestructiveRequiresTriple(t *testing.T) {
	m := baseMission()
	m.MissionClass = domain.ClassDestructive
	m.RequiredArtifacts = []string{domain.ArtifactGitDiff}

	artifacts := []*domain.Artifact{
		{Type: domain.ArtifactGitDiff},
		{Type: domain.ArtifactApprovalRecord},
	}
	if err := ValidateCompletion(m, artifacts, true); err == nil {
		t.Fatal("expected error: destructive mission missing pre_flight_snapshot and change_plan")
	}

	artifacts = append(artifacts,
		&domain.Artifact{Type: domain.ArtifactPreFlightSnapshot},
		&domain.Artifact{Type: domain.ArtifactChangePlan},
	)
	if err := ValidateCompletion(m, artifacts, true); err != nil {
		t.Fatalf("expected completion to pass, got %v", err)
	}
}

func TestValidateCompletionRejectsLocked(t *testing.T) {
	m := baseMission()
	m.Status = domain.MissionLocked
	if err := ValidateCompletion(m, nil, true); err == nil {
		t.Fatal("expected error for locked mission")
	}
}

func TestValidateArtifactUpdateRejectsImmutable(t *testing.T) {
	a := &domain.Artifact{Type: domain.ArtifactGitDiff, ArtifactMode: domain.ArtifactImmutable}
	if err := ValidateArtifactUpdate(a); err == nil {
		t.Fatal("expected error updating immutable artifact")
	}

	log := &domain.Artifact{Type: domain.ArtifactRuntimeLog, ArtifactMode: domain.ArtifactAppendOnly}
	if err := ValidateArtifactUpdate(log); err != nil {
		t.Fatalf("expected append-only artifact update to pass, got %v", err)
	}
}
