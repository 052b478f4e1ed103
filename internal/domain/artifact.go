package domain

import (
	"fmt"
	"time"
)

// ArtifactMode partitions artifact types by mutability.
type ArtifactMode string

const (
	ArtifactImmutable  ArtifactMode = "immutable"
	ArtifactAppendOnly ArtifactMode = "append-only"
)

// Closed set of artifact types and the mutability mode each belongs to.
// spec.md §3 names these explicitly; new types are not invented ad hoc.
const (
	ArtifactGitDiff            = "git_diff"
	ArtifactVerificationReport = "verification_report"
	ArtifactApprovalRecord     = "approval_record"
	ArtifactAgentRecipe        = "agent_recipe"
	ArtifactPreFlightSnapshot  = "pre_flight_snapshot"
	ArtifactBootstrap          = "bootstrap"
	ArtifactViolation          = "violation"
	ArtifactChangePlan         = "change_plan"
	ArtifactSignalReport       = "signal_report"
	ArtifactSelfHealProposal   = "self_heal_proposal"

	ArtifactRuntimeLog   = "runtime_log"
	ArtifactBuildLog     = "build_log"
	ArtifactConsoleError = "console_error"
)

// artifactModes maps every known artifact type to its mutability mode.
var artifactModes = map[string]ArtifactMode{
	ArtifactGitDiff:            ArtifactImmutable,
	ArtifactVerificationReport: ArtifactImmutable,
	ArtifactApprovalRecord:     ArtifactImmutable,
	ArtifactAgentRecipe:        ArtifactImmutable,
	ArtifactPreFlightSnapshot:  ArtifactImmutable,
	ArtifactBootstrap:          ArtifactImmutable,
	ArtifactViolation:          ArtifactImmutable,
	ArtifactChangePlan:         ArtifactImmutable,
	ArtifactSignalReport:       ArtifactImmutable,
	ArtifactSelfHealProposal:   ArtifactImmutable,

	ArtifactRuntimeLog:   ArtifactAppendOnly,
	ArtifactBuildLog:     ArtifactAppendOnly,
	ArtifactConsoleError: ArtifactAppendOnly,
}

// ModeForType returns the mutability mode for a known artifact type.
func ModeForType(artifactType string) (ArtifactMode, bool) {
	m, ok := artifactModes[artifactType]
	return m, ok
}

// Provenance records who produced an artifact.
type Provenance struct {
	Producer   string `json:"producer"` // agent, watchdog, system, human
	AgentID    string `json:"agentId,omitempty"`
	Worktree   string `json:"worktree,omitempty"`
	CommitHash string `json:"commitHash,omitempty"`
}

// Artifact is evidence of work attached to a mission and, optionally, a task.
type Artifact struct {
	ID           string                 `json:"id"`
	MissionID    string                 `json:"missionId"`
	TaskID       string                 `json:"taskId,omitempty"`
	Type         string                 `json:"type"`
	ArtifactMode ArtifactMode           `json:"artifactMode"`
	Label        string                 `json:"label"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Files        []string               `json:"files,omitempty"`
	Provenance   Provenance             `json:"provenance"`
	CreatedAt    time.Time              `json:"createdAt"`

	StateVersion uint64 `json:"_stateVersion"`
}

// Validate checks the type is known, the mode matches, and provenance
// identifies a real producer.
func (a *Artifact) Validate() error {
	if a.MissionID == "" {
		return fmt.Errorf("artifact missionId is required")
	}
	mode, ok := ModeForType(a.Type)
	if !ok {
		return fmt.Errorf("unknown artifact type %q", a.Type)
	}
	if a.ArtifactMode != "" && a.ArtifactMode != mode {
		return fmt.Errorf("artifact type %q has mode %q, got %q", a.Type, mode, a.ArtifactMode)
	}
	switch a.Provenance.Producer {
	case "agent", "watchdog", "system", "human":
	default:
		return fmt.Errorf("invalid provenance.producer %q", a.Provenance.Producer)
	}
	return nil
}

// IsImmutable reports whether this artifact may never be mutated after
// create (only its membership in owning lists may change elsewhere).
func (a *Artifact) IsImmutable() bool {
	return a.ArtifactMode == ArtifactImmutable
}
