package selfheal

import (
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
)

// Executor runs a proposal's commands against a worktree and reports
// whether the result needs a rollback. Side-effecting behavior is
// injected, the same pattern internal/execution uses for
// WorktreeAllocator, so Apply itself stays free of process-spawning
// concerns.
type Executor interface {
	Execute(proposal Proposal) (output string, err error)
}

// Apply runs the snapshot-execute-record pipeline for an approved
// proposal: a pre_flight_snapshot is taken, the executor runs the
// proposal's commands, and the outcome is recorded as an immutable
// verification_report on success or a build_log labeled
// "failure_report" on failure. The proposal's key is marked applied
// only on success, so a failed fix can still be retried under a fresh
// Synthesize call while a successful one can never be replayed.
func (e *Engine) Apply(p Proposal, proposalArtifactID string, exec Executor) (*domain.Artifact, error) {
	snapshot := &domain.Artifact{
		MissionID: p.MissionID,
		TaskID:    p.TaskID,
		Type:      domain.ArtifactPreFlightSnapshot,
		Label:     "pre_flight_snapshot",
		Payload: map[string]interface{}{
			"proposalId":   proposalArtifactID,
			"filesTouched": p.FilesTouched,
			"takenAt":      time.Now().UTC().Format(time.RFC3339),
		},
		Provenance: domain.Provenance{Producer: "system"},
	}
	if _, err := e.store.CreateArtifact(snapshot); err != nil {
		return nil, fmt.Errorf("selfheal: record pre-flight snapshot: %w", err)
	}

	output, execErr := exec.Execute(p)
	if execErr != nil {
		failure := &domain.Artifact{
			MissionID: p.MissionID,
			TaskID:    p.TaskID,
			Type:      domain.ArtifactBuildLog,
			Label:     "failure_report",
			Payload: map[string]interface{}{
				"proposalId": proposalArtifactID,
				"error":      execErr.Error(),
				"output":     output,
				"rollback":   p.RollbackPlan,
			},
			Provenance: domain.Provenance{Producer: "system"},
		}
		created, err := e.store.CreateArtifact(failure)
		if err != nil {
			return nil, fmt.Errorf("selfheal: record failure report: %w", err)
		}
		return created, fmt.Errorf("selfheal: apply failed: %w", execErr)
	}

	e.mu.Lock()
	e.appliedKeys[p.Key] = true
	e.mu.Unlock()

	verification := &domain.Artifact{
		MissionID: p.MissionID,
		TaskID:    p.TaskID,
		Type:      domain.ArtifactVerificationReport,
		Label:     "verification_report",
		Payload: map[string]interface{}{
			"proposalId": proposalArtifactID,
			"output":     output,
		},
		Provenance: domain.Provenance{Producer: "system"},
	}
	created, err := e.store.CreateArtifact(verification)
	if err != nil {
		return nil, fmt.Errorf("selfheal: record verification report: %w", err)
	}
	return created, nil
}

// RequestRollback marks a previously-applied fix for rollback, clearing
// its applied-key so a corrected proposal with the same signature may
// be synthesized and applied again.
func (e *Engine) RequestRollback(p Proposal) error {
	marker := &domain.Artifact{
		MissionID: p.MissionID,
		TaskID:    p.TaskID,
		Type:      domain.ArtifactBuildLog,
		Label:     "rollback_needed",
		Payload: map[string]interface{}{
			"key":      p.Key,
			"rollback": p.RollbackPlan,
		},
		Provenance: domain.Provenance{Producer: "human"},
	}
	if _, err := e.store.CreateArtifact(marker); err != nil {
		return fmt.Errorf("selfheal: record rollback marker: %w", err)
	}

	e.mu.Lock()
	delete(e.appliedKeys, p.Key)
	e.mu.Unlock()
	return nil
}

// CompleteRollback runs exec against the proposal's rollback plan and
// records the outcome, mirroring Apply's success/failure artifact
// split.
func (e *Engine) CompleteRollback(p Proposal, exec Executor) (*domain.Artifact, error) {
	output, err := exec.Execute(p)
	if err != nil {
		failure := &domain.Artifact{
			MissionID: p.MissionID,
			TaskID:    p.TaskID,
			Type:      domain.ArtifactBuildLog,
			Label:     "failure_report",
			Payload: map[string]interface{}{
				"error":  err.Error(),
				"output": output,
				"stage":  "rollback",
			},
			Provenance: domain.Provenance{Producer: "system"},
		}
		created, cErr := e.store.CreateArtifact(failure)
		if cErr != nil {
			return nil, fmt.Errorf("selfheal: record rollback failure: %w", cErr)
		}
		return created, fmt.Errorf("selfheal: rollback failed: %w", err)
	}

	verification := &domain.Artifact{
		MissionID: p.MissionID,
		TaskID:    p.TaskID,
		Type:      domain.ArtifactVerificationReport,
		Label:     "rollback_complete",
		Payload: map[string]interface{}{
			"output": output,
		},
		Provenance: domain.Provenance{Producer: "system"},
	}
	created, cErr := e.store.CreateArtifact(verification)
	if cErr != nil {
		return nil, fmt.Errorf("selfheal: record rollback verification: %w", cErr)
	}
	return created, nil
}
