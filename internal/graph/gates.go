package graph

import (
	"fmt"

	"github.com/missioncontrol/missioncontrol/internal/domain"
)

// TaskGate checks whether task may transition to complete: every
// artifact type it requires must be present among the artifacts
// produced for it. Verification tasks additionally require at least one
// verification_report; finalization tasks require the mission-level
// artifact gate to already be satisfied by the caller (checked in
// internal/validators.ValidateCompletion, not here, since that needs
// the whole mission's artifact set, not just one task's).
func TaskGate(task *domain.Task, artifacts []*domain.Artifact) error {
	have := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		have[a.Type] = true
	}
	var missing []string
	for _, t := range task.RequiredArtifacts {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("task %s missing required artifact types: %v", task.ID, missing)
	}
	if task.TaskType == domain.TaskVerification && !have[domain.ArtifactVerificationReport] {
		return fmt.Errorf("verification task %s requires a verification_report artifact", task.ID)
	}
	return nil
}
