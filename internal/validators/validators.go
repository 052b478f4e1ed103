// Package validators holds the pure contract and artifact checks the
// Gate Engine composes before allowing a transition, tool call, or
// completion. Every function here is a pure check over domain values —
// no store access, no I/O — grounded on the teacher's Validate()/
// TransitionTo methods generalized to whole-mission and whole-task-graph
// scope.
package validators

import (
	"fmt"
	"strings"

	"github.com/missioncontrol/missioncontrol/internal/domain"
)

// ValidateMissionContract checks the immutable contract fields of a
// mission before it is created (spec.md §4.C).
func ValidateMissionContract(m *domain.Mission) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if len(m.RequiredArtifacts) == 0 {
		return fmt.Errorf("mission contract must name at least one required artifact type")
	}
	for _, t := range m.RequiredArtifacts {
		if _, ok := domain.ModeForType(t); !ok {
			return fmt.Errorf("required artifact type %q is not a known artifact type", t)
		}
	}
	for _, glob := range m.AllowedTools {
		if glob == "" {
			return fmt.Errorf("allowedTools entries must not be empty")
		}
	}
	if m.MaxEstimatedCost != nil && *m.MaxEstimatedCost < 0 {
		return fmt.Errorf("maxEstimatedCost must not be negative")
	}
	if m.MaxCostPerHour != nil && *m.MaxCostPerHour < 0 {
		return fmt.Errorf("maxCostPerHour must not be negative")
	}
	return nil
}

// ValidateStatusTransition checks a proposed status edge for either a
// mission or a task, returning an error naming the invalid edge.
func ValidateStatusTransition(kind string, from, to string) error {
	switch kind {
	case "mission":
		if !domain.ValidMissionTransition(domain.MissionStatus(from), domain.MissionStatus(to)) {
			return fmt.Errorf("invalid mission transition %s -> %s", from, to)
		}
	case "task":
		if !domain.ValidTaskTransition(domain.TaskStatus(from), domain.TaskStatus(to)) {
			return fmt.Errorf("invalid task transition %s -> %s", from, to)
		}
	case "agent":
		if !domain.ValidAgentTransition(domain.AgentStatus(from), domain.AgentStatus(to)) {
			return fmt.Errorf("invalid agent transition %s -> %s", from, to)
		}
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	return nil
}

// ValidateArtifact checks a new artifact against its mission: the
// artifact's own Validate (known type, matching mode, known producer)
// must pass and its missionId must match the mission. It does not check
// the type against the mission's requiredArtifacts, nor an "agent"
// producer against the mission's executionAuthority.
func ValidateArtifact(m *domain.Mission, a *domain.Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.MissionID != m.ID {
		return fmt.Errorf("artifact missionId %s does not match mission %s", a.MissionID, m.ID)
	}
	return nil
}

// ValidateArtifactUpdate checks an append to an existing artifact:
// immutable artifacts reject every update; append-only artifacts accept
// only payload merges and file appends (never a field rewrite of type,
// provenance, or missionId, which this function doesn't even accept
// parameters for).
func ValidateArtifactUpdate(a *domain.Artifact) error {
	if a.IsImmutable() {
		return fmt.Errorf("artifact %s (type=%s) is immutable and cannot be updated", a.ID, a.Type)
	}
	return nil
}

// MissingArtifactTypes returns which of the required artifact types
// have no matching entry among present, in required's order, nil if
// none are missing.
func MissingArtifactTypes(required []string, present []*domain.Artifact) []string {
	have := make(map[string]bool, len(present))
	for _, a := range present {
		have[a.Type] = true
	}
	var missing []string
	for _, t := range required {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

// ValidateArtifactGate checks that every requiredArtifact type the
// mission names is present among the given artifacts, the precondition
// for a task-graph finalization gate or mission completion.
func ValidateArtifactGate(required []string, present []*domain.Artifact) error {
	missing := MissingArtifactTypes(required, present)
	if len(missing) > 0 {
		return fmt.Errorf("missing required artifact types: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateCompletion checks spec.md §3 invariant 4 and 7: a mission may
// not complete while locked, while any required artifact type is
// absent, or — if destructive — without an approval_record artifact
// carrying a pre_flight_snapshot and a change_plan.
func ValidateCompletion(m *domain.Mission, artifacts []*domain.Artifact, tasksComplete bool) error {
	if m.Status == domain.MissionLocked {
		return fmt.Errorf("mission %s is locked and cannot complete", m.ID)
	}
	if !tasksComplete {
		return fmt.Errorf("mission %s has incomplete finalization tasks", m.ID)
	}
	if err := ValidateArtifactGate(m.RequiredArtifacts, artifacts); err != nil {
		return fmt.Errorf("mission %s: %w", m.ID, err)
	}
	if m.IsDestructive() {
		if err := validateDestructiveCompletion(artifacts); err != nil {
			return fmt.Errorf("mission %s: %w", m.ID, err)
		}
	}
	return nil
}

func validateDestructiveCompletion(artifacts []*domain.Artifact) error {
	var hasApproval, hasPreFlight, hasChangePlan bool
	for _, a := range artifacts {
		switch a.Type {
		case domain.ArtifactApprovalRecord:
			hasApproval = true
		case domain.ArtifactPreFlightSnapshot:
			hasPreFlight = true
		case domain.ArtifactChangePlan:
			hasChangePlan = true
		}
	}
	if !hasApproval || !hasPreFlight || !hasChangePlan {
		return fmt.Errorf("destructive missions require approval_record, pre_flight_snapshot, and change_plan artifacts")
	}
	return nil
}

// MatchesToolGlob reports whether tool matches one of the mission's
// allowedTools globs ("*" matches everything; "x.*" matches any action
// in group x).
func MatchesToolGlob(tool string, allowed []string) bool {
	for _, pattern := range allowed {
		if pattern == "*" {
			return true
		}
		if strings.HasSuffix(pattern, ".*") {
			prefix := strings.TrimSuffix(pattern, "*")
			if strings.HasPrefix(tool, prefix) {
				return true
			}
			continue
		}
		if pattern == tool {
			return true
		}
	}
	return false
}
