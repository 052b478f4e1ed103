package statestore

import (
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/idgen"
)

// CreateArtifact validates and inserts a new artifact, appending it to
// the owning mission's artifactIds (and the owning task's, if any) — an
// artifact creation always appends, never replaces (spec.md §3).
func (s *Store) CreateArtifact(a *domain.Artifact) (*domain.Artifact, error) {
	mode, ok := domain.ModeForType(a.Type)
	if !ok {
		return nil, fmt.Errorf("unknown artifact type %q", a.Type)
	}
	a.ArtifactMode = mode
	if err := a.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.missions[a.MissionID]; !ok {
		return nil, notFound("mission", a.MissionID)
	}

	now := time.Now().UTC()
	a.ID = idgen.Artifact()
	a.CreatedAt = now
	a.StateVersion = 1

	s.artifacts[a.ID] = a
	if err := s.attachArtifact(a.MissionID, a.TaskID, a.ID); err != nil {
		delete(s.artifacts, a.ID)
		return nil, err
	}

	cp := *a
	s.bus.Publish(Event{Type: EventArtifactCreated, EntityID: a.ID, MissionID: a.MissionID, At: now})
	return &cp, nil
}

// GetArtifact returns a copy of the artifact.
func (s *Store) GetArtifact(id string) (*domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.artifacts[id]
	if !ok {
		return nil, notFound("artifact", id)
	}
	cp := *a
	return &cp, nil
}

// ListArtifactsByMission returns copies of every artifact belonging to
// missionID.
func (s *Store) ListArtifactsByMission(missionID string) []*domain.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Artifact, 0)
	for _, a := range s.artifacts {
		if a.MissionID == missionID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

// AppendArtifact merges payload into an append-only artifact's payload
// map and appends new file paths. Immutable artifacts reject this call
// entirely (invariant 3 of spec.md §3): only membership in owning lists
// may ever change for them, and that happens at create time only.
func (s *Store) AppendArtifact(id string, payload map[string]interface{}, files []string) (*domain.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.artifacts[id]
	if !ok {
		return nil, notFound("artifact", id)
	}
	if a.IsImmutable() {
		return nil, fmt.Errorf("artifact %s is immutable (type=%s)", id, a.Type)
	}

	if a.Payload == nil {
		a.Payload = make(map[string]interface{})
	}
	for k, v := range payload {
		a.Payload[k] = v
	}
	a.Files = append(a.Files, files...)
	a.StateVersion++

	cp := *a
	return &cp, nil
}
