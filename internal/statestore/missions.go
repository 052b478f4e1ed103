package statestore

import (
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/idgen"
)

// CreateMission validates and inserts a new mission, starting at status
// "queued" with stateVersion 1.
func (s *Store) CreateMission(m *domain.Mission) (*domain.Mission, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	m.ID = idgen.Mission()
	m.Status = domain.MissionQueued
	m.TaskIDs = []string{}
	m.ArtifactIDs = []string{}
	m.AgentIDs = []string{}
	m.CreatedAt = now
	m.UpdatedAt = now
	m.StateVersion = 1

	s.missions[m.ID] = m
	cp := *m

	s.bus.Publish(Event{Type: EventMissionCreated, EntityID: m.ID, MissionID: m.ID, At: now})
	return &cp, nil
}

// GetMission returns a copy of the mission, never a pointer into the
// store's map.
func (s *Store) GetMission(id string) (*domain.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.missions[id]
	if !ok {
		return nil, notFound("mission", id)
	}
	cp := *m
	return &cp, nil
}

// ListMissions returns a copy of every mission, optionally filtered by
// status (nil/empty means all).
func (s *Store) ListMissions(statuses ...domain.MissionStatus) []*domain.Mission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Mission, 0, len(s.missions))
	for _, m := range s.missions {
		if len(statuses) > 0 && !containsMissionStatus(statuses, m.Status) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out
}

func containsMissionStatus(statuses []domain.MissionStatus, status domain.MissionStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// MutateMission runs fn against the live mission under the write lock,
// validates the resulting status transition (if changed), bumps
// stateVersion, and publishes a mission.updated event. fn must not
// retain the pointer past its call.
func (s *Store) MutateMission(id string, fn func(*domain.Mission) error) (*domain.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.missions[id]
	if !ok {
		return nil, notFound("mission", id)
	}

	before := m.Status
	if err := fn(m); err != nil {
		return nil, err
	}
	if m.Status != before && !domain.ValidMissionTransition(before, m.Status) {
		return nil, fmt.Errorf("invalid mission transition %s -> %s", before, m.Status)
	}

	m.StateVersion++
	m.UpdatedAt = time.Now().UTC()

	cp := *m
	s.bus.Publish(Event{Type: EventMissionUpdated, EntityID: m.ID, MissionID: m.ID, At: m.UpdatedAt})
	return &cp, nil
}

// RecordMissionSpend commits cost against a mission's rolling 1h
// cost-gate window, rolling the window over the same way
// IncrementHourly does for the global counters.
func (s *Store) RecordMissionSpend(missionID string, cost float64, now time.Time) (*domain.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.missions[missionID]
	if !ok {
		return nil, notFound("mission", missionID)
	}

	if m.HourlySpendWindow.IsZero() || now.Sub(m.HourlySpendWindow) >= time.Hour {
		m.HourlySpendWindow = now
		m.HourlySpend = 0
	}
	m.HourlySpend += cost
	m.StateVersion++
	m.UpdatedAt = now

	cp := *m
	return &cp, nil
}

// AttachTask records a task id on its owning mission (invariant 1 of
// spec.md §3: mission.taskIds mirrors the set of tasks referencing it).
func (s *Store) attachTask(missionID, taskID string) error {
	m, ok := s.missions[missionID]
	if !ok {
		return notFound("mission", missionID)
	}
	m.TaskIDs = append(m.TaskIDs, taskID)
	return nil
}

// attachArtifact appends an artifact id to its owning mission (and task,
// if any) — artifact creation always appends, per spec.md §3.
func (s *Store) attachArtifact(missionID, taskID, artifactID string) error {
	m, ok := s.missions[missionID]
	if !ok {
		return notFound("mission", missionID)
	}
	m.ArtifactIDs = append(m.ArtifactIDs, artifactID)

	if taskID != "" {
		t, ok := s.tasks[taskID]
		if !ok {
			return notFound("task", taskID)
		}
		t.ArtifactIDs = append(t.ArtifactIDs, artifactID)
	}
	return nil
}

func (s *Store) attachAgent(missionID, agentID string) error {
	m, ok := s.missions[missionID]
	if !ok {
		return notFound("mission", missionID)
	}
	m.AgentIDs = append(m.AgentIDs, agentID)
	return nil
}
