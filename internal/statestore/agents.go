package statestore

import (
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/idgen"
)

// CreateAgent validates and inserts a new agent record, starting at
// status "spawning", and attaches it to the owning mission.
func (s *Store) CreateAgent(a *domain.Agent) (*domain.Agent, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.missions[a.MissionID]; !ok {
		return nil, notFound("mission", a.MissionID)
	}

	now := time.Now().UTC()
	a.ID = idgen.Agent()
	a.Status = domain.AgentSpawning
	a.CreatedAt = now
	a.UpdatedAt = now
	a.StateVersion = 1

	s.agents[a.ID] = a
	if err := s.attachAgent(a.MissionID, a.ID); err != nil {
		delete(s.agents, a.ID)
		return nil, err
	}

	cp := *a
	s.bus.Publish(Event{Type: EventAgentCreated, EntityID: a.ID, MissionID: a.MissionID, At: now})
	return &cp, nil
}

// GetAgent returns a copy of the agent.
func (s *Store) GetAgent(id string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[id]
	if !ok {
		return nil, notFound("agent", id)
	}
	cp := *a
	return &cp, nil
}

// ListAgents returns copies of every agent, live or not; callers that
// need only the live set filter with Agent.IsLive.
func (s *Store) ListAgents() []*domain.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// MutateAgent runs fn against the live agent, validates the resulting
// status transition, and publishes an agent.updated event.
func (s *Store) MutateAgent(id string, fn func(*domain.Agent) error) (*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[id]
	if !ok {
		return nil, notFound("agent", id)
	}

	before := a.Status
	if err := fn(a); err != nil {
		return nil, err
	}
	if a.Status != before && !domain.ValidAgentTransition(before, a.Status) {
		return nil, fmt.Errorf("invalid agent transition %s -> %s", before, a.Status)
	}

	a.StateVersion++
	a.UpdatedAt = time.Now().UTC()

	cp := *a
	s.bus.Publish(Event{Type: EventAgentUpdated, EntityID: a.ID, MissionID: a.MissionID, At: a.UpdatedAt})
	return &cp, nil
}

// RecordHeartbeat stamps lastHeartbeat and, if the agent was stale,
// brings it back to running. It is the sole driver of the agent
// liveness transitions spec.md §3 calls out as heartbeat-gated.
func (s *Store) RecordHeartbeat(id string, at time.Time) (*domain.Agent, error) {
	return s.MutateAgent(id, func(a *domain.Agent) error {
		a.LastHeartbeat = &at
		if a.Status == domain.AgentStale {
			a.Status = domain.AgentRunning
		}
		return nil
	})
}
