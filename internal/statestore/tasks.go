package statestore

import (
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/idgen"
)

// CreateTask validates and inserts a new task, checking that every dep
// resolves within the same mission (spec.md §3).
func (s *Store) CreateTask(t *domain.Task) (*domain.Task, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.missions[t.MissionID]; !ok {
		return nil, notFound("mission", t.MissionID)
	}
	for _, dep := range t.Deps {
		depTask, ok := s.tasks[dep]
		if !ok {
			return nil, fmt.Errorf("dependency %s not found", dep)
		}
		if depTask.MissionID != t.MissionID {
			return nil, fmt.Errorf("dependency %s belongs to a different mission", dep)
		}
	}

	now := time.Now().UTC()
	t.ID = idgen.Task()
	t.Status = domain.TaskPending
	t.ArtifactIDs = []string{}
	t.CreatedAt = now
	t.UpdatedAt = now
	t.StateVersion = 1

	s.tasks[t.ID] = t
	if err := s.attachTask(t.MissionID, t.ID); err != nil {
		delete(s.tasks, t.ID)
		return nil, err
	}

	cp := *t
	s.bus.Publish(Event{Type: EventTaskCreated, EntityID: t.ID, MissionID: t.MissionID, At: now})
	return &cp, nil
}

// GetTask returns a copy of the task.
func (s *Store) GetTask(id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound("task", id)
	}
	cp := *t
	return &cp, nil
}

// ListTasksByMission returns copies of every task belonging to missionID.
func (s *Store) ListTasksByMission(missionID string) []*domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Task, 0)
	for _, t := range s.tasks {
		if t.MissionID == missionID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// MutateTask runs fn against the live task, validates the resulting
// status transition, and publishes a task.updated event. Invariant 5
// (a task cannot be running unless every dep is complete) is the
// caller's responsibility (internal/graph computes readiness); this
// method enforces only the status-transition table.
func (s *Store) MutateTask(id string, fn func(*domain.Task) error) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound("task", id)
	}

	before := t.Status
	if err := fn(t); err != nil {
		return nil, err
	}
	if t.Status != before && !domain.ValidTaskTransition(before, t.Status) {
		return nil, fmt.Errorf("invalid task transition %s -> %s", before, t.Status)
	}

	t.StateVersion++
	t.UpdatedAt = time.Now().UTC()

	cp := *t
	s.bus.Publish(Event{Type: EventTaskUpdated, EntityID: t.ID, MissionID: t.MissionID, At: t.UpdatedAt})
	return &cp, nil
}

// DepsComplete reports whether every dependency of task id has status
// complete, the precondition internal/graph checks before marking a
// task ready or running.
func (s *Store) DepsComplete(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return false, notFound("task", id)
	}
	for _, dep := range t.Deps {
		depTask, ok := s.tasks[dep]
		if !ok {
			return false, notFound("task", dep)
		}
		if depTask.Status != domain.TaskComplete {
			return false, nil
		}
	}
	return true, nil
}
