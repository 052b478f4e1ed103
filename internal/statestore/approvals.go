package statestore

import (
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/idgen"
)

// CreateApproval validates and inserts a new pending approval request.
func (s *Store) CreateApproval(a *domain.Approval) (*domain.Approval, error) {
	if a.Status == "" {
		a.Status = domain.ApprovalPending
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.missions[a.MissionID]; !ok {
		return nil, notFound("mission", a.MissionID)
	}

	now := time.Now().UTC()
	a.ID = idgen.Approval()
	a.CreatedAt = now
	a.StateVersion = 1

	s.approvals[a.ID] = a

	cp := *a
	s.bus.Publish(Event{Type: EventApprovalCreated, EntityID: a.ID, MissionID: a.MissionID, At: now})
	return &cp, nil
}

// GetApproval returns a copy of the approval.
func (s *Store) GetApproval(id string) (*domain.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.approvals[id]
	if !ok {
		return nil, notFound("approval", id)
	}
	cp := *a
	return &cp, nil
}

// ListPendingApprovals returns copies of every approval still pending.
func (s *Store) ListPendingApprovals() []*domain.Approval {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Approval, 0)
	for _, a := range s.approvals {
		if a.Status == domain.ApprovalPending {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

// FindApprovalByAction returns the most recent approval raised for
// missionID+tool, used by the Gate Engine's destructive gate to avoid
// creating a duplicate approval request on every retried call.
func (s *Store) FindApprovalByAction(missionID, tool string) (*domain.Approval, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Approval
	for _, a := range s.approvals {
		if a.MissionID != missionID || a.ToolName != tool {
			continue
		}
		if found == nil || a.CreatedAt.After(found.CreatedAt) {
			found = a
		}
	}
	if found == nil {
		return nil, false
	}
	cp := *found
	return &cp, true
}

// ResolveApproval approves or rejects a pending approval.
func (s *Store) ResolveApproval(id string, approved bool, actor, comment string) (*domain.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.approvals[id]
	if !ok {
		return nil, notFound("approval", id)
	}

	now := time.Now().UTC()
	if err := a.Resolve(approved, actor, comment, now); err != nil {
		return nil, err
	}
	a.StateVersion++

	cp := *a
	s.bus.Publish(Event{Type: EventApprovalUpdated, EntityID: a.ID, MissionID: a.MissionID, At: now})
	return &cp, nil
}

// AutoApprove marks a pending approval auto_approved by policy, used by
// internal/selfheal when a proposal falls within the auto-approve scope.
func (s *Store) AutoApprove(id string) (*domain.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.approvals[id]
	if !ok {
		return nil, notFound("approval", id)
	}
	if a.Status != domain.ApprovalPending {
		return nil, fmt.Errorf("approval %s is not pending (status=%s)", id, a.Status)
	}

	now := time.Now().UTC()
	a.Status = domain.ApprovalAutoApproved
	a.AutoApproved = true
	a.ApprovedAt = &now
	a.StateVersion++

	cp := *a
	s.bus.Publish(Event{Type: EventApprovalUpdated, EntityID: a.ID, MissionID: a.MissionID, At: now})
	return &cp, nil
}
