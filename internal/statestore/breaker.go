package statestore

import (
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
)

// GetBreaker returns a copy of the circuit breaker for scope ("global"
// or a mission id), creating an untripped one on first access.
func (s *Store) GetBreaker(scope string) *domain.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.getOrCreateBreakerLockedRaw(scope)
	return &cp
}

// TripBreaker trips the breaker for scope and publishes breaker.tripped.
func (s *Store) TripBreaker(scope, reason string, lockedUntil *time.Time) (*domain.CircuitBreaker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[scope]
	if !ok {
		b = &domain.CircuitBreaker{Scope: scope}
		s.breakers[scope] = b
	}

	now := time.Now().UTC()
	b.Tripped = true
	b.TrippedReason = reason
	b.TrippedAt = &now
	b.LockedUntil = lockedUntil
	b.StateVersion++

	cp := *b
	s.bus.Publish(Event{Type: EventBreakerTripped, EntityID: scope, MissionID: missionScopeOf(scope), At: now})
	return &cp, nil
}

// ResetBreaker clears a tripped breaker — only called after an approved
// unlock, per spec.md §3 invariant 8.
func (s *Store) ResetBreaker(scope string) (*domain.CircuitBreaker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[scope]
	if !ok {
		return nil, notFound("breaker", scope)
	}

	b.Tripped = false
	b.TrippedReason = ""
	b.TrippedAt = nil
	b.LockedUntil = nil
	b.FailureCount = 0
	b.ImmediateExecCount = 0
	b.StateVersion++

	cp := *b
	s.bus.Publish(Event{Type: EventBreakerReset, EntityID: scope, MissionID: missionScopeOf(scope), At: time.Now().UTC()})
	return &cp, nil
}

// IncrementBreakerFailure bumps the failure counter for scope, returning
// the updated copy so internal/breaker can decide whether to trip.
func (s *Store) IncrementBreakerFailure(scope string) *domain.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.getOrCreateBreakerLockedRaw(scope)
	b.FailureCount++
	b.StateVersion++
	cp := *b
	return &cp
}

// IncrementBreakerImmediateExec bumps the immediate-spawn counter for
// scope, used by the immediate-exec rate check in spec.md §4.I.
func (s *Store) IncrementBreakerImmediateExec(scope string) *domain.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.getOrCreateBreakerLockedRaw(scope)
	b.ImmediateExecCount++
	b.StateVersion++
	cp := *b
	return &cp
}

func (s *Store) getOrCreateBreakerLockedRaw(scope string) *domain.CircuitBreaker {
	b, ok := s.breakers[scope]
	if !ok {
		b = &domain.CircuitBreaker{Scope: scope}
		s.breakers[scope] = b
	}
	return b
}

func missionScopeOf(scope string) string {
	if scope == "global" {
		return ""
	}
	return scope
}

// GlobalState returns a copy of the global state (armedMode, risk
// threshold, rolling hourly counters).
func (s *Store) GlobalState() *domain.GlobalState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := *s.global
	return &cp
}

// SetArmedMode flips the operator's armed/unarmed toggle.
func (s *Store) SetArmedMode(armed bool) *domain.GlobalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global.ArmedMode = armed
	s.global.StateVersion++
	cp := *s.global
	return &cp
}

// IncrementHourly bumps the rolling hourly counters, rolling the window
// over when an hour has elapsed since windowStart.
func (s *Store) IncrementHourly(spawn, artifact, mutation int, now time.Time) *domain.GlobalState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.global.Hourly.WindowStart) >= time.Hour {
		s.global.Hourly = domain.HourlyCounters{WindowStart: now}
	}
	s.global.Hourly.SpawnCount += spawn
	s.global.Hourly.ArtifactCount += artifact
	s.global.Hourly.MutationCount += mutation
	s.global.StateVersion++

	cp := *s.global
	return &cp
}
