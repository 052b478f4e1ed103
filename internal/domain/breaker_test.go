package domain

import (
	"testing"
	"time"
)

func TestCircuitBreakerIsLocked(t *testing.T) {
	now := time.Now().UTC()

	c := &CircuitBreaker{Scope: "global"}
	if c.IsLocked(now) {
		t.Error("fresh breaker should not be locked")
	}

	c.Tripped = true
	if !c.IsLocked(now) {
		t.Error("tripped breaker should be locked")
	}

	c2 := &CircuitBreaker{Scope: "mission-1"}
	future := now.Add(time.Hour)
	c2.LockedUntil = &future
	if !c2.IsLocked(now) {
		t.Error("breaker locked until a future time should be locked now")
	}
	if c2.IsLocked(future.Add(time.Minute)) {
		t.Error("breaker should not be locked after lockedUntil has passed")
	}
}

func TestNewGlobalState(t *testing.T) {
	g := NewGlobalState()
	if g.ArmedMode {
		t.Error("new global state should start unarmed")
	}
	if g.RiskThreshold != RiskMedium {
		t.Errorf("expected default riskThreshold medium, got %s", g.RiskThreshold)
	}
}
