// Package breaker is the Circuit Breaker: per-mission and global
// failure/immediate-exec counters that trip a lock when a threshold is
// crossed, grounded on internal/metrics/alerts.go's AlertChecker
// threshold struct, generalized from alerting to trip/lock/reset
// semantics and wired to internal/notify for operator toasts on trip.
package breaker

import (
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/notify"
	"github.com/missioncontrol/missioncontrol/internal/statestore"
)

// Thresholds configures when a scope's breaker trips.
type Thresholds struct {
	MaxFailures       int
	MaxImmediateExecs int
	LockDuration      time.Duration
}

// DefaultThresholds mirrors a conservative starting point: few failures
// tolerated, immediate-exec capped tightly since it bypasses recipe
// review.
var DefaultThresholds = Thresholds{
	MaxFailures:       3,
	MaxImmediateExecs: 3,
	LockDuration:      30 * time.Minute,
}

// Engine evaluates and applies breaker trips against the state store.
type Engine struct {
	store      *statestore.Store
	thresholds Thresholds
	notifier   notify.Notifier
}

// New builds a breaker Engine. notifier may be nil to disable toasts.
func New(store *statestore.Store, thresholds Thresholds, notifier notify.Notifier) *Engine {
	return &Engine{store: store, thresholds: thresholds, notifier: notifier}
}

// RecordFailure increments the failure counter for both the mission
// scope and the global scope, tripping either if its threshold is
// crossed.
func (e *Engine) RecordFailure(missionID string) error {
	missionBreaker := e.store.IncrementBreakerFailure(missionID)
	if missionBreaker.FailureCount >= e.thresholds.MaxFailures && !missionBreaker.Tripped {
		if err := e.trip(missionID, fmt.Sprintf("mission failure count reached %d", missionBreaker.FailureCount)); err != nil {
			return err
		}
	}

	globalBreaker := e.store.IncrementBreakerFailure("global")
	if globalBreaker.FailureCount >= e.thresholds.MaxFailures*3 && !globalBreaker.Tripped {
		if err := e.trip("global", fmt.Sprintf("global failure count reached %d", globalBreaker.FailureCount)); err != nil {
			return err
		}
	}
	return nil
}

// RecordImmediateExec increments the immediate-spawn counter for a
// mission, tripping the breaker if the armed-mode exec rate is exceeded.
func (e *Engine) RecordImmediateExec(missionID string) error {
	b := e.store.IncrementBreakerImmediateExec(missionID)
	if b.ImmediateExecCount >= e.thresholds.MaxImmediateExecs && !b.Tripped {
		return e.trip(missionID, fmt.Sprintf("immediate exec count reached %d", b.ImmediateExecCount))
	}
	return nil
}

func (e *Engine) trip(scope, reason string) error {
	lockedUntil := time.Now().UTC().Add(e.thresholds.LockDuration)
	if _, err := e.store.TripBreaker(scope, reason, &lockedUntil); err != nil {
		return fmt.Errorf("breaker: trip %s: %w", scope, err)
	}
	if e.notifier != nil {
		e.notifier.BreakerTripped(scope, reason)
	}
	return nil
}

// IsLocked reports whether scope's breaker currently blocks execution.
func (e *Engine) IsLocked(scope string) bool {
	b := e.store.GetBreaker(scope)
	return b.IsLocked(time.Now().UTC())
}

// Reset clears a tripped breaker — called only after an approved unlock
// (spec.md §3 invariant 8).
func (e *Engine) Reset(scope string) error {
	_, err := e.store.ResetBreaker(scope)
	if err != nil {
		return fmt.Errorf("breaker: reset %s: %w", scope, err)
	}
	return nil
}

// Status returns a copy of the breaker state for scope.
func (e *Engine) Status(scope string) *domain.CircuitBreaker {
	return e.store.GetBreaker(scope)
}
