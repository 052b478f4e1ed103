package domain

import "time"

// CircuitBreaker tracks runaway-protection counters for either a single
// mission or the global scope. internal/breaker owns the trip/reset
// logic; this type is just the stored shape.
type CircuitBreaker struct {
	Scope         string     `json:"scope"` // "global" or a mission id
	Tripped       bool       `json:"tripped"`
	TrippedReason string     `json:"trippedReason,omitempty"`
	TrippedAt     *time.Time `json:"trippedAt,omitempty"`

	FailureCount       int        `json:"failureCount"`
	ImmediateExecCount int        `json:"immediateExecCount"`
	LockedUntil        *time.Time `json:"lockedUntil,omitempty"`

	StateVersion uint64 `json:"_stateVersion"`
}

// IsLocked reports whether the breaker currently blocks execution.
func (c *CircuitBreaker) IsLocked(now time.Time) bool {
	if c.Tripped {
		return true
	}
	if c.LockedUntil != nil && now.Before(*c.LockedUntil) {
		return true
	}
	return false
}

// HourlyCounters tracks a rolling 1-hour window of activity for the
// global state's spawn/artifact/mutation rate limiting.
type HourlyCounters struct {
	WindowStart   time.Time `json:"windowStart"`
	SpawnCount    int       `json:"spawnCount"`
	ArtifactCount int       `json:"artifactCount"`
	MutationCount int       `json:"mutationCount"`
}

// GlobalState holds process-wide toggles and the rolling hourly counters.
type GlobalState struct {
	ArmedMode     bool      `json:"armedMode"`
	RiskThreshold RiskLevel `json:"riskThreshold"`
	Hourly        HourlyCounters `json:"hourly"`

	LastSnapshotAt *time.Time `json:"_lastSnapshotAt,omitempty"`

	StateVersion uint64 `json:"_stateVersion"`
}

// NewGlobalState returns the default global state: unarmed, medium risk
// threshold, per spec.md §3.
func NewGlobalState() *GlobalState {
	return &GlobalState{
		ArmedMode:     false,
		RiskThreshold: RiskMedium,
	}
}
