package breaker

import (
	"testing"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/statestore"
)

type fakeNotifier struct {
	trippedCalls int
	lastMission  string
	lastReason   string
}

func (f *fakeNotifier) BreakerTripped(missionID, reason string) {
	f.trippedCalls++
	f.lastMission = missionID
	f.lastReason = reason
}
func (f *fakeNotifier) NeedsReview(missionID, reason string) {}
func (f *fakeNotifier) SetEnabled(enabled bool)              {}
func (f *fakeNotifier) Enabled() bool                        { return true }

func TestRecordFailureTripsAtThreshold(t *testing.T) {
	store := statestore.New()
	notifier := &fakeNotifier{}
	engine := New(store, Thresholds{MaxFailures: 2, MaxImmediateExecs: 10, LockDuration: time.Minute}, notifier)

	if err := engine.RecordFailure("mission-1"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if engine.IsLocked("mission-1") {
		t.Fatal("should not be locked after 1 failure with threshold 2")
	}

	if err := engine.RecordFailure("mission-1"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if !engine.IsLocked("mission-1") {
		t.Fatal("expected breaker tripped at threshold")
	}
	if notifier.trippedCalls != 1 {
		t.Fatalf("expected 1 notification, got %d", notifier.trippedCalls)
	}
}

func TestResetClearsLock(t *testing.T) {
	store := statestore.New()
	engine := New(store, Thresholds{MaxFailures: 1, MaxImmediateExecs: 10, LockDuration: time.Minute}, nil)

	engine.RecordFailure("mission-1")
	if !engine.IsLocked("mission-1") {
		t.Fatal("expected locked")
	}

	if err := engine.Reset("mission-1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if engine.IsLocked("mission-1") {
		t.Fatal("expected unlocked after reset")
	}
}

func TestRecordImmediateExecTripsAtThreshold(t *testing.T) {
	store := statestore.New()
	engine := New(store, Thresholds{MaxFailures: 10, MaxImmediateExecs: 2, LockDuration: time.Minute}, nil)

	engine.RecordImmediateExec("mission-1")
	if engine.IsLocked("mission-1") {
		t.Fatal("should not be locked yet")
	}
	engine.RecordImmediateExec("mission-1")
	if !engine.IsLocked("mission-1") {
		t.Fatal("expected locked after reaching immediate-exec threshold")
	}
}
