// Package watchdog is the Watchdog Engine (spec.md §4.J): a
// single-threaded ticking loop that sweeps agent heartbeats and polls
// registered signal sources, creating missions from template on
// threshold breach. The watchdog only observes and creates missions or
// approvals — it never spawns agents, applies fixes, or calls a
// destructive tool, unlike internal/execution and internal/selfheal.
// Grounded on the teacher's internal/supervisor periodic-scan model
// (Scanner.ScanForWorkflows) and internal/supervisor/decision.go's
// DecisionEngine (RequiresEscalation), generalized from a one-shot
// repo scan to a recurring tick with a pluggable source registry.
package watchdog

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/execution"
	"github.com/missioncontrol/missioncontrol/internal/statestore"
)

// SignalSource is a pollable external observation point (a provider's
// error rate, a log tail's match count, a queue depth). Each poll
// returns the current value of whatever the threshold compares against.
type SignalSource interface {
	Name() string
	Poll() (value float64, err error)
}

// MissionTemplate seeds a mission the watchdog creates autonomously.
type MissionTemplate struct {
	Name               string
	Description        string
	MissionClass       domain.MissionClass
	RiskLevel          domain.RiskLevel
	AllowedTools       []string
	RequiredArtifacts  []string
	ExecutionAuthority domain.ExecutionAuthority // defaults to CLAUDE_CODE if empty
	ExecutionMode      domain.ExecutionMode
}

// WatchConfig registers one signal source against a threshold and the
// mission template to instantiate on breach.
type WatchConfig struct {
	Source          string
	Threshold       float64
	PollInterval    time.Duration
	MissionTemplate MissionTemplate
	Enabled         bool
}

// Watchdog owns the tick loop, the registered sources, and per-task
// heal-attempt bookkeeping.
type Watchdog struct {
	store     *statestore.Store
	execution *execution.Engine
	policy    execution.HeartbeatPolicy

	maxHealAttempts int

	mu           sync.Mutex
	sources      map[string]SignalSource
	configs      []WatchConfig
	lastPolledAt map[string]time.Time
	healAttempts map[string]int
}

// New builds a Watchdog. maxHealAttempts bounds how many times a task
// may be reset to ready via a dead-agent recovery before the owning
// mission is escalated to needs_review instead of retried again.
func New(store *statestore.Store, executionEngine *execution.Engine, policy execution.HeartbeatPolicy, maxHealAttempts int) *Watchdog {
	return &Watchdog{
		store:           store,
		execution:       executionEngine,
		policy:          policy,
		maxHealAttempts: maxHealAttempts,
		sources:         make(map[string]SignalSource),
		lastPolledAt:    make(map[string]time.Time),
		healAttempts:    make(map[string]int),
	}
}

// RegisterSource makes a signal source available for WatchConfig lookups.
func (w *Watchdog) RegisterSource(src SignalSource) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sources[src.Name()] = src
}

// AddWatchConfig registers a threshold/template pairing to evaluate on
// every tick.
func (w *Watchdog) AddWatchConfig(cfg WatchConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.configs = append(w.configs, cfg)
}

// Watches returns a copy of every registered watch, for the tool
// router's watchdog.list_watches discovery call.
func (w *Watchdog) Watches() []WatchConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WatchConfig, len(w.configs))
	copy(out, w.configs)
	return out
}

// LastPolled returns when source was last polled, and whether it has
// been polled at all.
func (w *Watchdog) LastPolled(source string) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.lastPolledAt[source]
	return t, ok
}

// Tick runs one pass: heartbeat sweep, heal-attempt bounding, then
// signal polling. Safe to call directly (e.g. from tests) or from Run's
// ticking loop.
func (w *Watchdog) Tick(now time.Time) error {
	if err := w.sweepHeartbeats(now); err != nil {
		return fmt.Errorf("watchdog: heartbeat sweep: %w", err)
	}
	if err := w.pollSignals(now); err != nil {
		return fmt.Errorf("watchdog: signal poll: %w", err)
	}
	return nil
}

// Run ticks every interval until stop is closed, in the teacher's
// goroutine-plus-stop-channel idiom.
func (w *Watchdog) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			log.Printf("[WATCHDOG] stopped")
			return
		case now := <-ticker.C:
			if err := w.Tick(now.UTC()); err != nil {
				log.Printf("[WATCHDOG] tick error: %v", err)
			}
		}
	}
}

func (w *Watchdog) sweepHeartbeats(now time.Time) error {
	transitions, err := w.execution.SweepHeartbeats(now, w.policy)
	if err != nil {
		return err
	}
	for _, t := range transitions {
		if t.To != domain.AgentDead {
			continue
		}
		if err := w.recordHeal(t.AgentID); err != nil {
			return err
		}
	}
	return nil
}

// recordHeal increments the heal-attempt counter for the agent's task
// and, past the bound, escalates the owning mission to needs_review
// instead of letting the task retry again.
func (w *Watchdog) recordHeal(agentID string) error {
	agent, err := w.store.GetAgent(agentID)
	if err != nil {
		return err
	}
	if agent.TaskID == "" {
		return nil
	}

	w.mu.Lock()
	w.healAttempts[agent.TaskID]++
	attempts := w.healAttempts[agent.TaskID]
	w.mu.Unlock()

	if attempts <= w.maxHealAttempts {
		return nil
	}

	log.Printf("[WATCHDOG] task %s exceeded %d heal attempts, escalating mission %s", agent.TaskID, w.maxHealAttempts, agent.MissionID)

	if _, err := w.store.MutateTask(agent.TaskID, func(t *domain.Task) error {
		t.Status = domain.TaskBlocked
		t.BlockedReason = "HEAL_ATTEMPTS_EXCEEDED"
		return nil
	}); err != nil {
		return fmt.Errorf("block task %s after heal overrun: %w", agent.TaskID, err)
	}

	mission, err := w.store.GetMission(agent.MissionID)
	if err != nil {
		return err
	}
	if domain.ValidMissionTransition(mission.Status, domain.MissionNeedsReview) {
		if _, err := w.store.MutateMission(agent.MissionID, func(m *domain.Mission) error {
			m.Status = domain.MissionNeedsReview
			return nil
		}); err != nil {
			return fmt.Errorf("escalate mission %s to needs_review: %w", agent.MissionID, err)
		}
	}
	return nil
}
