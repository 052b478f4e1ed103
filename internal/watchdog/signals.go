package watchdog

import (
	"fmt"
	"time"

	"github.com/missioncontrol/missioncontrol/internal/domain"
)

// pollSignals evaluates every enabled WatchConfig whose poll interval
// has elapsed, creating a mission from template when the source's
// value crosses the threshold.
func (w *Watchdog) pollSignals(now time.Time) error {
	w.mu.Lock()
	configs := make([]WatchConfig, len(w.configs))
	copy(configs, w.configs)
	w.mu.Unlock()

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if !w.due(cfg, now) {
			continue
		}

		w.mu.Lock()
		w.lastPolledAt[cfg.Source] = now
		source := w.sources[cfg.Source]
		w.mu.Unlock()

		if source == nil {
			continue
		}

		value, err := source.Poll()
		if err != nil {
			return fmt.Errorf("poll signal source %s: %w", cfg.Source, err)
		}
		if value < cfg.Threshold {
			continue
		}

		if err := w.raiseMissionFromTemplate(cfg, value, now); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watchdog) due(cfg WatchConfig, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.lastPolledAt[cfg.Source]
	if !ok {
		return true
	}
	return now.Sub(last) >= cfg.PollInterval
}

// raiseMissionFromTemplate instantiates cfg.MissionTemplate with trigger
// source "watchdog" and attaches a signal_report artifact describing the
// breach. This is the watchdog's only allowed write surface — creating
// missions and approvals, never spawning agents or applying fixes.
func (w *Watchdog) raiseMissionFromTemplate(cfg WatchConfig, observed float64, now time.Time) error {
	tmpl := cfg.MissionTemplate

	authority := tmpl.ExecutionAuthority
	if authority == "" {
		// spec.md §9 Open Question: default to CLAUDE_CODE when a
		// watchdog-authored template doesn't specify one.
		authority = domain.AuthorityClaudeCode
	}
	mode := tmpl.ExecutionMode
	if mode == "" {
		mode = domain.ModeRecipeOnly
	}

	mission, err := w.store.CreateMission(&domain.Mission{
		Name:               tmpl.Name,
		Description:        tmpl.Description,
		MissionClass:       tmpl.MissionClass,
		RiskLevel:          tmpl.RiskLevel,
		AllowedTools:       tmpl.AllowedTools,
		RequiredArtifacts:  tmpl.RequiredArtifacts,
		CompletionGate:     "artifacts",
		TriggerSource:      domain.TriggerWatchdog,
		ExecutionAuthority: authority,
		ExecutionMode:      mode,
	})
	if err != nil {
		return fmt.Errorf("create mission from watchdog template %q: %w", tmpl.Name, err)
	}

	report := &domain.Artifact{
		MissionID: mission.ID,
		Type:      domain.ArtifactSignalReport,
		Label:     "signal_report",
		Payload: map[string]interface{}{
			"source":    cfg.Source,
			"threshold": cfg.Threshold,
			"observed":  observed,
			"at":        now.Format(time.RFC3339),
		},
		Provenance: domain.Provenance{Producer: "watchdog"},
	}
	if _, err := w.store.CreateArtifact(report); err != nil {
		return fmt.Errorf("record signal report for mission %s: %w", mission.ID, err)
	}

	return nil
}
