package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/missioncontrol/missioncontrol/internal/domain"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadServerConfigMissingFileReturnsDefault(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	want := DefaultServerConfig()
	if cfg.BindAddress != want.BindAddress || cfg.StateRoot != want.StateRoot {
		t.Fatalf("expected default config, got %+v", cfg)
	}
}

func TestLoadServerConfigParsesFile(t *testing.T) {
	path := writeTemp(t, "bindAddress: 0.0.0.0:9090\nstateRoot: /var/lib/missionctl\nproviders:\n  anthropic: ANTHROPIC_API_KEY\n")

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.BindAddress != "0.0.0.0:9090" || cfg.StateRoot != "/var/lib/missionctl" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Providers["anthropic"] != "ANTHROPIC_API_KEY" {
		t.Fatalf("expected provider reference, got %+v", cfg.Providers)
	}
}

func TestLoadWatchdogConfigMissingFileReturnsEmpty(t *testing.T) {
	cfg, err := LoadWatchdogConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadWatchdogConfig: %v", err)
	}
	if len(cfg.Watches) != 0 {
		t.Fatalf("expected no watches, got %d", len(cfg.Watches))
	}
}

const sampleWatchdogYAML = `
watches:
  - source: provider.error_rate
    threshold: 0.2
    pollInterval: 30s
    enabled: true
    mission:
      name: investigate-provider-errors
      description: provider error rate breached threshold
      missionClass: exploration
      riskLevel: low
      allowedTools:
        - state.get_stats
        - mission.create
      requiredArtifacts:
        - diagnosis
      executionAuthority: CLAUDE_CODE
      executionMode: IMMEDIATE_ONLY
`

func TestLoadWatchdogConfigResolvesValidEntries(t *testing.T) {
	path := writeTemp(t, sampleWatchdogYAML)

	cfg, err := LoadWatchdogConfig(path)
	if err != nil {
		t.Fatalf("LoadWatchdogConfig: %v", err)
	}
	if len(cfg.Watches) != 1 {
		t.Fatalf("expected 1 watch, got %d", len(cfg.Watches))
	}

	resolved, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolved watch, got %d", len(resolved))
	}

	w := resolved[0]
	if w.Source != "provider.error_rate" || w.Threshold != 0.2 {
		t.Fatalf("unexpected resolved watch: %+v", w)
	}
	if w.PollInterval.String() != "30s" {
		t.Fatalf("expected 30s poll interval, got %s", w.PollInterval)
	}
	if w.MissionClass != domain.ClassExploration || w.RiskLevel != domain.RiskLow {
		t.Fatalf("unexpected enum resolution: class=%s risk=%s", w.MissionClass, w.RiskLevel)
	}
	if w.ExecutionAuthority != domain.AuthorityClaudeCode || w.ExecutionMode != domain.ModeImmediateOnly {
		t.Fatalf("unexpected execution fields: authority=%s mode=%s", w.ExecutionAuthority, w.ExecutionMode)
	}

	wc := w.ToWatchConfig()
	if wc.Source != w.Source || wc.MissionTemplate.Name != w.Name {
		t.Fatalf("ToWatchConfig mismatch: %+v", wc)
	}
}

func TestLoadResolvedWatchesConvenienceFunction(t *testing.T) {
	path := writeTemp(t, sampleWatchdogYAML)

	resolved, err := LoadResolvedWatches(path)
	if err != nil {
		t.Fatalf("LoadResolvedWatches: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolved watch, got %d", len(resolved))
	}
}

func TestResolveRejectsInvalidMissionClass(t *testing.T) {
	bad := `
watches:
  - source: x
    threshold: 1
    pollInterval: 10s
    enabled: true
    mission:
      name: n
      missionClass: not_a_real_class
      riskLevel: low
`
	path := writeTemp(t, bad)

	cfg, err := LoadWatchdogConfig(path)
	if err != nil {
		t.Fatalf("LoadWatchdogConfig: %v", err)
	}
	if _, err := cfg.Resolve(); err == nil {
		t.Fatal("expected Resolve to reject an invalid missionClass")
	}
}

func TestResolveRejectsInvalidPollInterval(t *testing.T) {
	bad := `
watches:
  - source: x
    threshold: 1
    pollInterval: not-a-duration
    enabled: true
    mission:
      name: n
      missionClass: exploration
      riskLevel: low
`
	path := writeTemp(t, bad)

	cfg, err := LoadWatchdogConfig(path)
	if err != nil {
		t.Fatalf("LoadWatchdogConfig: %v", err)
	}
	if _, err := cfg.Resolve(); err == nil {
		t.Fatal("expected Resolve to reject an invalid pollInterval")
	}
}

func TestResolveAllowsOmittedExecutionFields(t *testing.T) {
	yaml := `
watches:
  - source: x
    threshold: 1
    pollInterval: 10s
    enabled: true
    mission:
      name: n
      missionClass: maintenance
      riskLevel: medium
`
	path := writeTemp(t, yaml)

	resolved, err := LoadResolvedWatches(path)
	if err != nil {
		t.Fatalf("LoadResolvedWatches: %v", err)
	}
	if resolved[0].ExecutionAuthority != "" || resolved[0].ExecutionMode != "" {
		t.Fatalf("expected empty execution fields, got %+v", resolved[0])
	}
}
