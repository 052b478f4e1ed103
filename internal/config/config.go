// Package config loads the control plane's YAML-configured pieces: the
// server config (bind address, state root, provider credential references)
// and the watchdog config (signal sources/mission templates).
// Grounded on the teacher's internal/agents/config.go (LoadTeamsConfig)
// and internal/server/server.go's loadNotificationConfig — both a bare
// os.ReadFile-then-yaml.Unmarshal pair with no schema validation beyond
// what yaml.v3 itself enforces. Environment is limited to bind address,
// state root, and provider credential references (spec.md §6); nothing
// else may vary process behavior outside this file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/missioncontrol/missioncontrol/internal/domain"
	"github.com/missioncontrol/missioncontrol/internal/watchdog"
)

// ServerConfig is the environment-level configuration spec.md §6 allows:
// bind address, state root, and optional provider credential references.
type ServerConfig struct {
	BindAddress string            `yaml:"bindAddress"`
	StateRoot   string            `yaml:"stateRoot"`
	Providers   map[string]string `yaml:"providers,omitempty"` // name -> credential reference
}

// DefaultServerConfig matches spec.md §6's stated default.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{BindAddress: "127.0.0.1:0", StateRoot: "state"}
}

// LoadServerConfig reads the environment-level YAML file, falling back
// to DefaultServerConfig if the file does not exist.
func LoadServerConfig(path string) (ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultServerConfig(), nil
		}
		return ServerConfig{}, fmt.Errorf("config: read server config: %w", err)
	}

	cfg := DefaultServerConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("config: parse server config: %w", err)
	}
	return cfg, nil
}

// WatchConfigYAML mirrors watchdog.WatchConfig in a yaml-friendly shape
// (duration strings instead of time.Duration, plain enum strings
// instead of domain types) so it can be hand-authored without importing
// internal/watchdog's Go types into the config file.
type WatchConfigYAML struct {
	Source       string   `yaml:"source"`
	Threshold    float64  `yaml:"threshold"`
	PollInterval string   `yaml:"pollInterval"`
	Enabled      bool     `yaml:"enabled"`
	Mission      struct {
		Name               string   `yaml:"name"`
		Description        string   `yaml:"description"`
		MissionClass       string   `yaml:"missionClass"`
		RiskLevel          string   `yaml:"riskLevel"`
		AllowedTools       []string `yaml:"allowedTools"`
		RequiredArtifacts  []string `yaml:"requiredArtifacts"`
		ExecutionAuthority string   `yaml:"executionAuthority,omitempty"`
		ExecutionMode      string   `yaml:"executionMode,omitempty"`
	} `yaml:"mission"`
}

// WatchdogConfig is the top-level document for watchdog.yaml.
type WatchdogConfig struct {
	Watches []WatchConfigYAML `yaml:"watches"`
}

// LoadWatchdogConfig reads and parses a watchdog signal-source config
// file. Returning an empty WatchdogConfig (not an error) when the file
// is absent lets a deployment run with no autonomous watches configured.
func LoadWatchdogConfig(path string) (WatchdogConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return WatchdogConfig{}, nil
		}
		return WatchdogConfig{}, fmt.Errorf("config: read watchdog config: %w", err)
	}

	var cfg WatchdogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return WatchdogConfig{}, fmt.Errorf("config: parse watchdog config: %w", err)
	}
	return cfg, nil
}

// ResolvedWatch is one WatchConfigYAML entry with its duration and
// domain-enum fields parsed and validated.
type ResolvedWatch struct {
	Source             string
	Threshold          float64
	PollInterval       time.Duration
	Enabled            bool
	Name               string
	Description        string
	MissionClass       domain.MissionClass
	RiskLevel          domain.RiskLevel
	AllowedTools       []string
	RequiredArtifacts  []string
	ExecutionAuthority domain.ExecutionAuthority
	ExecutionMode      domain.ExecutionMode
}

// Resolve parses every watch entry's duration and enum strings,
// rejecting the whole file on the first invalid entry rather than
// silently skipping it.
func (c WatchdogConfig) Resolve() ([]ResolvedWatch, error) {
	out := make([]ResolvedWatch, 0, len(c.Watches))
	for _, w := range c.Watches {
		interval, err := time.ParseDuration(w.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("config: watch %q: invalid pollInterval %q: %w", w.Source, w.PollInterval, err)
		}

		class := domain.MissionClass(w.Mission.MissionClass)
		risk := domain.RiskLevel(w.Mission.RiskLevel)
		switch class {
		case domain.ClassExploration, domain.ClassImplementation, domain.ClassMaintenance, domain.ClassDestructive, domain.ClassContinuous:
		default:
			return nil, fmt.Errorf("config: watch %q: invalid missionClass %q", w.Source, w.Mission.MissionClass)
		}
		switch risk {
		case domain.RiskLow, domain.RiskMedium, domain.RiskHigh:
		default:
			return nil, fmt.Errorf("config: watch %q: invalid riskLevel %q", w.Source, w.Mission.RiskLevel)
		}

		var authority domain.ExecutionAuthority
		if w.Mission.ExecutionAuthority != "" {
			authority = domain.ExecutionAuthority(w.Mission.ExecutionAuthority)
			if authority != domain.AuthorityClaudeCode && authority != domain.AuthorityDesktop {
				return nil, fmt.Errorf("config: watch %q: invalid executionAuthority %q", w.Source, w.Mission.ExecutionAuthority)
			}
		}
		var mode domain.ExecutionMode
		if w.Mission.ExecutionMode != "" {
			mode = domain.ExecutionMode(w.Mission.ExecutionMode)
			if mode != domain.ModeRecipeOnly && mode != domain.ModeImmediateOnly {
				return nil, fmt.Errorf("config: watch %q: invalid executionMode %q", w.Source, w.Mission.ExecutionMode)
			}
		}

		out = append(out, ResolvedWatch{
			Source:             w.Source,
			Threshold:          w.Threshold,
			PollInterval:       interval,
			Enabled:            w.Enabled,
			Name:               w.Mission.Name,
			Description:        w.Mission.Description,
			MissionClass:       class,
			RiskLevel:          risk,
			AllowedTools:       w.Mission.AllowedTools,
			RequiredArtifacts:  w.Mission.RequiredArtifacts,
			ExecutionAuthority: authority,
			ExecutionMode:      mode,
		})
	}
	return out, nil
}

// ToWatchConfig converts a resolved entry into the shape
// internal/watchdog.Watchdog.AddWatchConfig expects.
func (r ResolvedWatch) ToWatchConfig() watchdog.WatchConfig {
	return watchdog.WatchConfig{
		Source:       r.Source,
		Threshold:    r.Threshold,
		PollInterval: r.PollInterval,
		Enabled:      r.Enabled,
		MissionTemplate: watchdog.MissionTemplate{
			Name:               r.Name,
			Description:        r.Description,
			MissionClass:       r.MissionClass,
			RiskLevel:          r.RiskLevel,
			AllowedTools:       r.AllowedTools,
			RequiredArtifacts:  r.RequiredArtifacts,
			ExecutionAuthority: r.ExecutionAuthority,
			ExecutionMode:      r.ExecutionMode,
		},
	}
}

// LoadResolvedWatches is the convenience entrypoint cmd/missionctl uses:
// load the YAML file, resolve every entry, and return them ready for
// registration with a Watchdog.
func LoadResolvedWatches(path string) ([]ResolvedWatch, error) {
	cfg, err := LoadWatchdogConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg.Resolve()
}
