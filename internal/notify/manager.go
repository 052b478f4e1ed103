package notify

import (
	"log"
	"sync"
)

// Notifier is the operator-escalation surface consulted by the breaker and
// watchdog components. It is deliberately narrow: Mission Control has no
// dashboard of its own, so the only channel wired here is the desktop
// toast; additional channels can implement the same interface without
// touching callers.
type Notifier interface {
	BreakerTripped(missionID, reason string)
	NeedsReview(missionID, reason string)
	SetEnabled(enabled bool)
	Enabled() bool
}

// Manager fans escalations out to the toast channel and the process log,
// mirroring the teacher's multi-channel manager but trimmed to the one
// channel this control plane actually owns.
type Manager struct {
	mu      sync.RWMutex
	toast   *ToastNotifier
	enabled bool
	logger  *log.Logger
}

// Config configures a Manager.
type Config struct {
	AppID        string
	DashboardURL string
	EnableToast  bool
	Logger       *log.Logger
}

// NewManager creates a notification manager.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	m := &Manager{
		toast:   NewToastNotifier(cfg.AppID, cfg.DashboardURL),
		enabled: cfg.EnableToast,
		logger:  cfg.Logger,
	}
	m.logger.Printf("[NOTIFY] toast supported=%v enabled=%v", m.toast.IsSupported(), m.enabled)
	return m
}

// BreakerTripped notifies the operator that a mission or the system locked.
func (m *Manager) BreakerTripped(missionID, reason string) {
	m.mu.RLock()
	enabled := m.enabled
	m.mu.RUnlock()
	if !enabled || !m.toast.IsSupported() {
		m.logger.Printf("[NOTIFY] breaker_trip mission=%s reason=%s (toast suppressed)", missionID, reason)
		return
	}
	if err := m.toast.NotifyBreakerTrip(missionID, reason); err != nil {
		m.logger.Printf("[NOTIFY] toast failed: %v", err)
	}
}

// NeedsReview notifies the operator that a mission escalated to needs_review.
func (m *Manager) NeedsReview(missionID, reason string) {
	m.mu.RLock()
	enabled := m.enabled
	m.mu.RUnlock()
	if !enabled || !m.toast.IsSupported() {
		m.logger.Printf("[NOTIFY] needs_review mission=%s reason=%s (toast suppressed)", missionID, reason)
		return
	}
	if err := m.toast.NotifyNeedsReview(missionID, reason); err != nil {
		m.logger.Printf("[NOTIFY] toast failed: %v", err)
	}
}

// SetEnabled toggles notification delivery.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// Enabled reports whether notification delivery is on.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}
