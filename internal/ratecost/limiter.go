// Package ratecost is the Rate/Cost component: a per-provider token
// bucket and daily quota, exponential backoff tracking, and a cost
// estimator. The dedup-window shape for backoff tracking is grounded on
// internal/metrics/alerts.go's AlertChecker.recentAlerts (a
// map[string]time.Time cleaned on access), generalized from alert
// dedup to backoff bookkeeping.
package ratecost

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// dayDuration is the daily quota period: quotas reset at aligned UTC
// midnight (00:00 UTC), not on a rolling 24h window from first use.
const dayDuration = 24 * time.Hour

// ProviderLimiter bundles a QPS token bucket with a daily quota counter
// and exponential backoff state for one provider (e.g. "anthropic",
// "google-search-console").
type ProviderLimiter struct {
	mu sync.Mutex

	name    string
	limiter *rate.Limiter

	dailyQuota   int
	dailyUsed    int
	quotaResetAt time.Time

	backoffAttempt int
	backoffUntil   time.Time
	baseBackoff    time.Duration
	maxBackoff     time.Duration
}

// NewProviderLimiter builds a limiter for one provider: qps/burst for
// the token bucket, dailyQuota for the clock-aligned daily counter (0
// means unlimited), and a base/max backoff pair for exponential retry.
func NewProviderLimiter(name string, qps float64, burst, dailyQuota int) *ProviderLimiter {
	return &ProviderLimiter{
		name:         name,
		limiter:      rate.NewLimiter(rate.Limit(qps), burst),
		dailyQuota:   dailyQuota,
		quotaResetAt: nextUTCDayBoundary(time.Now().UTC()),
		baseBackoff:  time.Second,
		maxBackoff:   5 * time.Minute,
	}
}

// nextUTCDayBoundary returns the next aligned UTC midnight strictly
// after now.
func nextUTCDayBoundary(now time.Time) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return midnight.Add(dayDuration)
}

// Allow reports whether a call may proceed right now: the token bucket
// has capacity, the daily quota is not exhausted, and no backoff window
// is active. It does not block.
func (p *ProviderLimiter) Allow(now time.Time) (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rolloverQuotaLocked(now)

	if now.Before(p.backoffUntil) {
		return false, fmt.Sprintf("backoff active until %s", p.backoffUntil.Format(time.RFC3339))
	}
	if p.dailyQuota > 0 && p.dailyUsed >= p.dailyQuota {
		return false, fmt.Sprintf("daily quota exhausted (%d/%d)", p.dailyUsed, p.dailyQuota)
	}
	if !p.limiter.AllowN(now, 1) {
		return false, "qps limit exceeded"
	}
	p.dailyUsed++
	return true, ""
}

func (p *ProviderLimiter) rolloverQuotaLocked(now time.Time) {
	next := nextUTCDayBoundary(now.UTC())
	if next.Equal(p.quotaResetAt) {
		return
	}
	p.dailyUsed = 0
	p.quotaResetAt = next
}

// RecordFailure advances the exponential backoff window: 2^(attempt-1) *
// baseBackoff (1x, 2x, 4x, ...), capped at maxBackoff.
func (p *ProviderLimiter) RecordFailure(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.backoffAttempt++
	wait := p.baseBackoff
	for i := 1; i < p.backoffAttempt; i++ {
		wait *= 2
		if wait >= p.maxBackoff {
			wait = p.maxBackoff
			break
		}
	}
	p.backoffUntil = now.Add(wait)
	return wait
}

// RecordSuccess resets the backoff attempt counter.
func (p *ProviderLimiter) RecordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backoffAttempt = 0
	p.backoffUntil = time.Time{}
}

// LimiterStatus is a snapshot of a provider's rate/quota/backoff state
// for the tool router's provider.health and provider.rate calls.
type LimiterStatus struct {
	Name           string    `json:"name"`
	DailyQuota     int       `json:"dailyQuota"`
	DailyUsed      int       `json:"dailyUsed"`
	QuotaResetAt   time.Time `json:"quotaResetAt"`
	BackoffAttempt int       `json:"backoffAttempt"`
	BackoffUntil   time.Time `json:"backoffUntil,omitempty"`
}

// Status returns a copy of the limiter's current counters.
func (p *ProviderLimiter) Status() LimiterStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return LimiterStatus{
		Name:           p.name,
		DailyQuota:     p.dailyQuota,
		DailyUsed:      p.dailyUsed,
		QuotaResetAt:   p.quotaResetAt,
		BackoffAttempt: p.backoffAttempt,
		BackoffUntil:   p.backoffUntil,
	}
}

// Registry owns one ProviderLimiter per provider name.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*ProviderLimiter
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*ProviderLimiter)}
}

// Register adds or replaces the limiter for a provider.
func (r *Registry) Register(l *ProviderLimiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[l.name] = l
}

// Get returns the limiter for provider, or nil if unregistered.
func (r *Registry) Get(provider string) *ProviderLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limiters[provider]
}
