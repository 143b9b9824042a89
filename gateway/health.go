package gateway

import (
	"sync"
	"time"

	"github.com/relayforge/llmrelay/llm"
)

// healthyFailureThreshold is how many consecutive failures mark a provider
// unhealthy in snapshots. Purely diagnostic; routing never consults it.
const healthyFailureThreshold = 3

// Health tracks per-provider call outcomes. One logical call against one
// provider counts once, after its retries resolve.
type Health struct {
	mu        sync.RWMutex
	providers map[llm.Provider]*providerStats
}

type providerStats struct {
	calls        int64
	failures     int64
	consecutive  int64
	totalLatency time.Duration
	lastSuccess  time.Time
	lastFailure  time.Time
	lastError    string
}

// ProviderHealth is a snapshot of one provider's recent behavior.
type ProviderHealth struct {
	Provider            llm.Provider  `json:"provider"`
	Calls               int64         `json:"calls"`
	Failures            int64         `json:"failures"`
	ConsecutiveFailures int64         `json:"consecutive_failures"`
	AvgLatency          time.Duration `json:"avg_latency"`
	LastSuccess         time.Time     `json:"last_success,omitempty"`
	LastFailure         time.Time     `json:"last_failure,omitempty"`
	LastError           string        `json:"last_error,omitempty"`
	Healthy             bool          `json:"healthy"`
}

// NewHealth creates an empty health tracker.
func NewHealth() *Health {
	return &Health{providers: make(map[llm.Provider]*providerStats)}
}

// Record notes the outcome of one logical call against one provider.
func (h *Health) Record(provider llm.Provider, success bool, latency time.Duration, errMsg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats, ok := h.providers[provider]
	if !ok {
		stats = &providerStats{}
		h.providers[provider] = stats
	}

	stats.calls++
	stats.totalLatency += latency
	now := time.Now()
	if success {
		stats.consecutive = 0
		stats.lastSuccess = now
		return
	}
	stats.failures++
	stats.consecutive++
	stats.lastFailure = now
	stats.lastError = errMsg
}

// Snapshot returns every tracked provider's health in the fixed priority
// order, followed by any providers outside it.
func (h *Health) Snapshot() []ProviderHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(h.providers))
	emitted := make(map[llm.Provider]bool, len(h.providers))
	for _, p := range llm.DefaultPriority {
		if stats, ok := h.providers[p]; ok {
			out = append(out, h.snapshotLocked(p, stats))
			emitted[p] = true
		}
	}
	for p, stats := range h.providers {
		if !emitted[p] {
			out = append(out, h.snapshotLocked(p, stats))
		}
	}
	return out
}

// Provider returns one provider's health and whether it has been called yet.
func (h *Health) Provider(p llm.Provider) (ProviderHealth, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats, ok := h.providers[p]
	if !ok {
		return ProviderHealth{}, false
	}
	return h.snapshotLocked(p, stats), true
}

func (h *Health) snapshotLocked(p llm.Provider, stats *providerStats) ProviderHealth {
	var avg time.Duration
	if stats.calls > 0 {
		avg = stats.totalLatency / time.Duration(stats.calls)
	}
	return ProviderHealth{
		Provider:            p,
		Calls:               stats.calls,
		Failures:            stats.failures,
		ConsecutiveFailures: stats.consecutive,
		AvgLatency:          avg,
		LastSuccess:         stats.lastSuccess,
		LastFailure:         stats.lastFailure,
		LastError:           stats.lastError,
		Healthy:             stats.consecutive < healthyFailureThreshold,
	}
}
