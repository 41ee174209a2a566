// Package metrics accumulates token usage and request counts across client
// invocations.
package metrics

import (
	"sync"

	"github.com/condotto-ai/condotto/pkg/types"
)

// Pricing is the cost per thousand tokens for one model.
type Pricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// ModelUsage is the accumulated usage for one model.
type ModelUsage struct {
	Requests         int
	PromptTokens     int
	CompletionTokens int
	CachedTokens     int
}

// Stats is a point-in-time snapshot of a Tracker.
type Stats struct {
	Requests         int
	PromptTokens     int
	CompletionTokens int
	CachedTokens     int
	TotalTokens      int
	// CacheHitRate is the share of prompt-side tokens served from cache,
	// in [0, 1].
	CacheHitRate float64
	ByModel      map[string]ModelUsage
}

// Tracker accumulates usage across invocations. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	byModel map[string]*ModelUsage
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{byModel: make(map[string]*ModelUsage)}
}

// Track records one response attributed to model. Nil responses are ignored.
func (t *Tracker) Track(resp *types.Response, model string) {
	if resp == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	usage, ok := t.byModel[model]
	if !ok {
		usage = &ModelUsage{}
		t.byModel[model] = usage
	}
	usage.Requests++
	usage.PromptTokens += resp.PromptTokens
	usage.CompletionTokens += resp.CompletionTokens
	usage.CachedTokens += resp.CachedTokens
}

// Stats returns a snapshot of everything tracked so far.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := Stats{ByModel: make(map[string]ModelUsage, len(t.byModel))}
	for model, usage := range t.byModel {
		stats.Requests += usage.Requests
		stats.PromptTokens += usage.PromptTokens
		stats.CompletionTokens += usage.CompletionTokens
		stats.CachedTokens += usage.CachedTokens
		stats.ByModel[model] = *usage
	}
	stats.TotalTokens = stats.PromptTokens + stats.CompletionTokens + stats.CachedTokens
	if promptSide := stats.PromptTokens + stats.CachedTokens; promptSide > 0 {
		stats.CacheHitRate = float64(stats.CachedTokens) / float64(promptSide)
	}
	return stats
}

// Reset discards all tracked usage.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byModel = make(map[string]*ModelUsage)
}

// EstimateCost prices the tracked usage with the given per-model rates.
// Models without a pricing entry contribute nothing. Cached prompt tokens
// are billed at the prompt rate.
func (t *Tracker) EstimateCost(pricing map[string]Pricing) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total float64
	for model, usage := range t.byModel {
		rate, ok := pricing[model]
		if !ok {
			continue
		}
		total += float64(usage.PromptTokens+usage.CachedTokens) / 1000 * rate.PromptPer1K
		total += float64(usage.CompletionTokens) / 1000 * rate.CompletionPer1K
	}
	return total
}
