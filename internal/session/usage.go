package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cachet-ai/cachet/internal/chat"
)

// ModelPricing holds per-million-token pricing for a model. Cache writes
// are billed above the input rate; cache reads well below it.
type ModelPricing struct {
	InputPerMillion      float64
	OutputPerMillion     float64
	CacheWritePerMillion float64
	CacheReadPerMillion  float64
}

// TurnUsage records token usage and cost for a single turn.
type TurnUsage struct {
	Usage     chat.Usage
	Cost      float64
	Model     string
	Timestamp time.Time
}

// UsageTracker accumulates token usage and dollar cost across turns.
type UsageTracker struct {
	mu          sync.Mutex
	sessionCost float64
	turns       []TurnUsage
	pricing     map[string]ModelPricing
}

// NewUsageTracker creates a tracker with built-in pricing.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{pricing: defaultPricing()}
}

func defaultPricing() map[string]ModelPricing {
	return map[string]ModelPricing{
		"claude-sonnet-4-20250514": {3.0, 15.0, 3.75, 0.30},
		"claude-opus-4-20250514":   {15.0, 75.0, 18.75, 1.50},
	}
}

// RecordTurn records usage for one turn and returns its cost.
func (t *UsageTracker) RecordTurn(model string, u chat.Usage) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	cost := t.calculateCost(model, u)
	t.sessionCost += cost
	t.turns = append(t.turns, TurnUsage{
		Usage:     u,
		Cost:      cost,
		Model:     model,
		Timestamp: time.Now(),
	})
	return cost
}

// SessionCost returns the total session cost in dollars.
func (t *UsageTracker) SessionCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionCost
}

// Summary returns a formatted per-turn usage breakdown, including cache
// write and read counts so the savings from a cache boundary are visible.
func (t *UsageTracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.turns) == 0 {
		return "No usage recorded."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Session cost: $%.4f (%d turns)\n\n", t.sessionCost, len(t.turns)))

	var total chat.Usage
	for i, turn := range t.turns {
		u := turn.Usage
		total.InputTokens += u.InputTokens
		total.OutputTokens += u.OutputTokens
		total.CacheCreationTokens += u.CacheCreationTokens
		total.CacheReadTokens += u.CacheReadTokens

		line := fmt.Sprintf("  Turn %d: in=%d out=%d", i+1, u.InputTokens, u.OutputTokens)
		if u.CacheCreationTokens > 0 {
			line += fmt.Sprintf(" cache_write=%d", u.CacheCreationTokens)
		}
		if u.CacheReadTokens > 0 {
			line += fmt.Sprintf(" cache_read=%d", u.CacheReadTokens)
		}
		sb.WriteString(fmt.Sprintf("%s  $%.4f\n", line, turn.Cost))
	}
	sb.WriteString(fmt.Sprintf("\nTotal: %d input + %d output, %d cache written, %d cache read",
		total.InputTokens, total.OutputTokens, total.CacheCreationTokens, total.CacheReadTokens))

	return sb.String()
}

// FormatCost returns a compact cost string for status display.
func (t *UsageTracker) FormatCost() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionCost < 0.01 {
		return fmt.Sprintf("$%.4f", t.sessionCost)
	}
	return fmt.Sprintf("$%.2f", t.sessionCost)
}

// calculateCost computes the dollar cost for a turn. Cached input tokens
// are billed at the cache rates instead of the input rate; the provider
// already excludes them from input_tokens. Must be called with lock held.
func (t *UsageTracker) calculateCost(model string, u chat.Usage) float64 {
	p, ok := t.pricing[model]
	if !ok {
		for name, pricing := range t.pricing {
			if strings.HasPrefix(model, name) {
				p = pricing
				ok = true
				break
			}
		}
	}
	if !ok {
		return 0
	}
	return float64(u.InputTokens)*p.InputPerMillion/1_000_000 +
		float64(u.OutputTokens)*p.OutputPerMillion/1_000_000 +
		float64(u.CacheCreationTokens)*p.CacheWritePerMillion/1_000_000 +
		float64(u.CacheReadTokens)*p.CacheReadPerMillion/1_000_000
}
