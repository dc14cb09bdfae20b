package session

import (
	"math"
	"strings"
	"testing"

	"github.com/cachet-ai/cachet/internal/chat"
)

// chargesClose compares dollar amounts within float rounding noise.
func chargesClose(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestRecordTurnCost(t *testing.T) {
	ut := NewUsageTracker()
	cost := ut.RecordTurn("claude-sonnet-4-20250514", chat.Usage{InputTokens: 1000, OutputTokens: 500})
	if cost <= 0 {
		t.Fatal("expected positive cost for known model")
	}
	// sonnet: input=3.0/M, output=15.0/M
	expected := (1000.0*3.0 + 500.0*15.0) / 1_000_000
	if !chargesClose(cost, expected) {
		t.Fatalf("cost %.12f != expected %.12f", cost, expected)
	}
	if ut.SessionCost() != cost {
		t.Fatalf("session cost %f != turn cost %f", ut.SessionCost(), cost)
	}
}

func TestRecordTurnCacheRates(t *testing.T) {
	ut := NewUsageTracker()

	// A cache write costs more than plain input for the same tokens.
	write := ut.RecordTurn("claude-sonnet-4-20250514", chat.Usage{CacheCreationTokens: 10_000})
	plain := ut.RecordTurn("claude-sonnet-4-20250514", chat.Usage{InputTokens: 10_000})
	read := ut.RecordTurn("claude-sonnet-4-20250514", chat.Usage{CacheReadTokens: 10_000})

	if !(write > plain) {
		t.Errorf("cache write %f should exceed input %f", write, plain)
	}
	if !(read < plain) {
		t.Errorf("cache read %f should undercut input %f", read, plain)
	}
	// The read discount is the point of caching: a tenth of the input rate.
	if !chargesClose(read*10, plain) {
		t.Errorf("expected read rate at 10%% of input: read=%f input=%f", read, plain)
	}
}

func TestRecordTurnUnknownModel(t *testing.T) {
	ut := NewUsageTracker()
	if cost := ut.RecordTurn("unknown-model-xyz", chat.Usage{InputTokens: 1000}); cost != 0 {
		t.Fatalf("expected 0 cost for unknown model, got %f", cost)
	}
	if ut.SessionCost() != 0 {
		t.Fatalf("expected 0 session cost, got %f", ut.SessionCost())
	}
}

func TestFormatCost(t *testing.T) {
	ut := NewUsageTracker()
	if got := ut.FormatCost(); got != "$0.0000" {
		t.Errorf("zero cost: %q", got)
	}
	// 1000 in + 500 out on sonnet is $0.0105, past the 2-decimal threshold.
	ut.RecordTurn("claude-sonnet-4-20250514", chat.Usage{InputTokens: 1000, OutputTokens: 500})
	if got := ut.FormatCost(); got != "$0.01" {
		t.Errorf("dollar cost: %q", got)
	}
}

func TestSummary(t *testing.T) {
	ut := NewUsageTracker()
	if got := ut.Summary(); got != "No usage recorded." {
		t.Fatalf("empty summary: %q", got)
	}

	ut.RecordTurn("claude-sonnet-4-20250514", chat.Usage{InputTokens: 100, OutputTokens: 50})
	ut.RecordTurn("claude-sonnet-4-20250514", chat.Usage{InputTokens: 20, OutputTokens: 30, CacheReadTokens: 800})

	s := ut.Summary()
	for _, want := range []string{"2 turns", "Turn 1:", "Turn 2:", "cache_read=800", "Total:"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}
