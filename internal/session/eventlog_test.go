package session

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestEventLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "session.jsonl")
	el, err := NewEventLogger(path, "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	defer el.Close()

	el.Log(EventSessionStart, nil)
	el.Log(EventUserMessage, "hello there")
	el.Log(EventCacheSet, "5m")

	events, err := el.ReadRecent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[1].Type != EventUserMessage || events[1].Data != "hello there" {
		t.Errorf("event 1: %+v", events[1])
	}
	if events[0].ConversationID != "conv-1" {
		t.Errorf("conversation id: %q", events[0].ConversationID)
	}
}

func TestReadRecentLimitsToLastN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	el, err := NewEventLogger(path, "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	defer el.Close()

	for i := 0; i < 10; i++ {
		el.Log(EventAssistantText, strings.Repeat("x", i+1))
	}

	events, err := el.ReadRecent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[2].Data != strings.Repeat("x", 10) {
		t.Errorf("expected the newest event last, got %+v", events[2])
	}
}

func TestFormatEvents(t *testing.T) {
	if got := FormatEvents(nil, "Recent events"); got != "No events recorded." {
		t.Fatalf("empty: %q", got)
	}

	path := filepath.Join(t.TempDir(), "session.jsonl")
	el, err := NewEventLogger(path, "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	defer el.Close()
	el.Log(EventFileUpload, "file_abc123")

	events, err := el.ReadRecent(0)
	if err != nil {
		t.Fatal(err)
	}
	out := FormatEvents(events, "Recent events")
	if !strings.Contains(out, "file_upload") || !strings.Contains(out, "file_abc123") {
		t.Errorf("formatted output missing fields:\n%s", out)
	}
}
