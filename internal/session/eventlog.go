package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// EventType classifies an event in the session event stream.
type EventType string

const (
	EventSessionStart     EventType = "session_start"
	EventSessionEnd       EventType = "session_end"
	EventUserMessage      EventType = "user_message"
	EventAssistantText    EventType = "assistant_text"
	EventCacheSet         EventType = "cache_set"
	EventCacheClear       EventType = "cache_clear"
	EventFileUpload       EventType = "file_upload"
	EventFileRemove       EventType = "file_remove"
	EventConversationNew  EventType = "conversation_new"
	EventConversationSave EventType = "conversation_save"
	EventConversationLoad EventType = "conversation_load"
	EventTurnError        EventType = "error"
)

// LogEvent is a single structured event in the event stream.
type LogEvent struct {
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"ts"`
	ConversationID string    `json:"conversation_id"`
	Data           any       `json:"data,omitempty"`
}

// EventLogger writes structured JSONL events to a file.
type EventLogger struct {
	mu             sync.Mutex
	file           *os.File
	enc            *json.Encoder
	conversationID string
	logPath        string
}

// NewEventLogger creates an event logger writing to path. The parent
// directory is created if needed.
func NewEventLogger(path, conversationID string) (*EventLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create events directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	return &EventLogger{
		file:           f,
		enc:            json.NewEncoder(f),
		conversationID: conversationID,
		logPath:        path,
	}, nil
}

// Log writes an event to the JSONL file.
func (el *EventLogger) Log(evtType EventType, data any) {
	el.mu.Lock()
	defer el.mu.Unlock()
	_ = el.enc.Encode(LogEvent{
		Type:           evtType,
		Timestamp:      time.Now(),
		ConversationID: el.conversationID,
		Data:           data,
	})
}

// SetConversation updates the conversation id stamped on new events.
func (el *EventLogger) SetConversation(id string) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.conversationID = id
}

// Close flushes and closes the event log file.
func (el *EventLogger) Close() {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file != nil {
		_ = el.file.Close()
		el.file = nil
	}
}

// ReadRecent reads the last n events from the log file.
func (el *EventLogger) ReadRecent(n int) ([]LogEvent, error) {
	el.mu.Lock()
	path := el.logPath
	el.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var events []LogEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		var evt LogEvent
		if json.Unmarshal(scanner.Bytes(), &evt) == nil {
			events = append(events, evt)
		}
	}

	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

// FormatEvents formats events for display.
func FormatEvents(events []LogEvent, title string) string {
	if len(events) == 0 {
		return "No events recorded."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s (%d events):\n", title, len(events)))
	for _, evt := range events {
		ts := evt.Timestamp.Format("15:04:05")
		dataStr := ""
		if s, ok := evt.Data.(string); ok {
			dataStr = truncate(s, 80)
		} else if evt.Data != nil {
			raw, _ := json.Marshal(evt.Data)
			dataStr = truncate(string(raw), 80)
		}
		if dataStr != "" {
			sb.WriteString(fmt.Sprintf("  %s  %-18s  %s\n", ts, evt.Type, dataStr))
		} else {
			sb.WriteString(fmt.Sprintf("  %s  %s\n", ts, evt.Type))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// truncate shortens s to maxLen characters, appending "..." if cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
