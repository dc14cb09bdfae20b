package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cachet-ai/cachet/internal/chat"
	"github.com/cachet-ai/cachet/internal/config"
	"github.com/cachet-ai/cachet/internal/files"
	"github.com/cachet-ai/cachet/internal/store"
)

// fakeCaller scripts model replies for controller tests.
type fakeCaller struct {
	events  []chat.Event
	err     error
	release chan struct{} // when set, Stream blocks until closed

	lastReq *chat.Request
}

func (f *fakeCaller) Stream(ctx context.Context, req *chat.Request) (<-chan chat.Event, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan chat.Event, len(f.events))
	go func() {
		defer close(ch)
		if f.release != nil {
			<-f.release
		}
		for _, ev := range f.events {
			ch <- ev
		}
	}()
	return ch, nil
}

func (f *fakeCaller) Complete(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &chat.Response{
		Blocks: []chat.Block{{Type: chat.BlockText, Text: "scripted reply"}},
		Usage:  chat.Usage{InputTokens: 5, OutputTokens: 3},
	}, nil
}

func okEvents() []chat.Event {
	return []chat.Event{
		{Type: chat.EventTextDelta, TextDelta: "scripted reply"},
		{Type: chat.EventDone, Usage: &chat.Usage{InputTokens: 5, OutputTokens: 3, CacheReadTokens: 800}},
	}
}

func newTestController(t *testing.T, caller chat.Caller) *Controller {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.APIKey = "test-key"
	registry, err := files.NewRegistry(nil)
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.NewJSONDir(t.TempDir(), 10)
	if err != nil {
		t.Fatal(err)
	}
	return NewController(Options{
		Caller:   caller,
		Registry: registry,
		Store:    st,
		Config:   cfg,
		Stream:   true,
	})
}

func TestSendAppendsCompleteTurn(t *testing.T) {
	caller := &fakeCaller{events: okEvents()}
	c := newTestController(t, caller)

	assistant, skipped, err := c.Send(context.Background(), "hello", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 0 {
		t.Fatalf("unexpected skipped handles: %v", skipped)
	}
	if assistant.Text() != "scripted reply" {
		t.Errorf("assistant text: %q", assistant.Text())
	}

	s := c.Status()
	if s.Messages != 2 {
		t.Fatalf("expected 2 messages after turn, got %d", s.Messages)
	}
	if s.Awaiting {
		t.Error("controller should be idle after the turn")
	}
	if len(caller.lastReq.Messages) != 1 {
		t.Errorf("request should carry only the pending message, got %d", len(caller.lastReq.Messages))
	}
}

func TestSendRollsBackOnTransportError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("connection refused")}
	c := newTestController(t, caller)

	_, _, err := c.Send(context.Background(), "hello", nil, nil)
	var te *chat.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}

	if got := c.Status().Messages; got != 0 {
		t.Fatalf("failed turn must leave the log empty, got %d messages", got)
	}

	// The next send succeeds on a clean log.
	caller.err = nil
	caller.events = okEvents()
	if _, _, err := c.Send(context.Background(), "hello again", nil, nil); err != nil {
		t.Fatal(err)
	}
	if got := c.Status().Messages; got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}
}

func TestBusyGate(t *testing.T) {
	release := make(chan struct{})
	caller := &fakeCaller{events: okEvents(), release: release}
	c := newTestController(t, caller)

	done := make(chan error, 1)
	go func() {
		_, _, err := c.Send(context.Background(), "slow question", nil, nil)
		done <- err
	}()

	// Wait for the controller to enter the awaiting state.
	deadline := time.After(2 * time.Second)
	for !c.Status().Awaiting {
		select {
		case <-deadline:
			t.Fatal("controller never became busy")
		case <-time.After(time.Millisecond):
		}
	}

	if _, _, err := c.Send(context.Background(), "impatient", nil, nil); !errors.Is(err, chat.ErrBusy) {
		t.Errorf("concurrent send: expected ErrBusy, got %v", err)
	}
	if _, err := c.SwitchModel("opus"); !errors.Is(err, chat.ErrBusy) {
		t.Errorf("switch model while busy: expected ErrBusy, got %v", err)
	}
	if _, err := c.ToggleSearch(); !errors.Is(err, chat.ErrBusy) {
		t.Errorf("toggle search while busy: expected ErrBusy, got %v", err)
	}
	if err := c.NewConversation(""); !errors.Is(err, chat.ErrBusy) {
		t.Errorf("new conversation while busy: expected ErrBusy, got %v", err)
	}
	// Status stays readable while awaiting.
	if got := c.Status(); !got.Awaiting {
		t.Error("status should report awaiting")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight send failed: %v", err)
	}
	if got := c.Status().Messages; got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}
}

func TestSendRecordsCacheHit(t *testing.T) {
	caller := &fakeCaller{events: okEvents()}
	c := newTestController(t, caller)

	if _, _, err := c.Send(context.Background(), "first", nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SetCache(chat.CacheShort); err != nil {
		t.Fatal(err)
	}

	caller.events = []chat.Event{
		{Type: chat.EventTextDelta, TextDelta: "cached reply"},
		{Type: chat.EventDone, Usage: &chat.Usage{InputTokens: 2, OutputTokens: 2, CacheReadTokens: 950}},
	}
	if _, _, err := c.Send(context.Background(), "second", nil, nil); err != nil {
		t.Fatal(err)
	}

	s := c.Status()
	if s.Cache.Kind != chat.CacheActive {
		t.Fatalf("expected active cache, got %v", s.Cache.Kind)
	}
	if s.Cache.LastHitTokens != 950 {
		t.Errorf("last hit tokens: got %d, want 950", s.Cache.LastHitTokens)
	}
	// The marker rides on the request history.
	if caller.lastReq.Messages[1].CacheControl == nil {
		t.Error("cache marker missing from outbound request")
	}
}

func TestNewConversationResetsSearchKeepsModel(t *testing.T) {
	caller := &fakeCaller{events: okEvents()}
	c := newTestController(t, caller)

	if _, err := c.SwitchModel("opus"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ToggleSearch(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Send(context.Background(), "hello", nil, nil); err != nil {
		t.Fatal(err)
	}
	oldID := c.Status().ConversationID

	if err := c.NewConversation("before the reset"); err != nil {
		t.Fatal(err)
	}

	s := c.Status()
	if s.ConversationID == oldID {
		t.Error("expected a fresh conversation id")
	}
	if s.Messages != 0 {
		t.Errorf("expected empty log, got %d messages", s.Messages)
	}
	if s.Model != "claude-opus-4-20250514" {
		t.Errorf("model should carry over, got %q", s.Model)
	}
	if s.SearchEnabled {
		t.Error("search should reset to off")
	}

	// The old conversation was archived on the way out.
	archived, err := c.store.Load(oldID)
	if err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	if archived.Title != "before the reset" || len(archived.Messages) != 2 {
		t.Errorf("archived conversation: %+v", archived)
	}
}

func TestSendSkipsUnresolvedAttachments(t *testing.T) {
	caller := &fakeCaller{events: okEvents()}
	c := newTestController(t, caller)
	if err := c.registry.Add(files.UploadedFile{ID: "file_abc123", Name: "notes.txt"}); err != nil {
		t.Fatal(err)
	}

	_, skipped, err := c.Send(context.Background(), "see attachments", []string{"notes.txt", "ghost"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 1 {
		t.Fatalf("expected 1 skipped handle, got %d", len(skipped))
	}
	var ae *chat.AssemblyError
	if !errors.As(skipped[0], &ae) || ae.Handle != "ghost" {
		t.Errorf("expected AssemblyError for ghost, got %v", skipped[0])
	}

	sent := caller.lastReq.Messages[0]
	if got := sent.FileIDs(); len(got) != 1 || got[0] != "file_abc123" {
		t.Errorf("resolved attachment missing from request: %v", got)
	}
}

func TestBlockingModeMatchesStreaming(t *testing.T) {
	caller := &fakeCaller{}
	c := newTestController(t, caller)
	c.stream = false

	assistant, _, err := c.Send(context.Background(), "hello", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if assistant.Text() != "scripted reply" {
		t.Errorf("assistant text: %q", assistant.Text())
	}
	if got := c.Status().Messages; got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}
}

func TestEventLogFollowsConversationSwitch(t *testing.T) {
	caller := &fakeCaller{events: okEvents()}
	registry, err := files.NewRegistry(nil)
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.NewJSONDir(t.TempDir(), 10)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.APIKey = "test-key"
	conv := chat.NewConversation(config.ResolveModel(cfg.Model))
	logger, err := NewEventLogger(filepath.Join(t.TempDir(), "events.jsonl"), conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	c := NewController(Options{
		Caller:       caller,
		Registry:     registry,
		Store:        st,
		Config:       cfg,
		Events:       logger,
		Stream:       true,
		Conversation: conv,
	})

	if _, _, err := c.Send(context.Background(), "first", nil, nil); err != nil {
		t.Fatal(err)
	}
	oldID := c.Status().ConversationID
	if err := c.NewConversation(""); err != nil {
		t.Fatal(err)
	}
	newID := c.Status().ConversationID
	if _, _, err := c.Send(context.Background(), "second", nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.LoadConversation(oldID); err != nil {
		t.Fatal(err)
	}

	events, err := logger.ReadRecent(0)
	if err != nil {
		t.Fatal(err)
	}
	byType := func(et EventType) []LogEvent {
		var out []LogEvent
		for _, e := range events {
			if e.Type == et {
				out = append(out, e)
			}
		}
		return out
	}

	created := byType(EventConversationNew)
	if len(created) != 1 || created[0].ConversationID != newID {
		t.Fatalf("conversation_new stamped with %v, want %s", created, newID)
	}
	users := byType(EventUserMessage)
	if len(users) != 2 {
		t.Fatalf("expected 2 user_message events, got %d", len(users))
	}
	if users[0].ConversationID != oldID {
		t.Errorf("first turn stamped %q, want %q", users[0].ConversationID, oldID)
	}
	if users[1].ConversationID != newID {
		t.Errorf("second turn stamped %q, want %q", users[1].ConversationID, newID)
	}
	loaded := byType(EventConversationLoad)
	if len(loaded) != 1 || loaded[0].ConversationID != oldID {
		t.Fatalf("conversation_load stamped with %v, want %s", loaded, oldID)
	}
}
