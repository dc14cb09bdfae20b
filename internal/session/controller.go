// Package session orchestrates the chat loop: it owns the active
// conversation, gates commands while a model call is in flight, and wires
// the file registry, persistence and usage tracking together.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cachet-ai/cachet/internal/chat"
	"github.com/cachet-ai/cachet/internal/config"
	"github.com/cachet-ai/cachet/internal/files"
	"github.com/cachet-ai/cachet/internal/store"
)

// Controller owns the session state machine. It is either idle or awaiting
// a response; every mutating operation is rejected with chat.ErrBusy while
// a call is in flight. Read-only status stays available throughout.
type Controller struct {
	mu       sync.Mutex
	awaiting bool

	conv     *chat.Conversation
	caller   chat.Caller
	registry *files.Registry
	uploader files.Uploader
	store    store.Store
	cfg      *config.Config
	usage    *UsageTracker
	events   *EventLogger

	stream bool
	now    func() time.Time
}

// Options wires the controller's collaborators.
type Options struct {
	Caller   chat.Caller
	Registry *files.Registry
	Uploader files.Uploader
	Store    store.Store
	Config   *config.Config
	Events   *EventLogger
	Stream   bool

	// Conversation resumes an existing conversation; nil starts fresh.
	Conversation *chat.Conversation

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewController assembles a controller in the idle state.
func NewController(opts Options) *Controller {
	conv := opts.Conversation
	if conv == nil {
		conv = chat.NewConversation(config.ResolveModel(opts.Config.Model))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		conv:     conv,
		caller:   opts.Caller,
		registry: opts.Registry,
		uploader: opts.Uploader,
		store:    opts.Store,
		cfg:      opts.Config,
		usage:    NewUsageTracker(),
		events:   opts.Events,
		stream:   opts.Stream,
		now:      now,
	}
}

// Status is a read-only snapshot of the session.
type Status struct {
	ConversationID string
	Model          string
	SearchEnabled  bool
	Messages       int
	Files          int
	Cache          chat.CacheStatus
	Awaiting       bool
}

// Status reports the current session state. Available while awaiting.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		ConversationID: c.conv.ID,
		Model:          c.conv.Model,
		SearchEnabled:  c.conv.SearchEnabled,
		Messages:       len(c.conv.Messages),
		Files:          c.registry.Len(),
		Cache:          c.conv.CacheStatus(c.now()),
		Awaiting:       c.awaiting,
	}
}

// Send runs one full turn: assemble the pending user message, call the
// model, and commit the exchange atomically. The pending message is held
// outside the conversation until the reply lands, so a transport failure
// or cancellation leaves the log exactly as it was. Returns the assistant
// message plus any attachment handles that were skipped during assembly.
func (c *Controller) Send(ctx context.Context, text string, attachments []string, sink chat.Sink) (chat.Message, []error, error) {
	if sink == nil {
		sink = chat.NopSink{}
	}

	c.mu.Lock()
	if c.awaiting {
		c.mu.Unlock()
		return chat.Message{}, nil, chat.ErrBusy
	}
	c.awaiting = true
	pending, skipped := chat.BuildUserMessage(text, attachments, c.registry, c.now())
	req := chat.BuildRequest(c.conv, pending, chat.RequestConfig{
		Model:         c.conv.Model,
		MaxTokens:     c.cfg.MaxTokens,
		SearchEnabled: c.conv.SearchEnabled,
		MaxSearchUses: c.cfg.MaxSearchesPerTurn,
	})
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.awaiting = false
		c.mu.Unlock()
	}()

	c.logEvent(EventUserMessage, pending.Text())

	assistant, usage, err := c.call(ctx, req, sink)
	if err != nil {
		c.logEvent(EventTurnError, err.Error())
		return chat.Message{}, skipped, err
	}

	c.mu.Lock()
	if err := c.conv.AppendTurn(pending, assistant); err != nil {
		c.mu.Unlock()
		return chat.Message{}, skipped, err
	}
	c.conv.RecordCacheHit(usage, c.now())
	c.mu.Unlock()

	c.usage.RecordTurn(c.conv.Model, usage)
	c.logEvent(EventAssistantText, assistant.Text())
	if err := c.persist(); err != nil {
		return assistant, skipped, err
	}
	return assistant, skipped, nil
}

// call dispatches to the streaming or blocking transport. The lock is not
// held here; only the awaiting flag guards the session during the call.
func (c *Controller) call(ctx context.Context, req *chat.Request, sink chat.Sink) (chat.Message, chat.Usage, error) {
	if c.stream {
		events, err := c.caller.Stream(ctx, req)
		if err != nil {
			return chat.Message{}, chat.Usage{}, &chat.TransportError{Err: err}
		}
		return chat.Aggregate(ctx, events, sink, c.now())
	}
	resp, err := c.caller.Complete(ctx, req)
	if err != nil {
		return chat.Message{}, chat.Usage{}, &chat.TransportError{Err: err}
	}
	msg, usage := chat.FromResponse(resp, c.now())
	return msg, usage, nil
}

// guard acquires the lock for a mutating command, rejecting while awaiting.
// The returned unlock must be called.
func (c *Controller) guard() (func(), error) {
	c.mu.Lock()
	if c.awaiting {
		c.mu.Unlock()
		return nil, chat.ErrBusy
	}
	return c.mu.Unlock, nil
}

// SwitchModel changes the model for subsequent turns. Accepts aliases.
func (c *Controller) SwitchModel(name string) (string, error) {
	unlock, err := c.guard()
	if err != nil {
		return "", err
	}
	defer unlock()
	c.conv.Model = config.ResolveModel(name)
	return c.conv.Model, nil
}

// ToggleSearch flips web search for subsequent turns and reports the new
// setting.
func (c *Controller) ToggleSearch() (bool, error) {
	unlock, err := c.guard()
	if err != nil {
		return false, err
	}
	defer unlock()
	c.conv.SearchEnabled = !c.conv.SearchEnabled
	return c.conv.SearchEnabled, nil
}

// SetCache marks the end of the current conversation as the cache
// boundary with the given duration class.
func (c *Controller) SetCache(d chat.DurationClass) (int, error) {
	unlock, err := c.guard()
	if err != nil {
		return 0, err
	}
	defer unlock()
	idx, err := c.conv.SetCacheBoundary(d, c.now())
	if err != nil {
		return 0, err
	}
	c.logEvent(EventCacheSet, string(d))
	return idx, c.persistLocked()
}

// ClearCache removes the cache boundary.
func (c *Controller) ClearCache() error {
	unlock, err := c.guard()
	if err != nil {
		return err
	}
	defer unlock()
	c.conv.ClearCacheBoundary()
	c.logEvent(EventCacheClear, nil)
	return c.persistLocked()
}

// NewConversation archives the current conversation under the given title
// (or a generated timestamp) and starts a fresh one. The model choice
// carries over; search and the cache boundary reset. The file registry is
// cleared locally, leaving the remote uploads in place.
func (c *Controller) NewConversation(archiveTitle string) error {
	unlock, err := c.guard()
	if err != nil {
		return err
	}
	defer unlock()
	if c.store != nil && len(c.conv.Messages) > 0 {
		if archiveTitle == "" {
			archiveTitle = c.now().Format("2006-01-02-150405")
		}
		c.conv.Title = archiveTitle
		if err := c.store.Archive(c.conv); err != nil {
			return fmt.Errorf("archive conversation: %w", err)
		}
	}
	c.conv.Reset()
	if err := c.registry.Clear(); err != nil {
		return fmt.Errorf("clear file registry: %w", err)
	}
	if c.events != nil {
		c.events.SetConversation(c.conv.ID)
	}
	c.logEvent(EventConversationNew, c.conv.ID)
	return c.persistLocked()
}

// SaveConversation archives the current conversation under the given
// title and keeps it as the active conversation.
func (c *Controller) SaveConversation(title string) (string, error) {
	unlock, err := c.guard()
	if err != nil {
		return "", err
	}
	defer unlock()
	if len(c.conv.Messages) == 0 {
		return "", chat.ErrEmptyConversation
	}
	if title != "" {
		c.conv.Title = title
	}
	if err := c.store.Archive(c.conv); err != nil {
		return "", fmt.Errorf("archive conversation: %w", err)
	}
	c.logEvent(EventConversationSave, c.conv.ID)
	return c.conv.ID, c.persistLocked()
}

// LoadConversation replaces the active conversation with an archived one.
// The current conversation is discarded, not archived.
func (c *Controller) LoadConversation(id string) error {
	unlock, err := c.guard()
	if err != nil {
		return err
	}
	defer unlock()
	loaded, err := c.store.Load(id)
	if err != nil {
		return err
	}
	c.conv = loaded
	if c.events != nil {
		c.events.SetConversation(loaded.ID)
	}
	c.logEvent(EventConversationLoad, loaded.ID)
	return c.persistLocked()
}

// ListConversations returns archive summaries, newest first.
func (c *Controller) ListConversations() ([]store.Info, error) {
	return c.store.List()
}

// Upload sends a local file to the provider and records it in the
// registry.
func (c *Controller) Upload(ctx context.Context, path string) (files.UploadedFile, error) {
	unlock, err := c.guard()
	if err != nil {
		return files.UploadedFile{}, err
	}
	defer unlock()
	f, err := c.uploader.Upload(ctx, path)
	if err != nil {
		return files.UploadedFile{}, err
	}
	if err := c.registry.Add(f); err != nil {
		return files.UploadedFile{}, err
	}
	c.logEvent(EventFileUpload, f.ID)
	return f, nil
}

// RemoveFile drops a file from the registry. With remote set, the
// provider-side copy is deleted too. Historical messages referencing the
// file id are never touched.
func (c *Controller) RemoveFile(ctx context.Context, handle string, remote bool) error {
	unlock, err := c.guard()
	if err != nil {
		return err
	}
	defer unlock()
	ref, ok := c.registry.Resolve(handle)
	if !ok {
		return &chat.AssemblyError{Handle: handle}
	}
	if remote {
		if err := c.uploader.Delete(ctx, ref.ID); err != nil {
			return fmt.Errorf("delete remote file: %w", err)
		}
	}
	if _, err := c.registry.Remove(ref.ID); err != nil {
		return err
	}
	c.logEvent(EventFileRemove, ref.ID)
	return nil
}

// Cleanup deletes every registered file remotely and clears the registry.
// Failures are collected so one bad delete does not strand the rest.
func (c *Controller) Cleanup(ctx context.Context) (int, error) {
	unlock, err := c.guard()
	if err != nil {
		return 0, err
	}
	defer unlock()

	var errs []error
	removed := 0
	for _, f := range c.registry.List() {
		if err := c.uploader.Delete(ctx, f.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", f.ID, err))
			continue
		}
		if _, err := c.registry.Remove(f.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// ListFiles returns the registered uploads in insertion order.
func (c *Controller) ListFiles() []files.UploadedFile {
	return c.registry.List()
}

// Usage returns the session usage tracker.
func (c *Controller) Usage() *UsageTracker { return c.usage }

// Events returns the event logger, or nil when logging is disabled.
func (c *Controller) Events() *EventLogger { return c.events }

// persist saves the active conversation snapshot.
func (c *Controller) persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked()
}

func (c *Controller) persistLocked() error {
	if c.store == nil {
		return nil
	}
	if err := c.store.SaveCurrent(c.conv); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (c *Controller) logEvent(t EventType, data any) {
	if c.events != nil {
		c.events.Log(t, data)
	}
}
