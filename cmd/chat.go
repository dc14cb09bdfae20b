package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cachet-ai/cachet/internal/chat"
	"github.com/cachet-ai/cachet/internal/config"
	"github.com/cachet-ai/cachet/internal/files"
	"github.com/cachet-ai/cachet/internal/provider"
	"github.com/cachet-ai/cachet/internal/session"
	"github.com/cachet-ai/cachet/internal/store"
	"github.com/cachet-ai/cachet/internal/tui"
)

// runChat starts the interactive chat (REPL) mode.
func runChat() error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}

	conversations, err := store.NewJSONDir(filepath.Join(cfg.DataDir, "conversations"), cfg.MaxSavedConversations)
	if err != nil {
		return err
	}

	fileStore, err := files.NewSQLiteStore(filepath.Join(cfg.DataDir, "files.db"))
	if err != nil {
		return fmt.Errorf("open file registry: %w", err)
	}
	defer fileStore.Close()

	registry, err := files.NewRegistry(fileStore)
	if err != nil {
		return fmt.Errorf("load file registry: %w", err)
	}

	conv, err := resumeConversation(conversations, cfg)
	if err != nil {
		return err
	}

	var events *session.EventLogger
	if cfg.EventLog != "" {
		events, err = session.NewEventLogger(cfg.EventLog, conv.ID)
		if err != nil {
			return err
		}
		defer events.Close()
		events.Log(session.EventSessionStart, nil)
		defer events.Log(session.EventSessionEnd, nil)
	}

	maxBytes := int64(cfg.MaxFileSizeMB) * 1024 * 1024
	ctrl := session.NewController(session.Options{
		Caller:       provider.NewAnthropic(cfg.APIKey),
		Registry:     registry,
		Uploader:     files.NewAnthropicUploader(cfg.APIKey, maxBytes),
		Store:        conversations,
		Config:       cfg,
		Events:       events,
		Stream:       !noStream,
		Conversation: conv,
	})

	ui := tui.NewPlainIO()
	ui.SystemMessage(fmt.Sprintf("cachet %s — %s (/help for commands)", displayVersion(), config.DisplayName(conv.Model)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SIGINT cancels the in-flight turn; the partial reply is discarded
	// and the prompt returns. SIGTERM ends the session.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return session.NewLoop(ctrl, ui).Run(ctx)
}

// resumeConversation picks the starting conversation: an archived one when
// --conversation is set, otherwise the active snapshot unless --new.
func resumeConversation(s store.Store, cfg *config.Config) (*chat.Conversation, error) {
	if convFlag != "" {
		return s.Load(convFlag)
	}
	if startNew {
		return chat.NewConversation(config.ResolveModel(cfg.Model)), nil
	}
	conv, err := s.LoadCurrent()
	if errors.Is(err, store.ErrNotFound) {
		return chat.NewConversation(config.ResolveModel(cfg.Model)), nil
	}
	if err != nil {
		return nil, err
	}
	if modelFlag != "" {
		conv.Model = config.ResolveModel(modelFlag)
	}
	return conv, nil
}
