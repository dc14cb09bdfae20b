package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/cachet-ai/cachet/internal/chat"
	"github.com/cachet-ai/cachet/internal/config"
	"github.com/cachet-ai/cachet/internal/tui"
)

// Loop drives the interactive session: it reads input, dispatches slash
// commands, and runs chat turns through the controller.
type Loop struct {
	ctrl *Controller
	io   tui.IO

	// attachments queued via /attach for the next message.
	pending []string
}

// NewLoop creates the interactive loop.
func NewLoop(ctrl *Controller, io tui.IO) *Loop {
	return &Loop{ctrl: ctrl, io: io}
}

// Run reads input until the user quits or input is exhausted.
func (l *Loop) Run(ctx context.Context) error {
	l.showStatus()

	for {
		input, err := l.io.ReadInput()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := l.handleCommand(ctx, input); quit {
				return nil
			}
			continue
		}

		l.sendTurn(ctx, input)
	}
}

// ioSink adapts the terminal layer to the streaming sink contract.
type ioSink struct {
	io  tui.IO
	max int
}

func (s ioSink) TextDelta(delta string) { s.io.TextDelta(delta) }
func (s ioSink) SearchStatus(index int) { s.io.SearchStatus(index, s.max) }

func (l *Loop) sendTurn(ctx context.Context, text string) {
	attachments := l.pending
	l.pending = nil

	l.io.UserMessage(text)
	l.io.ThinkingStart()

	// Ctrl+C cancels this turn only; the partial reply is discarded and
	// the prompt returns.
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	assistant, skipped, err := l.ctrl.Send(turnCtx, text, attachments, ioSink{io: l.io, max: l.ctrl.cfg.MaxSearchesPerTurn})
	for _, s := range skipped {
		l.io.Error(s.Error())
	}
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrBusy):
			l.io.Error("a response is already in flight")
		case errors.Is(err, context.Canceled):
			l.io.SystemMessage("\nTurn cancelled; nothing was saved.")
		default:
			l.io.Error(err.Error())
		}
		return
	}

	l.io.TextDone(assistant.Text())
	for _, c := range assistant.Citations() {
		l.io.Citation(c.Title, c.URL)
	}
	l.showStatus()
}

// handleCommand processes built-in commands. Returns true to quit.
func (l *Loop) handleCommand(ctx context.Context, input string) bool {
	parts := strings.SplitN(strings.TrimSpace(input), " ", 2)
	cmd := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "/quit", "/exit", "/q":
		l.io.SystemMessage("Bye.")
		return true

	case "/help":
		l.io.SystemMessage(helpText)

	case "/new":
		if err := l.ctrl.NewConversation(arg); err != nil {
			l.io.Error(err.Error())
			break
		}
		l.pending = nil
		l.io.SystemMessage("Started a new conversation; the previous one was archived.")
		l.showStatus()

	case "/save":
		id, err := l.ctrl.SaveConversation(arg)
		if err != nil {
			l.io.Error(err.Error())
			break
		}
		l.io.SystemMessage(fmt.Sprintf("Saved conversation %s.", shortID(id)))

	case "/load":
		if arg == "" {
			l.io.Error("usage: /load <id>")
			break
		}
		if err := l.ctrl.LoadConversation(arg); err != nil {
			l.io.Error(err.Error())
			break
		}
		l.io.SystemMessage("Conversation loaded.")
		l.showStatus()

	case "/list":
		l.handleList()

	case "/model":
		if arg == "" {
			l.io.SystemMessage(fmt.Sprintf("Current model: %s (aliases: %s)",
				config.DisplayName(l.ctrl.Status().Model), strings.Join(config.KnownAliases(), ", ")))
			break
		}
		model, err := l.ctrl.SwitchModel(arg)
		if err != nil {
			l.io.Error(err.Error())
			break
		}
		l.io.SystemMessage("Switched to " + config.DisplayName(model) + ".")

	case "/web":
		on, err := l.ctrl.ToggleSearch()
		if err != nil {
			l.io.Error(err.Error())
			break
		}
		if on {
			l.io.SystemMessage("Web search enabled.")
		} else {
			l.io.SystemMessage("Web search disabled.")
		}

	case "/cache":
		l.handleCache(arg)

	case "/files":
		l.handleFiles()

	case "/upload":
		if arg == "" {
			l.io.Error("usage: /upload <path>")
			break
		}
		f, err := l.ctrl.Upload(ctx, arg)
		if err != nil {
			l.io.Error(err.Error())
			break
		}
		l.io.SystemMessage(fmt.Sprintf("Uploaded %s (%s, %d bytes) as %s.", f.Name, f.MimeType, f.Size, shortID(f.ID)))

	case "/attach":
		if arg == "" {
			l.io.Error("usage: /attach <file-id|name>")
			break
		}
		l.pending = append(l.pending, arg)
		l.io.SystemMessage(fmt.Sprintf("Will attach %q to the next message.", arg))

	case "/rm":
		l.handleRemove(ctx, arg)

	case "/cleanup":
		n, err := l.ctrl.Cleanup(ctx)
		if err != nil {
			l.io.Error(err.Error())
		}
		l.io.SystemMessage(fmt.Sprintf("Deleted %d uploaded files.", n))

	case "/usage":
		l.io.SystemMessage(l.ctrl.Usage().Summary())

	case "/events":
		l.handleEvents(arg)

	case "/status":
		l.showStatus()

	default:
		l.io.Error(fmt.Sprintf("unknown command %s (try /help)", cmd))
	}
	return false
}

func (l *Loop) handleCache(arg string) {
	fields := strings.Fields(arg)
	sub := ""
	if len(fields) > 0 {
		sub = fields[0]
	}

	switch sub {
	case "status", "":
		l.io.SystemMessage(formatCacheStatus(l.ctrl.Status().Cache))

	case "clear", "off":
		if err := l.ctrl.ClearCache(); err != nil {
			l.io.Error(err.Error())
			break
		}
		l.io.SystemMessage("Cache boundary cleared.")

	default:
		d, err := chat.ParseDurationClass(sub)
		if err != nil {
			l.io.Error(err.Error())
			break
		}
		idx, err := l.ctrl.SetCache(d)
		if err != nil {
			l.io.Error(err.Error())
			break
		}
		l.io.SystemMessage(fmt.Sprintf("Cache boundary set after message %d (%s window).", idx+1, d))
	}
}

func (l *Loop) handleList() {
	infos, err := l.ctrl.ListConversations()
	if err != nil {
		l.io.Error(err.Error())
		return
	}
	if len(infos) == 0 {
		l.io.SystemMessage("No saved conversations.")
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Saved conversations (%d):\n", len(infos)))
	for _, info := range infos {
		title := info.Title
		if title == "" {
			title = "(untitled)"
		}
		sb.WriteString(fmt.Sprintf("  %s  %-30s  %s  %d msgs  %s\n",
			shortID(info.ID), title, config.DisplayName(info.Model), info.Messages,
			info.SavedAt.Format("2006-01-02 15:04")))
	}
	l.io.SystemMessage(strings.TrimRight(sb.String(), "\n"))
}

func (l *Loop) handleFiles() {
	uploads := l.ctrl.ListFiles()
	if len(uploads) == 0 {
		l.io.SystemMessage("No uploaded files.")
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Uploaded files (%d):\n", len(uploads)))
	for _, f := range uploads {
		sb.WriteString(fmt.Sprintf("  %s  %-30s  %-16s  %d bytes\n",
			shortID(f.ID), f.Name, f.MimeType, f.Size))
	}
	l.io.SystemMessage(strings.TrimRight(sb.String(), "\n"))
}

func (l *Loop) handleRemove(ctx context.Context, arg string) {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		l.io.Error("usage: /rm <file-id> [--remote]")
		return
	}
	handle := fields[0]
	remote := len(fields) > 1 && fields[1] == "--remote"
	if err := l.ctrl.RemoveFile(ctx, handle, remote); err != nil {
		l.io.Error(err.Error())
		return
	}
	if remote {
		l.io.SystemMessage("File removed locally and remotely.")
	} else {
		l.io.SystemMessage("File removed from the registry (remote copy kept).")
	}
}

func (l *Loop) handleEvents(arg string) {
	logger := l.ctrl.Events()
	if logger == nil {
		l.io.SystemMessage("Event logging is disabled.")
		return
	}
	n := 20
	if arg != "" {
		if v, err := strconv.Atoi(arg); err == nil && v > 0 {
			n = v
		}
	}
	events, err := logger.ReadRecent(n)
	if err != nil {
		l.io.Error(err.Error())
		return
	}
	l.io.SystemMessage(FormatEvents(events, "Recent events"))
}

func (l *Loop) showStatus() {
	s := l.ctrl.Status()
	l.io.SetStatus(tui.Status{
		Model:         config.DisplayName(s.Model),
		SearchEnabled: s.SearchEnabled,
		CacheStatus:   cacheBadge(s.Cache),
		Messages:      s.Messages,
		Files:         s.Files,
		Cost:          l.ctrl.Usage().FormatCost(),
	})
}

func formatCacheStatus(s chat.CacheStatus) string {
	if s.Kind == chat.CacheAbsent {
		return "No cache boundary set."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Cache %s: %d messages cached, %s window, age %s",
		s.Kind, s.CachedMessages, s.Duration, s.Age.Round(time.Second)))
	if s.CreationTokens > 0 {
		sb.WriteString(fmt.Sprintf("\n  cache written: %d tokens", s.CreationTokens))
	}
	if s.LastHitTokens > 0 {
		sb.WriteString(fmt.Sprintf("\n  last hit read: %d tokens", s.LastHitTokens))
	}
	return sb.String()
}

func cacheBadge(s chat.CacheStatus) string {
	if s.Kind == chat.CacheAbsent {
		return ""
	}
	return s.Kind.String()
}

// shortID abbreviates a uuid or provider file id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

const helpText = `Commands:
  /new [title]       archive the current conversation and start fresh
  /save [title]      archive the current conversation
  /load <id>         load an archived conversation
  /list              list archived conversations
  /model [name]      show or switch the model (sonnet, opus, or full id)
  /web               toggle web search for following turns
  /cache [5m|1h]     set the cache boundary at the current history end
  /cache status      show cache boundary state
  /cache clear       remove the cache boundary
  /upload <path>     upload a file (text, pdf, images; 32MB max)
  /attach <file>     attach an uploaded file to the next message
  /files             list uploaded files
  /rm <file> [--remote]  remove a file from the registry
  /cleanup           delete all uploaded files remotely
  /usage             show token usage and cost
  /events [n]        show recent session events
  /quit              exit`
