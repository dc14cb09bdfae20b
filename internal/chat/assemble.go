package chat

import "time"

// FileRef is the resolved identity of an uploaded file.
type FileRef struct {
	ID   string
	Name string
}

// FileResolver resolves a user-supplied handle (remote id, id prefix, or
// display name) to an uploaded file. Implemented by files.Registry.
type FileResolver interface {
	Resolve(handle string) (FileRef, bool)
}

// RequestConfig carries the per-turn assembly parameters.
type RequestConfig struct {
	Model         string
	MaxTokens     int
	SearchEnabled bool
	MaxSearchUses int
}

// Request is the assembled payload for one model call. It is built fresh per
// turn and never mutated after assembly.
type Request struct {
	Model         string
	MaxTokens     int
	Messages      []Message
	SearchEnabled bool
	MaxSearchUses int
}

// BuildUserMessage constructs the pending user turn: the text plus one file
// block per attachment handle resolved through the registry. Handles that no
// longer resolve are skipped and reported as AssemblyErrors: a removed file
// must not abort the turn, and it must never touch the historical messages
// that still reference its id.
func BuildUserMessage(text string, attachments []string, reg FileResolver, now time.Time) (Message, []error) {
	msg := NewUserMessage(text, now)
	var skipped []error
	for _, handle := range attachments {
		ref, ok := reg.Resolve(handle)
		if !ok {
			skipped = append(skipped, &AssemblyError{Handle: handle})
			continue
		}
		msg.Blocks = append(msg.Blocks, Block{
			Type:     BlockFile,
			FileID:   ref.ID,
			FileName: ref.Name,
		})
	}
	return msg, skipped
}

// BuildRequest serializes the full history plus the pending user turn into an
// outbound request. The cache marker rides on whichever message carries it.
// A stale marker is still sent: the provider simply treats it as a miss and
// re-establishes a fresh cache at that boundary.
func BuildRequest(conv *Conversation, pending Message, cfg RequestConfig) *Request {
	msgs := make([]Message, 0, len(conv.Messages)+1)
	msgs = append(msgs, conv.Messages...)
	msgs = append(msgs, pending)
	return &Request{
		Model:         cfg.Model,
		MaxTokens:     cfg.MaxTokens,
		Messages:      msgs,
		SearchEnabled: cfg.SearchEnabled,
		MaxSearchUses: cfg.MaxSearchUses,
	}
}
