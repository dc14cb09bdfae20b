package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Conversation is the ordered message log plus session metadata. It is owned
// by the session controller; other components reference messages by index
// and never copy the log.
type Conversation struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Model         string      `json:"model"`
	SearchEnabled bool        `json:"search_enabled"`
	Messages      []Message   `json:"messages"`
	Cache         *CacheState `json:"cache_state,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// NewConversation creates an empty conversation for the given model.
func NewConversation(model string) *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		Model:     model,
		CreatedAt: time.Now(),
	}
}

func (c *Conversation) Len() int { return len(c.Messages) }

// Append adds one message, enforcing strict role alternation starting with
// a user turn. History is append-only: corrections happen by appending new
// messages, never by rewriting.
func (c *Conversation) Append(msg Message) error {
	if len(c.Messages) == 0 {
		if msg.Role != RoleUser {
			return fmt.Errorf("conversation must start with a user message, got %s", msg.Role)
		}
	} else if last := c.Messages[len(c.Messages)-1].Role; last == msg.Role {
		return fmt.Errorf("role %s cannot follow itself", msg.Role)
	}
	c.Messages = append(c.Messages, msg)
	return nil
}

// AppendTurn appends a user message and its assistant reply atomically.
// Either both land in the log or neither does, so a failed turn can never
// leave a dangling user message.
func (c *Conversation) AppendTurn(user, assistant Message) error {
	if user.Role != RoleUser || assistant.Role != RoleAssistant {
		return fmt.Errorf("turn must be user then assistant, got %s/%s", user.Role, assistant.Role)
	}
	if n := len(c.Messages); n > 0 && c.Messages[n-1].Role == RoleUser {
		return fmt.Errorf("cannot append turn: log already ends with a user message")
	}
	c.Messages = append(c.Messages, user, assistant)
	return nil
}

// Reset clears the message log and cache state. The model carries over;
// the search toggle resets to off.
func (c *Conversation) Reset() {
	model := c.Model
	*c = Conversation{
		ID:        uuid.NewString(),
		Model:     model,
		CreatedAt: time.Now(),
	}
}
