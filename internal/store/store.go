// Package store persists conversations. The active conversation lives in a
// single well-known file; saved conversations are archived alongside it with
// a bounded retention count.
package store

import (
	"errors"
	"time"

	"github.com/cachet-ai/cachet/internal/chat"
)

// ErrNotFound is returned when no conversation matches the requested ID.
var ErrNotFound = errors.New("conversation not found")

// Store abstracts conversation persistence.
type Store interface {
	// SaveCurrent overwrites the active conversation snapshot.
	SaveCurrent(c *chat.Conversation) error
	// LoadCurrent reads the active conversation, or ErrNotFound.
	LoadCurrent() (*chat.Conversation, error)
	// Archive saves a named copy and evicts the oldest archives beyond
	// the retention limit.
	Archive(c *chat.Conversation) error
	// Load reads an archived conversation by ID or unique ID prefix.
	Load(id string) (*chat.Conversation, error)
	// List returns archive summaries, most recently saved first.
	List() ([]Info, error)
	// Delete removes an archived conversation.
	Delete(id string) error
}

// Info is a lightweight summary of an archived conversation.
type Info struct {
	ID       string
	Title    string
	Model    string
	Messages int
	SavedAt  time.Time
}
