// Package chat holds the conversation data model: messages with tagged
// content blocks, the conversation log with its role-alternation invariant,
// the prompt-cache boundary tracker, request assembly, and the streaming
// response aggregator. Everything network-facing lives behind the Caller
// interface so the package stays testable without an API key.
package chat

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type BlockType string

const (
	BlockText     BlockType = "text"
	BlockFile     BlockType = "file"
	BlockCitation BlockType = "citation"
)

// CacheControl marks a message as the prompt-cache boundary.
// At most one message in a conversation carries it.
type CacheControl struct {
	Type string `json:"type"` // always "ephemeral"
	TTL  string `json:"ttl"`  // "5m" or "1h"
}

// Block is a single content block within a message.
type Block struct {
	Type BlockType `json:"type"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockFile: reference to an uploaded file by remote id.
	// The name is kept for display; the id alone goes on the wire.
	FileID   string `json:"file_id,omitempty"`
	FileName string `json:"file_name,omitempty"`

	// BlockCitation: a web search result cited by the assistant.
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	CitedText string `json:"cited_text,omitempty"`
}

// Message is one conversational turn. Messages are immutable once appended;
// the only permitted mutation is setting or clearing the cache marker.
type Message struct {
	Role         Role          `json:"role"`
	Blocks       []Block       `json:"content"`
	CreatedAt    time.Time     `json:"created_at"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// NewUserMessage builds a user message from plain text. Raw string content is
// normalized into a single text block at this boundary so downstream code
// never branches on content shape.
func NewUserMessage(text string, now time.Time) Message {
	return Message{
		Role:      RoleUser,
		Blocks:    []Block{{Type: BlockText, Text: text}},
		CreatedAt: now,
	}
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Blocks {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// Citations returns the message's citation blocks.
func (m Message) Citations() []Block {
	var out []Block
	for _, b := range m.Blocks {
		if b.Type == BlockCitation {
			out = append(out, b)
		}
	}
	return out
}

// FileIDs returns the remote ids of files referenced by the message.
func (m Message) FileIDs() []string {
	var out []string
	for _, b := range m.Blocks {
		if b.Type == BlockFile {
			out = append(out, b.FileID)
		}
	}
	return out
}
