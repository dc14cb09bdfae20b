package chat

import (
	"context"
	"strings"
	"time"
)

// Caller is the model endpoint. Implemented by provider.Anthropic; faked in
// tests. Stream emits Events until EventDone or EventError, then closes the
// channel; the consumer must drain it. Complete blocks for the full reply.
type Caller interface {
	Stream(ctx context.Context, req *Request) (<-chan Event, error)
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Sink receives incremental output while a streamed turn is in flight.
type Sink interface {
	TextDelta(delta string)
	SearchStatus(index int)
}

// NopSink discards incremental output (blocking mode, tests).
type NopSink struct{}

func (NopSink) TextDelta(string) {}
func (NopSink) SearchStatus(int) {}

// Aggregate folds a stream of delta events into one assistant message. The
// accumulating buffer lives only on this stack frame: until the terminal
// event arrives nothing is visible to the message store, and on a transport
// error or cancellation the buffer is discarded and an error returned. At
// most one complete turn ever lands.
func Aggregate(ctx context.Context, events <-chan Event, sink Sink, now time.Time) (Message, Usage, error) {
	var (
		text      strings.Builder
		citations []Block
		usage     Usage
		streamErr error
		done      bool
	)

	for ev := range events {
		if ctx.Err() != nil {
			// Drain so the producer goroutine can exit.
			for range events {
			}
			return Message{}, Usage{}, &TransportError{Err: ctx.Err()}
		}
		switch ev.Type {
		case EventTextDelta:
			text.WriteString(ev.TextDelta)
			sink.TextDelta(ev.TextDelta)
		case EventSearchStatus:
			sink.SearchStatus(ev.SearchIndex)
		case EventCitation:
			if ev.Citation != nil {
				citations = append(citations, *ev.Citation)
			}
		case EventDone:
			if ev.Usage != nil {
				usage = *ev.Usage
			}
			done = true
		case EventError:
			streamErr = ev.Err
		}
	}

	if streamErr != nil {
		return Message{}, Usage{}, &TransportError{Err: streamErr}
	}
	if !done {
		return Message{}, Usage{}, &TransportError{Err: context.Canceled}
	}
	return assistantMessage(text.String(), citations, now), usage, nil
}

// FromResponse parses a complete blocking reply into the same shape the
// streaming fold produces.
func FromResponse(resp *Response, now time.Time) (Message, Usage) {
	var text strings.Builder
	var citations []Block
	for _, b := range resp.Blocks {
		switch b.Type {
		case BlockText:
			text.WriteString(b.Text)
		case BlockCitation:
			citations = append(citations, b)
		}
	}
	return assistantMessage(text.String(), citations, now), resp.Usage
}

func assistantMessage(text string, citations []Block, now time.Time) Message {
	blocks := make([]Block, 0, 1+len(citations))
	blocks = append(blocks, Block{Type: BlockText, Text: text})
	blocks = append(blocks, citations...)
	return Message{
		Role:      RoleAssistant,
		Blocks:    blocks,
		CreatedAt: now,
	}
}
