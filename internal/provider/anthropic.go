// Package provider adapts the Anthropic Messages API to the chat.Caller
// contract: it converts an assembled chat.Request into SDK params (including
// the cache_control annotation and the server web-search tool) and
// normalizes both streamed and blocking replies into chat events.
//
// Calls go through the Beta messages surface. File-id document sources are
// only available there, gated by the files-api beta.
package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/cachet-ai/cachet/internal/chat"
)

// Anthropic implements chat.Caller against the Anthropic native API.
type Anthropic struct {
	client anthropic.Client
}

var _ chat.Caller = (*Anthropic)(nil)

// NewAnthropic creates the API client.
func NewAnthropic(apiKey string) *Anthropic {
	return &Anthropic{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Stream initiates a streaming model call and folds the SSE stream into
// chat events on the returned channel.
func (p *Anthropic) Stream(ctx context.Context, req *chat.Request) (<-chan chat.Event, error) {
	stream := p.client.Beta.Messages.NewStreaming(ctx, p.buildParams(req))

	ch := make(chan chat.Event, 16)
	go p.processStream(ctx, stream, ch)
	return ch, nil
}

// Complete performs a blocking model call.
func (p *Anthropic) Complete(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	msg, err := p.client.Beta.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic call: %w", err)
	}

	resp := &chat.Response{
		Usage: chat.Usage{
			InputTokens:         int(msg.Usage.InputTokens),
			OutputTokens:        int(msg.Usage.OutputTokens),
			CacheCreationTokens: int(msg.Usage.CacheCreationInputTokens),
			CacheReadTokens:     int(msg.Usage.CacheReadInputTokens),
		},
	}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.BetaTextBlock:
			resp.Blocks = append(resp.Blocks, chat.Block{Type: chat.BlockText, Text: b.Text})
			for _, cit := range b.Citations {
				if loc, ok := cit.AsAny().(anthropic.BetaCitationsWebSearchResultLocation); ok {
					resp.Blocks = append(resp.Blocks, chat.Block{
						Type:      chat.BlockCitation,
						URL:       loc.URL,
						Title:     loc.Title,
						CitedText: loc.CitedText,
					})
				}
			}
		}
	}
	return resp, nil
}

// processStream reads the Anthropic SSE stream and emits unified events.
//
// Event sequence of interest:
//   - BetaRawMessageStartEvent -> input + cache usage snapshot
//   - BetaRawContentBlockStartEvent (server_tool_use) -> a web search began
//   - BetaRawContentBlockDeltaEvent (BetaTextDelta) -> emit EventTextDelta
//   - BetaRawContentBlockDeltaEvent (BetaCitationsDelta) -> emit EventCitation
//   - BetaRawMessageDeltaEvent -> output tokens, emit EventDone
func (p *Anthropic) processStream(ctx context.Context, stream *ssestream.Stream[anthropic.BetaRawMessageStreamEventUnion], ch chan<- chat.Event) {
	defer close(ch)
	defer stream.Close()

	var usage chat.Usage
	searches := 0

	for stream.Next() {
		select {
		case <-ctx.Done():
			ch <- chat.Event{Type: chat.EventError, Err: ctx.Err()}
			return
		default:
		}

		event := stream.Current()

		switch variant := event.AsAny().(type) {
		case anthropic.BetaRawMessageStartEvent:
			usage.InputTokens = int(variant.Message.Usage.InputTokens)
			usage.CacheCreationTokens = int(variant.Message.Usage.CacheCreationInputTokens)
			usage.CacheReadTokens = int(variant.Message.Usage.CacheReadInputTokens)

		case anthropic.BetaRawContentBlockStartEvent:
			if variant.ContentBlock.Type == "server_tool_use" {
				searches++
				ch <- chat.Event{Type: chat.EventSearchStatus, SearchIndex: searches}
			}

		case anthropic.BetaRawContentBlockDeltaEvent:
			switch d := variant.Delta.AsAny().(type) {
			case anthropic.BetaTextDelta:
				ch <- chat.Event{Type: chat.EventTextDelta, TextDelta: d.Text}
			case anthropic.BetaCitationsDelta:
				if loc, ok := d.Citation.AsAny().(anthropic.BetaCitationsWebSearchResultLocation); ok {
					ch <- chat.Event{Type: chat.EventCitation, Citation: &chat.Block{
						Type:      chat.BlockCitation,
						URL:       loc.URL,
						Title:     loc.Title,
						CitedText: loc.CitedText,
					}}
				}
			}

		case anthropic.BetaRawMessageDeltaEvent:
			usage.OutputTokens = int(variant.Usage.OutputTokens)
			ch <- chat.Event{Type: chat.EventDone, Usage: &usage}
			return
		}
	}

	if err := stream.Err(); err != nil {
		ch <- chat.Event{Type: chat.EventError, Err: fmt.Errorf("anthropic streaming error: %w", err)}
		return
	}

	ch <- chat.Event{Type: chat.EventDone, Usage: &usage}
}

// buildParams converts the assembled request into SDK params. The
// cache_control annotation lands on the last content block of whichever
// message carries the marker. A stale marker is still sent.
func (p *Anthropic) buildParams(req *chat.Request) anthropic.BetaMessageNewParams {
	params := anthropic.BetaMessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  buildMessages(req.Messages),
		Betas:     []anthropic.AnthropicBeta{anthropic.AnthropicBetaFilesAPI2025_04_14},
	}
	if req.SearchEnabled {
		params.Tools = []anthropic.BetaToolUnionParam{{
			OfWebSearchTool20250305: &anthropic.BetaWebSearchTool20250305Param{
				MaxUses: anthropic.Int(int64(req.MaxSearchUses)),
			},
		}}
	}
	return params
}

func buildMessages(msgs []chat.Message) []anthropic.BetaMessageParam {
	var params []anthropic.BetaMessageParam

	for _, msg := range msgs {
		var blocks []anthropic.BetaContentBlockParamUnion

		for _, b := range msg.Blocks {
			switch b.Type {
			case chat.BlockText:
				blocks = append(blocks, anthropic.BetaContentBlockParamUnion{
					OfText: &anthropic.BetaTextBlockParam{Text: b.Text},
				})
			case chat.BlockFile:
				blocks = append(blocks, anthropic.BetaContentBlockParamUnion{
					OfDocument: &anthropic.BetaRequestDocumentBlockParam{
						Source: anthropic.BetaRequestDocumentBlockSourceUnionParam{
							OfFile: &anthropic.BetaFileDocumentSourceParam{FileID: b.FileID},
						},
					},
				})
			case chat.BlockCitation:
				// Citations are provider-generated annotations; they are
				// not replayed on the wire.
			}
		}
		if len(blocks) == 0 {
			continue
		}

		if msg.CacheControl != nil {
			applyCacheControl(&blocks[len(blocks)-1], msg.CacheControl.TTL)
		}

		role := anthropic.BetaMessageParamRoleUser
		if msg.Role == chat.RoleAssistant {
			role = anthropic.BetaMessageParamRoleAssistant
		}
		params = append(params, anthropic.BetaMessageParam{Role: role, Content: blocks})
	}
	return params
}

// applyCacheControl sets the ephemeral cache annotation on a content block.
func applyCacheControl(block *anthropic.BetaContentBlockParamUnion, ttl string) {
	cc := anthropic.BetaCacheControlEphemeralParam{
		TTL: anthropic.BetaCacheControlEphemeralTTL(ttl),
	}
	switch {
	case block.OfText != nil:
		block.OfText.CacheControl = cc
	case block.OfDocument != nil:
		block.OfDocument.CacheControl = cc
	}
}
