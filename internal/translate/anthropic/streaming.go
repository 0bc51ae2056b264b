package anthropic

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/kestrelproxy/messages-bridge/internal/translate/openai"
)

// EventSink receives the Anthropic SSE event sequence produced by the
// stream translator. Implementations are responsible for framing and
// flushing; the translator only decides content and order.
type EventSink interface {
	Send(event StreamEvent) error
}

// assembly is the StreamAssemblyState described in spec.md §3: per-stream
// block bookkeeping that makes the balance/density invariants a property
// of the state machine rather than an ad-hoc check.
type assembly struct {
	model             string
	started           bool
	openType          string // "", "text", "tool"
	openIndex         int
	nextIndex         int
	toolByUpstreamIdx map[int]*toolBlock
	toolByItemID      map[string]*toolBlock
	inputTokens       int
	outputTokens      int
	stopReason        string
}

type toolBlock struct {
	anthropicIndex int
}

func newAssembly(model string) *assembly {
	return &assembly{
		model:             model,
		toolByUpstreamIdx: make(map[int]*toolBlock),
		toolByItemID:      make(map[string]*toolBlock),
	}
}

func (a *assembly) ensureStarted(sink EventSink) error {
	if a.started {
		return nil
	}
	a.started = true
	return sink.Send(StreamEvent{
		Type: "message_start",
		Message: &StreamMessage{
			ID:      newMessageID(),
			Type:    "message",
			Role:    "assistant",
			Model:   a.model,
			Content: []ContentBlock{},
			Usage:   Usage{InputTokens: a.inputTokens},
		},
	})
}

func (a *assembly) closeOpen(sink EventSink) error {
	if a.openType == "" {
		return nil
	}
	idx := a.openIndex
	a.openType = ""
	return sink.Send(StreamEvent{Type: "content_block_stop", Index: &idx})
}

func (a *assembly) openText(sink EventSink) (int, error) {
	if a.openType == "text" {
		return a.openIndex, nil
	}
	if err := a.closeOpen(sink); err != nil {
		return 0, err
	}
	idx := a.nextIndex
	a.nextIndex++
	a.openType = "text"
	a.openIndex = idx
	return idx, sink.Send(StreamEvent{
		Type:         "content_block_start",
		Index:        &idx,
		ContentBlock: &ContentBlock{Type: "text", Text: ""},
	})
}

func (a *assembly) openTool(sink EventSink, id, name string) (int, error) {
	if err := a.closeOpen(sink); err != nil {
		return 0, err
	}
	idx := a.nextIndex
	a.nextIndex++
	a.openType = "tool"
	a.openIndex = idx
	return idx, sink.Send(StreamEvent{
		Type:  "content_block_start",
		Index: &idx,
		ContentBlock: &ContentBlock{
			Type:  "tool_use",
			ID:    id,
			Name:  name,
			Input: json.RawMessage(`{}`),
		},
	})
}

func (a *assembly) finishOK(sink EventSink) error {
	if err := a.closeOpen(sink); err != nil {
		return err
	}
	if err := a.ensureStarted(sink); err != nil {
		return err
	}
	reason := a.stopReason
	if reason == "" {
		reason = "end_turn"
	}
	if err := sink.Send(StreamEvent{
		Type: "message_delta",
		Delta: &StreamDelta{
			StopReason: reason,
		},
		Usage: &StreamUsage{OutputTokens: a.outputTokens},
	}); err != nil {
		return err
	}
	return sink.Send(StreamEvent{Type: "message_stop"})
}

// finishErr emits a best-effort error event followed by message_stop, per
// the rule that bytes already committed to the client are never retried —
// only a graceful close is attempted. message_start is emitted first if it
// hasn't been already, since message_stop must always be the last event
// once the SSE headers are written, even when nothing ever opened.
func (a *assembly) finishErr(sink EventSink, streamErr error) error {
	_ = a.closeOpen(sink)
	_ = a.ensureStarted(sink)
	_ = sink.Send(StreamEvent{
		Type:  "error",
		Error: &ErrorBody{Type: "api_error", Message: "stream interrupted"},
	})
	_ = sink.Send(StreamEvent{Type: "message_stop"})
	return streamErr
}

// TranslateChatStream consumes a Chat Completions SSE line iterator and
// emits the Anthropic event sequence to sink.
func TranslateChatStream(sink EventSink, model string, lines iter.Seq2[string, error]) error {
	a := newAssembly(model)

	var loopErr error
	for payload, err := range lines {
		if err != nil {
			loopErr = err
			break
		}
		if payload == "[DONE]" {
			break
		}

		var chunk openai.ChatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue // malformed chunk, skip with no event
		}

		if err := a.ensureStarted(sink); err != nil {
			return a.finishErr(sink, err)
		}
		if chunk.Usage != nil {
			a.inputTokens = chunk.Usage.PromptTokens
			a.outputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			idx, err := a.openText(sink)
			if err != nil {
				return a.finishErr(sink, err)
			}
			if err := sink.Send(StreamEvent{
				Type:  "content_block_delta",
				Index: &idx,
				Delta: &StreamDelta{Type: "text_delta", Text: choice.Delta.Content},
			}); err != nil {
				return a.finishErr(sink, err)
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			tb, seen := a.toolByUpstreamIdx[tc.Index]
			if !seen {
				id := tc.ID
				if id == "" {
					id = fmt.Sprintf("toolu_%d", tc.Index)
				}
				name := ""
				if tc.Function != nil {
					name = tc.Function.Name
				}
				idx, err := a.openTool(sink, id, name)
				if err != nil {
					return a.finishErr(sink, err)
				}
				tb = &toolBlock{anthropicIndex: idx}
				a.toolByUpstreamIdx[tc.Index] = tb
			}
			if tc.Function != nil && tc.Function.Arguments != "" {
				idx := tb.anthropicIndex
				if err := sink.Send(StreamEvent{
					Type:  "content_block_delta",
					Index: &idx,
					Delta: &StreamDelta{Type: "input_json_delta", PartialJSON: tc.Function.Arguments},
				}); err != nil {
					return a.finishErr(sink, err)
				}
			}
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			a.stopReason = mapFinishReason(*choice.FinishReason)
		}
	}

	if loopErr != nil {
		return a.finishErr(sink, loopErr)
	}
	return a.finishOK(sink)
}

// itemEventID extracts the output-item id a Responses stream event refers
// to, whether it's carried on the embedded item or on the event directly.
func itemEventID(e *openai.ResponseStreamEvent) string {
	if e.Item != nil && e.Item.ID != "" {
		return e.Item.ID
	}
	return e.ItemID
}

// TranslateResponsesStream consumes a Responses API SSE line iterator and
// emits the Anthropic event sequence to sink.
func TranslateResponsesStream(sink EventSink, model string, lines iter.Seq2[string, error]) error {
	a := newAssembly(model)
	textItems := make(map[string]bool) // item id -> has a currently-open text block

	var loopErr error
	for payload, err := range lines {
		if err != nil {
			loopErr = err
			break
		}
		if payload == "[DONE]" {
			break
		}

		var event openai.ResponseStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}

		switch event.Type {
		case "response.created":
			if err := a.ensureStarted(sink); err != nil {
				return a.finishErr(sink, err)
			}

		case "response.output_item.added":
			if event.Item == nil {
				continue
			}
			if err := a.ensureStarted(sink); err != nil {
				return a.finishErr(sink, err)
			}
			if event.Item.Type == "function_call" {
				idx, err := a.openTool(sink, event.Item.CallID, event.Item.Name)
				if err != nil {
					return a.finishErr(sink, err)
				}
				a.toolByItemID[itemEventID(&event)] = &toolBlock{anthropicIndex: idx}
			}
			// message items: defer opening until the first text delta.

		case "response.output_text.delta":
			if err := a.ensureStarted(sink); err != nil {
				return a.finishErr(sink, err)
			}
			id := itemEventID(&event)
			if !textItems[id] {
				if _, err := a.openText(sink); err != nil {
					return a.finishErr(sink, err)
				}
				textItems[id] = true
			}
			idx := a.openIndex
			if err := sink.Send(StreamEvent{
				Type:  "content_block_delta",
				Index: &idx,
				Delta: &StreamDelta{Type: "text_delta", Text: event.Delta},
			}); err != nil {
				return a.finishErr(sink, err)
			}

		case "response.function_call_arguments.delta":
			tb, ok := a.toolByItemID[itemEventID(&event)]
			if !ok {
				continue
			}
			idx := tb.anthropicIndex
			if err := sink.Send(StreamEvent{
				Type:  "content_block_delta",
				Index: &idx,
				Delta: &StreamDelta{Type: "input_json_delta", PartialJSON: event.Delta},
			}); err != nil {
				return a.finishErr(sink, err)
			}

		case "response.output_item.done":
			id := itemEventID(&event)
			delete(textItems, id)
			delete(a.toolByItemID, id)
			if err := a.closeOpen(sink); err != nil {
				return a.finishErr(sink, err)
			}

		case "response.completed":
			if event.Response != nil {
				if event.Response.Usage != nil {
					a.inputTokens = event.Response.Usage.InputTokens
					a.outputTokens = event.Response.Usage.OutputTokens
				}
				stopToken := event.Response.Status
				if event.Response.IncompleteDetails != nil && event.Response.IncompleteDetails.Reason != "" {
					stopToken = event.Response.IncompleteDetails.Reason
				}
				a.stopReason = mapFinishReason(stopToken)
			}

		case "response.error":
			msg := "upstream error"
			if event.Error != nil && event.Error.Message != "" {
				msg = event.Error.Message
			}
			if err := a.ensureStarted(sink); err != nil {
				return a.finishErr(sink, err)
			}
			_ = a.closeOpen(sink)
			kind := "api_error"
			if strings.Contains(strings.ToLower(msg), "overloaded") {
				kind = "overloaded_error"
			}
			_ = sink.Send(StreamEvent{Type: "error", Error: &ErrorBody{Type: kind, Message: msg}})
			return sink.Send(StreamEvent{Type: "message_stop"})
		}
	}

	if loopErr != nil {
		return a.finishErr(sink, loopErr)
	}
	return a.finishOK(sink)
}
