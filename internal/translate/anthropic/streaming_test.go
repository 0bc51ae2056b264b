package anthropic

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink collects every event sent to it, in order, for assertions.
type recordingSink struct {
	events []StreamEvent
}

func (s *recordingSink) Send(e StreamEvent) error {
	s.events = append(s.events, e)
	return nil
}

func linesOf(payloads ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range payloads {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func TestTranslateChatStream_PlainText(t *testing.T) {
	sink := &recordingSink{}
	err := TranslateChatStream(sink, "gpt-4o-mini", linesOf(
		`{"id":"1","choices":[{"index":0,"delta":{"content":"he"},"finish_reason":null}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{"content":"llo"},"finish_reason":null}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		"[DONE]",
	))
	require.NoError(t, err)

	types := eventTypes(sink.events)
	assert.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, types)

	assertBalanced(t, sink.events)
	assertDenseIndices(t, sink.events)

	md := findLast(sink.events, "message_delta")
	require.NotNil(t, md)
	assert.Equal(t, "end_turn", md.Delta.StopReason)
}

func TestTranslateChatStream_ToolCall(t *testing.T) {
	sink := &recordingSink{}
	err := TranslateChatStream(sink, "gpt-4o-mini", linesOf(
		`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"search","arguments":"{\"q\":\""}}]}}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"hi\"}"}}]}}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		"[DONE]",
	))
	require.NoError(t, err)

	types := eventTypes(sink.events)
	assert.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, types)

	start := findFirst(sink.events, "content_block_start")
	require.NotNil(t, start)
	assert.Equal(t, "tool_use", start.ContentBlock.Type)
	assert.Equal(t, "call_1", start.ContentBlock.ID)
	assert.Equal(t, "search", start.ContentBlock.Name)

	var args string
	for _, e := range sink.events {
		if e.Type == "content_block_delta" {
			args += e.Delta.PartialJSON
		}
	}
	assert.JSONEq(t, `{"q":"hi"}`, args)

	md := findLast(sink.events, "message_delta")
	require.NotNil(t, md)
	assert.Equal(t, "tool_use", md.Delta.StopReason)
}

func TestTranslateChatStream_TextThenToolClosesText(t *testing.T) {
	sink := &recordingSink{}
	err := TranslateChatStream(sink, "m", linesOf(
		`{"choices":[{"index":0,"delta":{"content":"pre"}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"t1","function":{"name":"f","arguments":"{}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		"[DONE]",
	))
	require.NoError(t, err)
	assertBalanced(t, sink.events)
	assertDenseIndices(t, sink.events)
}

func TestTranslateChatStream_MalformedChunkSkipped(t *testing.T) {
	sink := &recordingSink{}
	err := TranslateChatStream(sink, "m", linesOf(
		`not json`,
		`{"choices":[{"index":0,"delta":{"content":"ok"},"finish_reason":"stop"}]}`,
		"[DONE]",
	))
	require.NoError(t, err)
	assertBalanced(t, sink.events)
}

func TestTranslateResponsesStream_TextAndTool(t *testing.T) {
	sink := &recordingSink{}
	err := TranslateResponsesStream(sink, "gpt-5-mini", linesOf(
		`{"type":"response.created","response":{"id":"resp_1"}}`,
		`{"type":"response.output_item.added","item":{"type":"message","id":"item_1"}}`,
		`{"type":"response.output_text.delta","item_id":"item_1","delta":"he"}`,
		`{"type":"response.output_text.delta","item_id":"item_1","delta":"llo"}`,
		`{"type":"response.output_item.done","item":{"id":"item_1"}}`,
		`{"type":"response.output_item.added","item":{"type":"function_call","id":"item_2","call_id":"call_1","name":"search"}}`,
		`{"type":"response.function_call_arguments.delta","item_id":"item_2","delta":"{\"q\":1}"}`,
		`{"type":"response.output_item.done","item":{"id":"item_2"}}`,
		`{"type":"response.completed","response":{"id":"resp_1","status":"completed","usage":{"input_tokens":2,"output_tokens":3}}}`,
	))
	require.NoError(t, err)

	assertBalanced(t, sink.events)
	assertDenseIndices(t, sink.events)

	md := findLast(sink.events, "message_delta")
	require.NotNil(t, md)
	assert.Equal(t, "end_turn", md.Delta.StopReason)
	assert.Equal(t, 3, md.Usage.OutputTokens)
}

func TestTranslateResponsesStream_Error(t *testing.T) {
	sink := &recordingSink{}
	err := TranslateResponsesStream(sink, "gpt-5-mini", linesOf(
		`{"type":"response.created","response":{"id":"resp_1"}}`,
		`{"type":"response.error","error":{"message":"the model is overloaded"}}`,
	))
	require.NoError(t, err)
	types := eventTypes(sink.events)
	assert.Equal(t, []string{"message_start", "error", "message_stop"}, types)
	errEvt := findFirst(sink.events, "error")
	require.NotNil(t, errEvt)
	assert.Equal(t, "overloaded_error", errEvt.Error.Type)
}

// --- helpers & shared invariant assertions (spec.md §8) ---

func eventTypes(events []StreamEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func findFirst(events []StreamEvent, t string) *StreamEvent {
	for i := range events {
		if events[i].Type == t {
			return &events[i]
		}
	}
	return nil
}

func findLast(events []StreamEvent, t string) *StreamEvent {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == t {
			return &events[i]
		}
	}
	return nil
}

// assertBalanced verifies the event-balance invariant: every
// content_block_start is matched by a content_block_stop at the same
// index, and exactly one message_start/message_stop/message_delta.
func assertBalanced(t *testing.T, events []StreamEvent) {
	t.Helper()
	starts, stops := 0, 0
	messageStarts, messageStops, messageDeltas := 0, 0, 0
	var open map[int]bool = map[int]bool{}
	for _, e := range events {
		switch e.Type {
		case "message_start":
			messageStarts++
		case "message_stop":
			messageStops++
		case "message_delta":
			messageDeltas++
		case "content_block_start":
			starts++
			open[*e.Index] = true
		case "content_block_stop":
			stops++
			assert.True(t, open[*e.Index], "stop for unopened index %d", *e.Index)
			delete(open, *e.Index)
		}
	}
	assert.Equal(t, starts, stops, "unbalanced content blocks")
	assert.Empty(t, open, "blocks left open at stream end")
	assert.Equal(t, 1, messageStarts)
	assert.Equal(t, 1, messageStops)
	assert.Equal(t, 1, messageDeltas)
	if len(events) > 0 {
		assert.Equal(t, "message_stop", events[len(events)-1].Type)
	}
}

// assertDenseIndices verifies block indices form {0,...,N-1}.
func assertDenseIndices(t *testing.T, events []StreamEvent) {
	t.Helper()
	seen := map[int]bool{}
	for _, e := range events {
		if e.Type == "content_block_start" {
			seen[*e.Index] = true
		}
	}
	for i := 0; i < len(seen); i++ {
		assert.True(t, seen[i], "index %d missing from dense set", i)
	}
}
