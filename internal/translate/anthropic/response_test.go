package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelproxy/messages-bridge/internal/translate/openai"
)

func TestFromChatCompletions_PlainText(t *testing.T) {
	resp := &openai.ChatResponse{
		Choices: []openai.ChatChoice{
			{
				Message:      openai.ChatRespMessage{Role: "assistant", Content: json.RawMessage(`"hello"`)},
				FinishReason: "stop",
			},
		},
		Usage: &openai.ChatUsage{PromptTokens: 1, CompletionTokens: 1},
	}

	out, err := FromChatCompletions("gpt-4o-mini", resp)
	require.NoError(t, err)

	require.Len(t, out.Content, 1)
	assert.Equal(t, "text", out.Content[0].Type)
	assert.Equal(t, "hello", out.Content[0].Text)
	assert.Equal(t, "end_turn", out.StopReason)
	assert.Equal(t, 1, out.Usage.InputTokens)
	assert.Equal(t, 1, out.Usage.OutputTokens)
}

func TestFromChatCompletions_ToolCall(t *testing.T) {
	resp := &openai.ChatResponse{
		Choices: []openai.ChatChoice{
			{
				Message: openai.ChatRespMessage{
					Role: "assistant",
					ToolCalls: []openai.ChatToolCall{
						{ID: "call_1", Type: "function", Function: openai.ChatToolCallFunc{Name: "search", Arguments: `{"q":"x"}`}},
					},
				},
				FinishReason: "tool_calls",
			},
		},
	}

	out, err := FromChatCompletions("gpt-4o-mini", resp)
	require.NoError(t, err)
	require.Len(t, out.Content, 1)
	assert.Equal(t, "tool_use", out.Content[0].Type)
	assert.Equal(t, "call_1", out.Content[0].ID)
	assert.Equal(t, "search", out.Content[0].Name)
	assert.JSONEq(t, `{"q":"x"}`, string(out.Content[0].Input))
	assert.Equal(t, "tool_use", out.StopReason)
}

func TestFromChatCompletions_MalformedArguments(t *testing.T) {
	resp := &openai.ChatResponse{
		Choices: []openai.ChatChoice{
			{
				Message: openai.ChatRespMessage{
					ToolCalls: []openai.ChatToolCall{
						{ID: "call_1", Function: openai.ChatToolCallFunc{Name: "f", Arguments: "not json"}},
					},
				},
				FinishReason: "tool_calls",
			},
		},
	}
	out, err := FromChatCompletions("m", resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_raw":"not json"}`, string(out.Content[0].Input))
}

func TestMapFinishReason(t *testing.T) {
	cases := map[string]string{
		"stop":              "end_turn",
		"completed":         "end_turn",
		"content_filter":    "end_turn",
		"tool_calls":        "tool_use",
		"function_call":     "tool_use",
		"requires_action":   "tool_use",
		"length":            "max_tokens",
		"max_output_tokens": "max_tokens",
		"stop_sequence":     "stop_sequence",
	}
	for in, want := range cases {
		assert.Equal(t, want, mapFinishReason(in), in)
	}
}

func TestFromResponses_Basic(t *testing.T) {
	resp := &openai.Response{
		ID:     "resp_1",
		Status: "completed",
		Output: []openai.ResponseItem{
			{Type: "message", Role: "assistant", Content: []openai.ResponseContentPart{{Type: "output_text", Text: "hi"}}},
			{Type: "function_call", CallID: "call_2", Name: "f", Arguments: `{"a":1}`},
		},
		Usage: &openai.ResponsesUsage{InputTokens: 3, OutputTokens: 4},
	}
	out, err := FromResponses("gpt-5-mini", resp)
	require.NoError(t, err)
	require.Len(t, out.Content, 2)
	assert.Equal(t, "text", out.Content[0].Type)
	assert.Equal(t, "hi", out.Content[0].Text)
	assert.Equal(t, "tool_use", out.Content[1].Type)
	assert.Equal(t, "call_2", out.Content[1].ID)
	assert.Equal(t, "end_turn", out.StopReason)
	assert.Equal(t, 3, out.Usage.InputTokens)
}
