package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestToChatCompletions_PlainUserText(t *testing.T) {
	req := &Request{
		Model:     "gpt-4o-mini",
		MaxTokens: 16,
		Messages: []Message{
			{Role: "user", Content: mustRaw(t, "hi")},
		},
	}
	out, err := ToChatCompletions(req)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "user", out.Messages[0].Role)
	var content string
	require.NoError(t, json.Unmarshal(out.Messages[0].Content, &content))
	assert.Equal(t, "hi", content)
	require.NotNil(t, out.MaxTokens)
	assert.Equal(t, 16, *out.MaxTokens)
}

func TestToChatCompletions_ToolResultInUserTurn(t *testing.T) {
	req := &Request{
		Model: "gpt-4o-mini",
		Messages: []Message{
			{
				Role: "assistant",
				Content: mustRaw(t, []ContentBlock{
					{Type: "tool_use", ID: "t1", Name: "f", Input: json.RawMessage(`{"x":1}`)},
				}),
			},
			{
				Role: "user",
				Content: mustRaw(t, []ContentBlock{
					{Type: "tool_result", ToolUseID: "t1", Content: mustRaw(t, "42")},
				}),
			},
		},
	}
	out, err := ToChatCompletions(req)
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)

	assert.Equal(t, "assistant", out.Messages[0].Role)
	require.Len(t, out.Messages[0].ToolCalls, 1)
	assert.Equal(t, "t1", out.Messages[0].ToolCalls[0].ID)
	assert.JSONEq(t, `{"x":1}`, out.Messages[0].ToolCalls[0].Function.Arguments)

	assert.Equal(t, "tool", out.Messages[1].Role)
	assert.Equal(t, "t1", out.Messages[1].ToolCallID)
	var content string
	require.NoError(t, json.Unmarshal(out.Messages[1].Content, &content))
	assert.Equal(t, "42", content)
}

func TestToChatCompletions_ToolResultWithFollowUpTextOrdersToolFirst(t *testing.T) {
	req := &Request{
		Model: "gpt-4o-mini",
		Messages: []Message{
			{
				Role: "assistant",
				Content: mustRaw(t, []ContentBlock{
					{Type: "tool_use", ID: "t1", Name: "f", Input: json.RawMessage(`{"x":1}`)},
				}),
			},
			{
				Role: "user",
				Content: mustRaw(t, []ContentBlock{
					{Type: "tool_result", ToolUseID: "t1", Content: mustRaw(t, "42")},
					{Type: "text", Text: "thanks, now do the next step"},
				}),
			},
		},
	}
	out, err := ToChatCompletions(req)
	require.NoError(t, err)
	require.Len(t, out.Messages, 3)

	assert.Equal(t, "assistant", out.Messages[0].Role)

	assert.Equal(t, "tool", out.Messages[1].Role)
	assert.Equal(t, "t1", out.Messages[1].ToolCallID)

	assert.Equal(t, "user", out.Messages[2].Role)
	var content string
	require.NoError(t, json.Unmarshal(out.Messages[2].Content, &content))
	assert.Equal(t, "thanks, now do the next step", content)
}

func TestToChatCompletions_UnknownBlockPreserved(t *testing.T) {
	req := &Request{
		Model: "gpt-4o-mini",
		Messages: []Message{
			{Role: "user", Content: json.RawMessage(`[{"type":"mystery","foo":"bar"}]`)},
		},
	}
	out, err := ToChatCompletions(req)
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	var content string
	require.NoError(t, json.Unmarshal(out.Messages[0].Content, &content))
	assert.Contains(t, content, "mystery")
}

func TestToChatCompletions_SystemJoined(t *testing.T) {
	req := &Request{
		Model:  "gpt-4o-mini",
		System: mustRaw(t, []ContentBlock{{Type: "text", Text: "a"}, {Type: "text", Text: "b"}}),
		Messages: []Message{
			{Role: "user", Content: mustRaw(t, "hi")},
		},
	}
	out, err := ToChatCompletions(req)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out.Messages), 2)
	assert.Equal(t, "system", out.Messages[0].Role)
	var content string
	require.NoError(t, json.Unmarshal(out.Messages[0].Content, &content))
	assert.Equal(t, "a\n\nb", content)
}

func TestToChatCompletions_ToolChoiceMapping(t *testing.T) {
	req := &Request{
		Model:      "gpt-4o-mini",
		ToolChoice: mustRaw(t, "any"),
		Messages:   []Message{{Role: "user", Content: mustRaw(t, "hi")}},
	}
	out, err := ToChatCompletions(req)
	require.NoError(t, err)
	var choice string
	require.NoError(t, json.Unmarshal(out.ToolChoice, &choice))
	assert.Equal(t, "required", choice)
}

func TestToResponses_Basic(t *testing.T) {
	req := &Request{
		Model:     "gpt-5-mini",
		System:    mustRaw(t, "be terse"),
		MaxTokens: 32,
		Messages: []Message{
			{Role: "user", Content: mustRaw(t, "hi")},
		},
	}
	out, err := ToResponses(req)
	require.NoError(t, err)
	assert.Equal(t, "be terse", out.Instructions)
	require.NotNil(t, out.MaxOutputTokens)
	assert.Equal(t, 32, *out.MaxOutputTokens)
	assert.False(t, out.Store)
	require.Len(t, out.Input, 1)
	assert.Equal(t, "message", out.Input[0].Type)
	assert.Equal(t, "input_text", out.Input[0].Content[0].Type)
}

func TestToResponses_ToolResultBecomesFunctionCallOutput(t *testing.T) {
	req := &Request{
		Model: "gpt-5-mini",
		Messages: []Message{
			{
				Role: "user",
				Content: mustRaw(t, []ContentBlock{
					{Type: "tool_result", ToolUseID: "t1", Content: mustRaw(t, "42")},
				}),
			},
		},
	}
	out, err := ToResponses(req)
	require.NoError(t, err)
	require.Len(t, out.Input, 1)
	assert.Equal(t, "function_call_output", out.Input[0].Type)
	assert.Equal(t, "t1", out.Input[0].CallID)
	assert.Equal(t, "42", out.Input[0].Output)
}
