package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/kestrelproxy/messages-bridge/internal/translate/openai"
)

// mapFinishReason unifies the finish/stop tokens both upstream flavors use
// into the Anthropic stop_reason vocabulary.
func mapFinishReason(reason string) string {
	switch reason {
	case "stop", "completed", "content_filter":
		return "end_turn"
	case "tool_calls", "function_call", "requires_action":
		return "tool_use"
	case "length", "max_output_tokens":
		return "max_tokens"
	case "stop_sequence":
		return "stop_sequence"
	default:
		return "end_turn"
	}
}

func newMessageID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newToolUseID() string {
	return "toolu_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// FromChatCompletions rewrites a single non-streaming Chat Completions JSON
// response into an Anthropic Response.
func FromChatCompletions(model string, resp *openai.ChatResponse) (*Response, error) {
	out := &Response{
		Type:  "message",
		Role:  "assistant",
		Model: model,
	}

	id := resp.ID
	if id == "" {
		id = newMessageID()
	} else if !strings.HasPrefix(id, "msg_") {
		id = "msg_" + id
	}
	out.ID = id

	if len(resp.Choices) == 0 {
		out.StopReason = "end_turn"
		return out, nil
	}
	choice := resp.Choices[0]

	if len(choice.Message.Content) > 0 {
		var text string
		if err := json.Unmarshal(choice.Message.Content, &text); err == nil && text != "" {
			out.Content = append(out.Content, ContentBlock{Type: "text", Text: text})
		}
	}

	for _, call := range choice.Message.ToolCalls {
		input := parseToolArguments(call.Function.Arguments)
		toolID := call.ID
		if toolID == "" {
			toolID = newToolUseID()
		}
		out.Content = append(out.Content, ContentBlock{
			Type:  "tool_use",
			ID:    toolID,
			Name:  call.Function.Name,
			Input: input,
		})
	}

	out.StopReason = mapFinishReason(choice.FinishReason)

	if resp.Usage != nil {
		out.Usage = Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}

	return out, nil
}

// parseToolArguments parses a tool call's raw arguments string as JSON,
// falling back to a {"_raw": <string>} wrapper on parse failure rather
// than failing translation.
func parseToolArguments(raw string) json.RawMessage {
	if raw == "" {
		return []byte(`{}`)
	}
	var probe json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err == nil {
		return probe
	}
	wrapped, err := json.Marshal(map[string]string{"_raw": raw})
	if err != nil {
		return []byte(`{}`)
	}
	return wrapped
}

// FromResponses rewrites a single non-streaming Responses API JSON
// response into an Anthropic Response.
func FromResponses(model string, resp *openai.Response) (*Response, error) {
	out := &Response{
		Type:  "message",
		Role:  "assistant",
		Model: model,
	}

	id := resp.ID
	if id == "" {
		id = newMessageID()
	} else if !strings.HasPrefix(id, "msg_") {
		id = "msg_" + id
	}
	out.ID = id

	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			for _, part := range item.Content {
				if part.Type == "output_text" {
					out.Content = append(out.Content, ContentBlock{Type: "text", Text: part.Text})
				}
				// reasoning-equivalent parts are dropped.
			}
		case "function_call":
			out.Content = append(out.Content, ContentBlock{
				Type:  "tool_use",
				ID:    item.CallID,
				Name:  item.Name,
				Input: parseToolArguments(item.Arguments),
			})
		}
	}

	stopToken := resp.Status
	if resp.IncompleteDetails != nil && resp.IncompleteDetails.Reason != "" {
		stopToken = resp.IncompleteDetails.Reason
	}
	out.StopReason = mapFinishReason(stopToken)

	if resp.Usage != nil {
		out.Usage = Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
	}

	return out, nil
}
