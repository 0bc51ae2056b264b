package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/kestrelproxy/messages-bridge/internal/translate/openai"
)

// systemText joins the Anthropic system field (string or list of text
// blocks) into a single string, per the joining rule used by both
// ToChatCompletions and ToResponses.
func systemText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n"), nil
}

// textFromContent renders a tool_result/content payload (string or list of
// text blocks) as a single string, JSON-serializing non-text payloads.
func textFromContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		allText := true
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if b.Type != "text" {
				allText = false
				break
			}
			parts = append(parts, b.Text)
		}
		if allText {
			return strings.Join(parts, "\n\n")
		}
	}
	return string(raw)
}

// decodeBlocksPreserveUnknown decodes a content payload into blocks; any
// block whose Type is not one this translator recognizes is turned into a
// text block carrying its original JSON, so the translator never fails on
// an unrecognized tag.
func decodeBlocksPreserveUnknown(raw json.RawMessage) ([]ContentBlock, error) {
	blocks, err := decodeContent(raw)
	if err != nil {
		return nil, err
	}
	// The element bytes as received, so an unrecognized block keeps every
	// field it had rather than only those ContentBlock models.
	var rawBlocks []json.RawMessage
	_ = json.Unmarshal(raw, &rawBlocks)
	known := map[string]bool{"text": true, "image": true, "tool_use": true, "tool_result": true, "thinking": true}
	out := make([]ContentBlock, 0, len(blocks))
	for i, b := range blocks {
		if known[b.Type] {
			out = append(out, b)
			continue
		}
		if i < len(rawBlocks) {
			out = append(out, ContentBlock{Type: "text", Text: string(rawBlocks[i])})
			continue
		}
		raw, marshalErr := json.Marshal(b)
		if marshalErr != nil {
			raw = []byte(`{}`)
		}
		out = append(out, ContentBlock{Type: "text", Text: string(raw)})
	}
	return out, nil
}

// ToChatCompletions rewrites an Anthropic request into a Chat Completions
// upstream body.
func ToChatCompletions(req *Request) (*openai.ChatRequest, error) {
	out := &openai.ChatRequest{
		Model:  req.Model,
		Stream: req.Stream,
	}

	sys, err := systemText(req.System)
	if err != nil {
		return nil, err
	}
	if sys != "" {
		out.Messages = append(out.Messages, openai.ChatMessage{
			Role:    "system",
			Content: mustJSON(sys),
		})
	}

	for _, msg := range req.Messages {
		blocks, err := decodeBlocksPreserveUnknown(msg.Content)
		if err != nil {
			return nil, err
		}
		chatMsgs, err := chatMessagesForTurn(msg.Role, blocks)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, chatMsgs...)
	}

	if req.MaxTokens > 0 {
		out.MaxTokens = &req.MaxTokens
	}
	out.Temperature = req.Temperature
	out.TopP = req.TopP
	if len(req.StopSequences) > 0 {
		out.Stop = req.StopSequences
	}
	// top_k has no Chat Completions equivalent and is dropped.

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.ChatTool{
			Type: "function",
			Function: openai.ChatFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	out.ToolChoice = mapToolChoiceToChat(req.ToolChoice)

	return out, nil
}

// chatMessagesForTurn converts one Anthropic message into zero or more
// Chat Completions messages. A user turn with a tool_result block produces
// a separate {role:"tool"} message per result, per spec.
func chatMessagesForTurn(role string, blocks []ContentBlock) ([]openai.ChatMessage, error) {
	if role == "assistant" {
		return assistantChatMessages(blocks)
	}

	var out []openai.ChatMessage
	var textParts []string
	var contentParts []openai.ChatContentPart
	sawImage := false

	for _, b := range blocks {
		switch b.Type {
		case "text":
			textParts = append(textParts, b.Text)
			contentParts = append(contentParts, openai.ChatContentPart{Type: "text", Text: b.Text})
		case "image":
			sawImage = true
			var url string
			if b.Source != nil {
				url = "data:" + b.Source.MediaType + ";base64," + b.Source.Data
			}
			contentParts = append(contentParts, openai.ChatContentPart{
				Type:     "image_url",
				ImageURL: &openai.ImageURL{URL: url},
			})
		case "tool_result":
			out = append(out, openai.ChatMessage{
				Role:       "tool",
				ToolCallID: b.ToolUseID,
				Content:    mustJSON(textFromContent(b.Content)),
			})
		}
	}

	if len(contentParts) > 0 {
		var content json.RawMessage
		var err error
		if !sawImage && len(contentParts) == len(textParts) {
			content = mustJSON(strings.Join(textParts, ""))
		} else {
			content, err = json.Marshal(contentParts)
			if err != nil {
				return nil, err
			}
		}
		// The tool messages must come first: a role:"tool" message has to
		// immediately follow the assistant message carrying the matching
		// tool_calls, so the user-content message is appended after them
		// rather than prepended.
		out = append(out, openai.ChatMessage{Role: "user", Content: content})
	}

	return out, nil
}

// assistantChatMessages merges consecutive text blocks into one content
// string and every tool_use block into one tool_calls array on a single
// assistant message, dropping thinking blocks.
func assistantChatMessages(blocks []ContentBlock) ([]openai.ChatMessage, error) {
	var textParts []string
	var toolCalls []openai.ChatToolCall

	for _, b := range blocks {
		switch b.Type {
		case "text":
			textParts = append(textParts, b.Text)
		case "tool_use":
			input := b.Input
			if len(input) == 0 {
				input = []byte(`{}`)
			}
			toolCalls = append(toolCalls, openai.ChatToolCall{
				ID:   b.ID,
				Type: "function",
				Function: openai.ChatToolCallFunc{
					Name:      b.Name,
					Arguments: string(input),
				},
			})
		case "thinking":
			// dropped, not forwarded.
		}
	}

	if len(textParts) == 0 && len(toolCalls) == 0 {
		return nil, nil
	}

	msg := openai.ChatMessage{Role: "assistant"}
	if len(textParts) > 0 {
		msg.Content = mustJSON(strings.Join(textParts, ""))
	}
	msg.ToolCalls = toolCalls
	return []openai.ChatMessage{msg}, nil
}

// mapToolChoiceToChat rewrites an Anthropic tool_choice value to its Chat
// Completions counterpart.
func mapToolChoiceToChat(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "auto":
			return mustJSON("auto")
		case "any":
			return mustJSON("required")
		case "none":
			return mustJSON("none")
		}
	}
	var tagged struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &tagged); err == nil && tagged.Type == "tool" {
		out := struct {
			Type     string `json:"type"`
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		}{Type: "function"}
		out.Function.Name = tagged.Name
		return mustJSON(out)
	}
	return raw
}

// ToResponses rewrites an Anthropic request into a Responses API upstream
// body.
func ToResponses(req *Request) (*openai.ResponsesRequest, error) {
	out := &openai.ResponsesRequest{
		Model:  req.Model,
		Stream: req.Stream,
		Store:  false,
	}

	instructions, err := systemText(req.System)
	if err != nil {
		return nil, err
	}
	out.Instructions = instructions

	for _, msg := range req.Messages {
		blocks, err := decodeBlocksPreserveUnknown(msg.Content)
		if err != nil {
			return nil, err
		}
		items, err := responseItemsForTurn(msg.Role, blocks)
		if err != nil {
			return nil, err
		}
		out.Input = append(out.Input, items...)
	}

	if req.MaxTokens > 0 {
		out.MaxOutputTokens = &req.MaxTokens
	}
	out.Temperature = req.Temperature
	out.TopP = req.TopP

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.ResponseTool{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
			Strict:      false,
		})
	}

	return out, nil
}

// responseItemsForTurn converts one Anthropic message into zero or more
// Responses API input items.
func responseItemsForTurn(role string, blocks []ContentBlock) ([]openai.ResponseItem, error) {
	var out []openai.ResponseItem
	var parts []openai.ResponseContentPart

	textType := "input_text"
	if role == "assistant" {
		textType = "output_text"
	}

	for _, b := range blocks {
		switch b.Type {
		case "text":
			parts = append(parts, openai.ResponseContentPart{Type: textType, Text: b.Text})
		case "image":
			var url string
			if b.Source != nil {
				url = "data:" + b.Source.MediaType + ";base64," + b.Source.Data
			}
			parts = append(parts, openai.ResponseContentPart{Type: "input_image", ImageURL: url})
		case "tool_use":
			input := b.Input
			if len(input) == 0 {
				input = []byte(`{}`)
			}
			out = append(out, openai.ResponseItem{
				Type:      "function_call",
				CallID:    b.ID,
				Name:      b.Name,
				Arguments: string(input),
			})
		case "tool_result":
			out = append(out, openai.ResponseItem{
				Type:   "function_call_output",
				CallID: b.ToolUseID,
				Output: textFromContent(b.Content),
			})
		}
	}

	if len(parts) > 0 {
		out = append([]openai.ResponseItem{{Type: "message", Role: role, Content: parts}}, out...)
	}

	return out, nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`null`)
	}
	return b
}
