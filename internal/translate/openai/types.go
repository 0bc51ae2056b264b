// Package openai models the two OpenAI-compatible upstream wire formats
// this proxy can speak: Chat Completions and the newer Responses API.
package openai

import "encoding/json"

// ChatRequest is the upstream body for POST /v1/chat/completions.
type ChatRequest struct {
	Model       string          `json:"model"`
	Messages    []ChatMessage   `json:"messages"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Tools       []ChatTool      `json:"tools,omitempty"`
	ToolChoice  json.RawMessage `json:"tool_choice,omitempty"`
}

// ChatMessage is one entry of the Chat Completions messages array.
type ChatMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"` // string or []ChatContentPart
	Name       string          `json:"name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []ChatToolCall  `json:"tool_calls,omitempty"`
}

// ChatContentPart is one element of a multimodal Chat message content array.
type ChatContentPart struct {
	Type     string    `json:"type"` // "text" | "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps a data: URL or remote URL image reference.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatTool is a function tool definition in Chat Completions shape.
type ChatTool struct {
	Type     string       `json:"type"` // "function"
	Function ChatFunction `json:"function"`
}

// ChatFunction is the function body of a ChatTool.
type ChatFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatToolCall is a model-issued function invocation.
type ChatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ChatToolCallFunc `json:"function"`
}

// ChatToolCallFunc carries the name/arguments pair of a tool call.
type ChatToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatResponse is the non-streaming Chat Completions reply.
type ChatResponse struct {
	ID      string       `json:"id"`
	Choices []ChatChoice `json:"choices"`
	Usage   *ChatUsage   `json:"usage,omitempty"`
}

// ChatChoice is one entry of ChatResponse.Choices.
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ChatRespMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ChatRespMessage is the assistant message returned by Chat Completions.
type ChatRespMessage struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	ToolCalls []ChatToolCall  `json:"tool_calls,omitempty"`
}

// ChatUsage carries prompt/completion token counts.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ChatStreamChunk is one SSE payload of a Chat Completions stream.
type ChatStreamChunk struct {
	ID      string             `json:"id"`
	Choices []ChatStreamChoice `json:"choices"`
	Usage   *ChatUsage         `json:"usage,omitempty"`
}

// ChatStreamChoice is one entry of ChatStreamChunk.Choices.
type ChatStreamChoice struct {
	Index        int             `json:"index"`
	Delta        ChatStreamDelta `json:"delta"`
	FinishReason *string         `json:"finish_reason"`
}

// ChatStreamDelta is the incremental payload of a Chat Completions chunk.
type ChatStreamDelta struct {
	Role      string               `json:"role,omitempty"`
	Content   string               `json:"content,omitempty"`
	ToolCalls []ChatStreamToolCall `json:"tool_calls,omitempty"`
}

// ChatStreamToolCall is an incremental tool-call fragment, identified by its
// ordinal Index within the upstream's choices[0].delta.tool_calls array —
// NOT the Anthropic content-block index.
type ChatStreamToolCall struct {
	Index    int                     `json:"index"`
	ID       string                  `json:"id,omitempty"`
	Type     string                  `json:"type,omitempty"`
	Function *ChatStreamToolCallFunc `json:"function,omitempty"`
}

// ChatStreamToolCallFunc is the function fragment of a streamed tool call.
type ChatStreamToolCallFunc struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// --- Responses API ---

// ResponsesRequest is the upstream body for POST /v1/responses.
type ResponsesRequest struct {
	Model           string          `json:"model"`
	Input           []ResponseItem  `json:"input"`
	Instructions    string          `json:"instructions,omitempty"`
	MaxOutputTokens *int            `json:"max_output_tokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"top_p,omitempty"`
	Tools           []ResponseTool  `json:"tools,omitempty"`
	ToolChoice      json.RawMessage `json:"tool_choice,omitempty"`
	Stream          bool            `json:"stream,omitempty"`
	Store           bool            `json:"store"`
}

// ResponseItem is one entry of ResponsesRequest.Input or Response.Output. Its
// Type discriminates between "message", "function_call", and
// "function_call_output".
type ResponseItem struct {
	Type string `json:"type"`

	// message
	Role    string                `json:"role,omitempty"`
	Content []ResponseContentPart `json:"content,omitempty"`
	ID      string                `json:"id,omitempty"`
	Status  string                `json:"status,omitempty"`

	// function_call
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// function_call_output
	Output string `json:"output,omitempty"`
}

// ResponseContentPart is one element of a message item's content array.
type ResponseContentPart struct {
	Type     string `json:"type"` // "input_text" | "input_image" | "output_text"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ResponseTool is a function tool definition in the flattened Responses shape.
type ResponseTool struct {
	Type        string          `json:"type"` // "function"
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Strict      bool            `json:"strict"`
}

// Response is the non-streaming Responses API reply.
type Response struct {
	ID                string             `json:"id"`
	Status            string             `json:"status"`
	Output            []ResponseItem     `json:"output"`
	IncompleteDetails *IncompleteDetails `json:"incomplete_details,omitempty"`
	Usage             *ResponsesUsage    `json:"usage,omitempty"`
}

// IncompleteDetails explains why a Responses reply was cut short.
type IncompleteDetails struct {
	Reason string `json:"reason"`
}

// ResponsesUsage carries token counts for the Responses API shape.
type ResponsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ResponseStreamEvent is one typed SSE event of a Responses stream.
type ResponseStreamEvent struct {
	Type string `json:"type"`

	Response *Response `json:"response,omitempty"` // response.created / response.completed

	Item   *ResponseItem `json:"item,omitempty"`    // response.output_item.added / .done
	ItemID string        `json:"item_id,omitempty"` // response.output_text.delta / function_call_arguments.delta
	Delta  string        `json:"delta,omitempty"`
	CallID string        `json:"call_id,omitempty"`

	Error *ResponseStreamError `json:"error,omitempty"` // response.error
}

// ResponseStreamError carries an upstream error body inside response.error.
type ResponseStreamError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
