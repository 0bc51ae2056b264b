// Package anthropic models the Anthropic Messages API wire schema and
// translates between it and the OpenAI-compatible upstream formats.
package anthropic

import "encoding/json"

// Request represents an inbound POST /v1/messages body.
type Request struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	System        json.RawMessage `json:"system,omitempty"` // string or []ContentBlock
	MaxTokens     int             `json:"max_tokens,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    json.RawMessage `json:"tool_choice,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Message is a single turn in the conversation. Content is either a bare
// string or an ordered list of ContentBlock, so it is kept as raw JSON and
// decoded lazily by UnmarshalContent.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// UnmarshalContent decodes Content as either a single text string or a
// sequence of content blocks, normalizing both into a block list.
func (m Message) UnmarshalContent() ([]ContentBlock, error) {
	return decodeContent(m.Content)
}

func decodeContent(raw json.RawMessage) ([]ContentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return []ContentBlock{{Type: "text", Text: asString}}, nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// ContentBlock is the tagged union of Anthropic content block variants.
// Fields are grouped by the variant that populates them; a block whose
// Type is not recognized by the translator is converted into a text block
// carrying its original JSON instead of being silently dropped (see
// decodeBlocksPreserveUnknown in request.go).
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Source *MediaSource `json:"source,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"` // string or []ContentBlock
	IsError   bool            `json:"is_error,omitempty"`

	// thinking (preserved, never forwarded to the upstream)
	Thinking string `json:"thinking,omitempty"`
}

// MediaSource describes an inline image payload.
type MediaSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

// Tool is a caller-supplied function definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Response is a non-streaming POST /v1/messages reply.
type Response struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   string         `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// Usage carries token counts for a single exchange.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent is a single SSE frame in the Anthropic event sequence.
type StreamEvent struct {
	Type string `json:"type"`

	Message *StreamMessage `json:"message,omitempty"` // message_start

	Index        *int          `json:"index,omitempty"`         // content_block_*
	ContentBlock *ContentBlock `json:"content_block,omitempty"` // content_block_start

	Delta *StreamDelta `json:"delta,omitempty"` // content_block_delta / message_delta

	Usage *StreamUsage `json:"usage,omitempty"` // message_delta

	Error *ErrorBody `json:"error,omitempty"` // error
}

// StreamMessage is the message skeleton carried by message_start.
type StreamMessage struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// StreamDelta carries incremental payload for content_block_delta and the
// terminal fields for message_delta.
type StreamDelta struct {
	Type string `json:"type,omitempty"`

	// text_delta
	Text string `json:"text,omitempty"`

	// input_json_delta
	PartialJSON string `json:"partial_json,omitempty"`

	// message_delta
	StopReason   string  `json:"stop_reason,omitempty"`
	StopSequence *string `json:"stop_sequence,omitempty"`
}

// StreamUsage carries incremental token counts in message_delta.
type StreamUsage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// ErrorBody is the nested error object in both the JSON error envelope and
// the SSE error event.
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorEnvelope is the top-level shape of every error response this proxy
// ever writes to a client.
type ErrorEnvelope struct {
	Type  string    `json:"type"`
	Error ErrorBody `json:"error"`
}
