package providers

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
)

// OpenAI chat-completion wire types. They are shared by every backend this
// module talks to and never leave the pipeline.

// CacheControl marks a content part as cacheable (DashScope).
type CacheControl struct {
	Type string `json:"type"`
}

// ImageURL is an image reference or data URI.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// InputAudio is base64 encoded audio.
type InputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// FilePart is an attached file, either inline or by id.
type FilePart struct {
	Filename string `json:"filename,omitempty"`
	FileData string `json:"file_data,omitempty"`
	FileID   string `json:"file_id,omitempty"`
}

// ContentPart is one element of an array-form message content.
type ContentPart struct {
	Type         string        `json:"type"`
	Text         string        `json:"text,omitempty"`
	ImageURL     *ImageURL     `json:"image_url,omitempty"`
	InputAudio   *InputAudio   `json:"input_audio,omitempty"`
	File         *FilePart     `json:"file,omitempty"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// MessageContent is either a plain string or an array of parts on the wire.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// TextContent returns string-form content.
func TextContent(text string) *MessageContent { return &MessageContent{Text: text} }

// PartsContent returns array-form content.
func PartsContent(parts ...ContentPart) *MessageContent {
	if parts == nil {
		parts = []ContentPart{}
	}
	return &MessageContent{Parts: parts}
}

// IsParts reports whether the content serialises as an array.
func (c *MessageContent) IsParts() bool { return c != nil && c.Parts != nil }

// String flattens the content into text, joining text parts with newlines.
func (c *MessageContent) String() string {
	if c == nil {
		return ""
	}
	if !c.IsParts() {
		return c.Text
	}
	var buf bytes.Buffer
	for _, p := range c.Parts {
		if p.Type != "text" || p.Text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(p.Text)
	}
	return buf.String()
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		c.Text = ""
		return json.Unmarshal(data, &c.Parts)
	}
	if bytes.Equal(data, []byte("null")) {
		*c = MessageContent{}
		return nil
	}
	c.Parts = nil
	return json.Unmarshal(data, &c.Text)
}

// FunctionCall is the function half of a tool call. Arguments is a JSON
// string and may be a fragment while streaming.
type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// ToolCall is a tool invocation on an assistant message or delta.
type ToolCall struct {
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// ChatMessage is one entry of the messages array, and also a stream delta.
type ChatMessage struct {
	Role             string          `json:"role,omitempty"`
	Content          *MessageContent `json:"content,omitempty"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	Name             string          `json:"name,omitempty"`
	ToolCalls        []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID       string          `json:"tool_call_id,omitempty"`
}

// FunctionDefinition is a declared tool.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Tool wraps a function definition.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// StreamOptions asks the backend for usage totals in the stream.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatCompletionRequest is the request body for POST /chat/completions.
type ChatCompletionRequest struct {
	Model             string            `json:"model"`
	Messages          []ChatMessage     `json:"messages"`
	Tools             []Tool            `json:"tools,omitempty"`
	ToolChoice        any               `json:"tool_choice,omitempty"`
	Temperature       *float64          `json:"temperature,omitempty"`
	TopP              *float64          `json:"top_p,omitempty"`
	TopK              *int              `json:"top_k,omitempty"`
	MaxTokens         *int              `json:"max_tokens,omitempty"`
	PresencePenalty   *float64          `json:"presence_penalty,omitempty"`
	FrequencyPenalty  *float64          `json:"frequency_penalty,omitempty"`
	RepetitionPenalty *float64          `json:"repetition_penalty,omitempty"`
	Stop              []string          `json:"stop,omitempty"`
	Stream            bool              `json:"stream,omitempty"`
	StreamOptions     *StreamOptions    `json:"stream_options,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Clone returns a copy whose slices and maps can be modified without
// touching the original. Content parts are copied per message.
func (r *ChatCompletionRequest) Clone() *ChatCompletionRequest {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Messages = make([]ChatMessage, len(r.Messages))
	for i, m := range r.Messages {
		if m.Content != nil {
			c := *m.Content
			if c.Parts != nil {
				c.Parts = slices.Clone(c.Parts)
			}
			m.Content = &c
		}
		m.ToolCalls = slices.Clone(m.ToolCalls)
		cp.Messages[i] = m
	}
	cp.Tools = slices.Clone(r.Tools)
	cp.Stop = slices.Clone(r.Stop)
	cp.Metadata = maps.Clone(r.Metadata)
	if r.StreamOptions != nil {
		so := *r.StreamOptions
		cp.StreamOptions = &so
	}
	return &cp
}

// PromptTokensDetails breaks down prompt usage.
type PromptTokensDetails struct {
	CachedTokens int `json:"cached_tokens,omitempty"`
}

// CompletionTokensDetails breaks down completion usage.
type CompletionTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
}

// Usage is token accounting. Some backends report cached_tokens at the top level.
type Usage struct {
	PromptTokens            int                      `json:"prompt_tokens"`
	CompletionTokens        int                      `json:"completion_tokens"`
	TotalTokens             int                      `json:"total_tokens"`
	CachedTokens            int                      `json:"cached_tokens,omitempty"`
	PromptTokensDetails     *PromptTokensDetails     `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails *CompletionTokensDetails `json:"completion_tokens_details,omitempty"`
}

// Choice is one non-streaming alternative.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ChatCompletionResponse is the non-streaming response body.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// ChunkChoice is one alternative inside a stream chunk.
type ChunkChoice struct {
	Index        int         `json:"index"`
	Delta        ChatMessage `json:"delta"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ChatCompletionChunk is one `data:` event of a streaming response.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object,omitempty"`
	Created int64         `json:"created,omitempty"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ErrorResponse is the OpenAI-style error envelope.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
		Param   string `json:"param"`
	} `json:"error"`
}
