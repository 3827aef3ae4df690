package llm

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a Content.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// FinishReason is the normalized finish reason. The zero value means the
// candidate has not finished.
type FinishReason string

const (
	FinishReasonUnspecified FinishReason = ""
	FinishReasonStop        FinishReason = "STOP"
	FinishReasonMaxTokens   FinishReason = "MAX_TOKENS"
	FinishReasonToolCall    FinishReason = "TOOL_CALL"
	FinishReasonSafety      FinishReason = "SAFETY"
	FinishReasonOther       FinishReason = "OTHER"
)

// Blob is inline binary media.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// FileData references media by URI instead of embedding it.
type FileData struct {
	MIMEType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

// FunctionCall is a tool invocation emitted by the model.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries the result of a FunctionCall back to the model.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// Part is one element of a Content. Exactly one of the payload fields is set;
// Thought marks a text part as model reasoning.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FileData         *FileData         `json:"fileData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// NewTextPart returns a plain text part.
func NewTextPart(text string) Part { return Part{Text: text} }

// NewFunctionCallPart returns a part holding a tool invocation.
func NewFunctionCallPart(id, name string, args map[string]any) Part {
	return Part{FunctionCall: &FunctionCall{ID: id, Name: name, Args: args}}
}

// NewFunctionResponsePart returns a part holding a tool result.
func NewFunctionResponsePart(id, name string, response map[string]any) Part {
	return Part{FunctionResponse: &FunctionResponse{ID: id, Name: name, Response: response}}
}

// IsEmpty reports whether the part carries no payload at all.
func (p Part) IsEmpty() bool {
	return p.Text == "" && p.InlineData == nil && p.FileData == nil &&
		p.FunctionCall == nil && p.FunctionResponse == nil
}

// Content is an ordered list of parts from a single role.
type Content struct {
	Role  Role   `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// NewUserText builds a single-part user content.
func NewUserText(text string) Content {
	return Content{Role: RoleUser, Parts: []Part{NewTextPart(text)}}
}

// FunctionDeclaration describes one callable tool. Parameters is a JSON Schema.
type FunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Tool groups function declarations.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// GenerationConfig holds per-call sampling parameters. Nil fields are unset.
type GenerationConfig struct {
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"topP,omitempty"`
	TopK              *int     `json:"topK,omitempty"`
	MaxOutputTokens   *int     `json:"maxOutputTokens,omitempty"`
	PresencePenalty   *float64 `json:"presencePenalty,omitempty"`
	FrequencyPenalty  *float64 `json:"frequencyPenalty,omitempty"`
	RepetitionPenalty *float64 `json:"repetitionPenalty,omitempty"`
	StopSequences     []string `json:"stopSequences,omitempty"`
}

// GenerateRequest is the provider-agnostic request. It must not be mutated
// after it has been handed to a pipeline.
type GenerateRequest struct {
	Model             string            `json:"model"`
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
	Config            *GenerationConfig `json:"generationConfig,omitempty"`
}

// UsageMetadata is token accounting for a response or a whole stream.
type UsageMetadata struct {
	PromptTokenCount        int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount    int `json:"candidatesTokenCount,omitempty"`
	CachedContentTokenCount int `json:"cachedContentTokenCount,omitempty"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount,omitempty"`
	ToolUsePromptTokenCount int `json:"toolUsePromptTokenCount,omitempty"`
	TotalTokenCount         int `json:"totalTokenCount,omitempty"`
}

// Candidate is one generated alternative.
type Candidate struct {
	Index        int          `json:"index"`
	Content      Content      `json:"content"`
	FinishReason FinishReason `json:"finishReason,omitempty"`
}

// GenerateResponse is both the single-shot response and one streaming chunk.
type GenerateResponse struct {
	ResponseID    string         `json:"responseId,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
	CreateTime    time.Time      `json:"createTime,omitempty"`
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// FinishReason returns the first non-empty finish reason across candidates.
func (r *GenerateResponse) FinishReason() FinishReason {
	if r == nil {
		return FinishReasonUnspecified
	}
	for _, c := range r.Candidates {
		if c.FinishReason != FinishReasonUnspecified {
			return c.FinishReason
		}
	}
	return FinishReasonUnspecified
}

// HasUsage reports whether usage metadata is attached.
func (r *GenerateResponse) HasUsage() bool {
	return r != nil && r.UsageMetadata != nil
}

// IsEmpty reports whether the chunk carries no parts, no finish reason and
// no usage. Such chunks are never emitted downstream.
func (r *GenerateResponse) IsEmpty() bool {
	if r == nil {
		return true
	}
	if r.UsageMetadata != nil {
		return false
	}
	for _, c := range r.Candidates {
		if c.FinishReason != FinishReasonUnspecified {
			return false
		}
		for _, p := range c.Content.Parts {
			if !p.IsEmpty() {
				return false
			}
		}
	}
	return true
}

// Text concatenates all non-thought text parts of the first candidate.
func (r *GenerateResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	var out string
	for _, p := range r.Candidates[0].Content.Parts {
		if !p.Thought {
			out += p.Text
		}
	}
	return out
}

// FunctionCalls returns every function call part of the first candidate.
func (r *GenerateResponse) FunctionCalls() []*FunctionCall {
	if r == nil || len(r.Candidates) == 0 {
		return nil
	}
	var calls []*FunctionCall
	for _, p := range r.Candidates[0].Content.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, p.FunctionCall)
		}
	}
	return calls
}
