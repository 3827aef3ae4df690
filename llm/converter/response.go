package converter

import (
	"strings"
	"time"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

// FromChatCompletion maps a non-streaming response.
func (c *Converter) FromChatCompletion(resp *providers.ChatCompletionResponse) (*llm.GenerateResponse, error) {
	if resp == nil {
		return nil, llm.NewError(llm.ErrStreamIntegrity, "nil chat completion response")
	}
	out := &llm.GenerateResponse{
		ResponseID:    resp.ID,
		ModelVersion:  resp.Model,
		CreateTime:    unixTime(resp.Created),
		UsageMetadata: usageMetadata(resp.Usage),
	}
	for _, choice := range resp.Choices {
		parts := messageParts(choice.Message)
		for _, tc := range choice.Message.ToolCalls {
			if tc.Function.Name == "" {
				return nil, llm.NewError(llm.ErrConversion, "tool call without a function name")
			}
			id := tc.ID
			if id == "" {
				id = c.newID()
			}
			parts = append(parts, llm.NewFunctionCallPart(id, tc.Function.Name, parseArgs(tc.Function.Arguments)))
		}
		out.Candidates = append(out.Candidates, llm.Candidate{
			Index:        choice.Index,
			Content:      llm.Content{Role: llm.RoleModel, Parts: parts},
			FinishReason: FinishReasonFromWire(choice.FinishReason),
		})
	}
	return out, nil
}

// FromChunk maps one stream chunk. Tool-call fragments are buffered and
// surface as complete function-call parts on the chunk that carries the
// finish reason. The result may be empty; callers filter it.
func (c *Converter) FromChunk(chunk *providers.ChatCompletionChunk) (*llm.GenerateResponse, error) {
	if chunk == nil {
		return nil, llm.NewError(llm.ErrStreamIntegrity, "nil stream chunk")
	}
	out := &llm.GenerateResponse{
		ResponseID:    chunk.ID,
		ModelVersion:  chunk.Model,
		CreateTime:    unixTime(chunk.Created),
		UsageMetadata: usageMetadata(chunk.Usage),
	}
	for _, choice := range chunk.Choices {
		parts := messageParts(choice.Delta)
		for i, tc := range choice.Delta.ToolCalls {
			c.acc.Add(tc, i)
		}
		finish := FinishReasonFromWire(choice.FinishReason)
		if finish != llm.FinishReasonUnspecified {
			parts = append(parts, c.acc.Flush(c.newID)...)
		}
		if len(parts) == 0 && finish == llm.FinishReasonUnspecified {
			continue
		}
		out.Candidates = append(out.Candidates, llm.Candidate{
			Index:        choice.Index,
			Content:      llm.Content{Role: llm.RoleModel, Parts: parts},
			FinishReason: finish,
		})
	}
	return out, nil
}

// FlushToolCalls returns buffered tool calls as a chunk for streams that
// ended without a finish reason, or nil when nothing is buffered.
func (c *Converter) FlushToolCalls() *llm.GenerateResponse {
	parts := c.acc.Flush(c.newID)
	if len(parts) == 0 {
		return nil
	}
	return &llm.GenerateResponse{
		Candidates: []llm.Candidate{{Content: llm.Content{Role: llm.RoleModel, Parts: parts}}},
	}
}

func messageParts(m providers.ChatMessage) []llm.Part {
	var parts []llm.Part
	if m.ReasoningContent != "" {
		parts = append(parts, llm.Part{Text: m.ReasoningContent, Thought: true})
	}
	if text := m.Content.String(); text != "" {
		parts = append(parts, llm.NewTextPart(text))
	}
	return parts
}

// FinishReasonFromWire maps chat-completion finish reasons.
func FinishReasonFromWire(reason string) llm.FinishReason {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "":
		return llm.FinishReasonUnspecified
	case "stop", "end_turn", "stop_sequence":
		return llm.FinishReasonStop
	case "length", "max_tokens":
		return llm.FinishReasonMaxTokens
	case "tool_calls", "function_call", "tool_use":
		return llm.FinishReasonToolCall
	case "content_filter", "safety":
		return llm.FinishReasonSafety
	default:
		return llm.FinishReasonOther
	}
}

// FinishReasonToWire is the inverse of FinishReasonFromWire for the
// canonical values.
func FinishReasonToWire(reason llm.FinishReason) string {
	switch reason {
	case llm.FinishReasonStop:
		return "stop"
	case llm.FinishReasonMaxTokens:
		return "length"
	case llm.FinishReasonToolCall:
		return "tool_calls"
	case llm.FinishReasonSafety:
		return "content_filter"
	case llm.FinishReasonUnspecified:
		return ""
	default:
		return "other"
	}
}

// usageMetadata maps wire usage. When a backend reports only a total, it is
// split 70/30 between prompt and candidates.
func usageMetadata(u *providers.Usage) *llm.UsageMetadata {
	if u == nil {
		return nil
	}
	m := &llm.UsageMetadata{
		PromptTokenCount:     u.PromptTokens,
		CandidatesTokenCount: u.CompletionTokens,
		TotalTokenCount:      u.TotalTokens,
	}
	if u.PromptTokensDetails != nil && u.PromptTokensDetails.CachedTokens > 0 {
		m.CachedContentTokenCount = u.PromptTokensDetails.CachedTokens
	} else {
		m.CachedContentTokenCount = u.CachedTokens
	}
	if u.CompletionTokensDetails != nil {
		m.ThoughtsTokenCount = u.CompletionTokensDetails.ReasoningTokens
	}
	if m.PromptTokenCount == 0 && m.CandidatesTokenCount == 0 && m.TotalTokenCount > 0 {
		m.PromptTokenCount = m.TotalTokenCount * 7 / 10
		m.CandidatesTokenCount = m.TotalTokenCount - m.PromptTokenCount
	}
	if m.TotalTokenCount == 0 {
		m.TotalTokenCount = m.PromptTokenCount + m.CandidatesTokenCount
	}
	return m
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
