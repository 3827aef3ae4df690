package converter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

func idx(i int) *int { return &i }

func TestFromChatCompletion(t *testing.T) {
	resp := &providers.ChatCompletionResponse{
		ID:      "resp-1",
		Model:   "deepseek-chat",
		Created: 1700000000,
		Choices: []providers.Choice{{
			Message: providers.ChatMessage{
				Role:             "assistant",
				ReasoningContent: "hmm",
				Content:          providers.TextContent("hello"),
				ToolCalls: []providers.ToolCall{
					{ID: "c1", Function: providers.FunctionCall{Name: "f", Arguments: `{"a":1}`}},
					{Function: providers.FunctionCall{Name: "g", Arguments: ``}},
				},
			},
			FinishReason: "tool_calls",
		}},
		Usage: &providers.Usage{
			PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15,
			PromptTokensDetails:     &providers.PromptTokensDetails{CachedTokens: 4},
			CompletionTokensDetails: &providers.CompletionTokensDetails{ReasoningTokens: 2},
		},
	}
	c := New("m", nil, WithIDGenerator(func() string { return "gen" }))
	out, err := c.FromChatCompletion(resp)
	require.NoError(t, err)

	assert.Equal(t, "resp-1", out.ResponseID)
	assert.Equal(t, "deepseek-chat", out.ModelVersion)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), out.CreateTime)
	assert.Equal(t, llm.FinishReasonToolCall, out.FinishReason())
	assert.Equal(t, "hello", out.Text())

	parts := out.Candidates[0].Content.Parts
	require.Len(t, parts, 4)
	assert.True(t, parts[0].Thought)
	assert.Equal(t, "hmm", parts[0].Text)

	calls := out.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "c1", calls[0].ID)
	assert.Equal(t, map[string]any{"a": float64(1)}, calls[0].Args)
	assert.Equal(t, "gen", calls[1].ID)
	assert.Equal(t, map[string]any{}, calls[1].Args)

	require.NotNil(t, out.UsageMetadata)
	assert.Equal(t, 10, out.UsageMetadata.PromptTokenCount)
	assert.Equal(t, 5, out.UsageMetadata.CandidatesTokenCount)
	assert.Equal(t, 4, out.UsageMetadata.CachedContentTokenCount)
	assert.Equal(t, 2, out.UsageMetadata.ThoughtsTokenCount)
	assert.Equal(t, 15, out.UsageMetadata.TotalTokenCount)
}

func TestFromChatCompletion_Errors(t *testing.T) {
	c := New("m", nil)
	_, err := c.FromChatCompletion(nil)
	assert.True(t, llm.IsKind(err, llm.ErrStreamIntegrity))

	_, err = c.FromChatCompletion(&providers.ChatCompletionResponse{Choices: []providers.Choice{{
		Message: providers.ChatMessage{ToolCalls: []providers.ToolCall{{ID: "x"}}},
	}}})
	assert.True(t, llm.IsKind(err, llm.ErrConversion))
}

func TestFinishReasonMapping(t *testing.T) {
	tests := map[string]llm.FinishReason{
		"":               llm.FinishReasonUnspecified,
		"stop":           llm.FinishReasonStop,
		"length":         llm.FinishReasonMaxTokens,
		"tool_calls":     llm.FinishReasonToolCall,
		"function_call":  llm.FinishReasonToolCall,
		"content_filter": llm.FinishReasonSafety,
		"insufficient":   llm.FinishReasonOther,
	}
	for wire, want := range tests {
		assert.Equal(t, want, FinishReasonFromWire(wire), wire)
	}
	for _, r := range []llm.FinishReason{
		llm.FinishReasonStop, llm.FinishReasonMaxTokens, llm.FinishReasonToolCall, llm.FinishReasonSafety,
	} {
		assert.Equal(t, r, FinishReasonFromWire(FinishReasonToWire(r)))
	}
}

func TestUsageMetadata(t *testing.T) {
	assert.Nil(t, usageMetadata(nil))

	u := usageMetadata(&providers.Usage{TotalTokens: 100})
	assert.Equal(t, 70, u.PromptTokenCount)
	assert.Equal(t, 30, u.CandidatesTokenCount)
	assert.Equal(t, 100, u.TotalTokenCount)

	u = usageMetadata(&providers.Usage{PromptTokens: 3, CompletionTokens: 4, CachedTokens: 2})
	assert.Equal(t, 7, u.TotalTokenCount)
	assert.Equal(t, 2, u.CachedContentTokenCount)
}

func TestFromChunk_ToolCallAssembly(t *testing.T) {
	c := New("m", nil)
	c.ResetStreamState()

	chunks := []*providers.ChatCompletionChunk{
		{Choices: []providers.ChunkChoice{{Delta: providers.ChatMessage{ToolCalls: []providers.ToolCall{
			{Index: idx(0), ID: "call_a", Function: providers.FunctionCall{Name: "search"}},
		}}}}},
		{Choices: []providers.ChunkChoice{{Delta: providers.ChatMessage{ToolCalls: []providers.ToolCall{
			{Index: idx(0), Function: providers.FunctionCall{Arguments: `{"q":`}},
		}}}}},
		{Choices: []providers.ChunkChoice{{Delta: providers.ChatMessage{ToolCalls: []providers.ToolCall{
			{Index: idx(0), Function: providers.FunctionCall{Arguments: `"go"}`}},
		}}}}},
	}
	for _, ch := range chunks {
		out, err := c.FromChunk(ch)
		require.NoError(t, err)
		assert.True(t, out.IsEmpty(), "fragments are not surfaced early")
	}
	assert.Equal(t, 1, c.PendingToolCalls())

	out, err := c.FromChunk(&providers.ChatCompletionChunk{Choices: []providers.ChunkChoice{{FinishReason: "tool_calls"}}})
	require.NoError(t, err)
	assert.Equal(t, llm.FinishReasonToolCall, out.FinishReason())
	calls := out.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_a", calls[0].ID)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, map[string]any{"q": "go"}, calls[0].Args)
	assert.Zero(t, c.PendingToolCalls())
}

func TestFromChunk_TextAndUsage(t *testing.T) {
	c := New("m", nil)
	out, err := c.FromChunk(&providers.ChatCompletionChunk{
		ID: "x",
		Choices: []providers.ChunkChoice{{Delta: providers.ChatMessage{
			Content: providers.TextContent("hi"), ReasoningContent: "r",
		}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Text())
	assert.Len(t, out.Candidates[0].Content.Parts, 2)

	out, err = c.FromChunk(&providers.ChatCompletionChunk{Usage: &providers.Usage{PromptTokens: 1, CompletionTokens: 2}})
	require.NoError(t, err)
	assert.False(t, out.IsEmpty())
	assert.Empty(t, out.Candidates)
	assert.Equal(t, 3, out.UsageMetadata.TotalTokenCount)

	out, err = c.FromChunk(&providers.ChatCompletionChunk{Choices: []providers.ChunkChoice{{}}})
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())

	_, err = c.FromChunk(nil)
	assert.True(t, llm.IsKind(err, llm.ErrStreamIntegrity))
}

// A second stream on a reset converter sees only its own fragments.
func TestResetStreamState_Isolation(t *testing.T) {
	c := New("m", nil)
	c.ResetStreamState()
	_, err := c.FromChunk(&providers.ChatCompletionChunk{Choices: []providers.ChunkChoice{{Delta: providers.ChatMessage{
		ToolCalls: []providers.ToolCall{{Index: idx(0), ID: "first", Function: providers.FunctionCall{Name: "a", Arguments: `{"x":`}}},
	}}}})
	require.NoError(t, err)
	require.Equal(t, 1, c.PendingToolCalls())

	c.ResetStreamState()
	_, err = c.FromChunk(&providers.ChatCompletionChunk{Choices: []providers.ChunkChoice{{Delta: providers.ChatMessage{
		ToolCalls: []providers.ToolCall{{Index: idx(0), ID: "second", Function: providers.FunctionCall{Name: "b", Arguments: `{"y":2}`}}},
	}}}})
	require.NoError(t, err)
	out, err := c.FromChunk(&providers.ChatCompletionChunk{Choices: []providers.ChunkChoice{{FinishReason: "tool_calls"}}})
	require.NoError(t, err)

	calls := out.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "second", calls[0].ID)
	assert.Equal(t, "b", calls[0].Name)
	assert.Equal(t, map[string]any{"y": float64(2)}, calls[0].Args)
}

func TestFlushToolCalls(t *testing.T) {
	c := New("m", nil, WithIDGenerator(func() string { return "gen" }))
	assert.Nil(t, c.FlushToolCalls())

	c.acc.Add(providers.ToolCall{Function: providers.FunctionCall{Name: "f", Arguments: `{"a":[1,2`}}, 0)
	out := c.FlushToolCalls()
	require.NotNil(t, out)
	calls := out.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gen", calls[0].ID)
	assert.Equal(t, map[string]any{"a": []any{float64(1), float64(2)}}, calls[0].Args)
}

// Text and finish reason survive a trip through the wire request and back.
func TestRoundTrip_NonStreaming(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[a-zA-Z0-9 ]{1,40}`).Draw(t, "text")
		finish := rapid.SampledFrom([]llm.FinishReason{
			llm.FinishReasonStop, llm.FinishReasonMaxTokens, llm.FinishReasonSafety,
		}).Draw(t, "finish")

		c := New("m", nil)
		wire, err := c.ToChatCompletionRequest(&llm.GenerateRequest{
			Contents: []llm.Content{{Role: llm.RoleModel, Parts: []llm.Part{llm.NewTextPart(text)}}},
		}, false)
		if err != nil {
			t.Fatalf("to wire: %v", err)
		}
		if len(wire.Messages) != 1 {
			t.Fatalf("expected one message, got %d", len(wire.Messages))
		}

		resp, err := c.FromChatCompletion(&providers.ChatCompletionResponse{
			Choices: []providers.Choice{{Message: wire.Messages[0], FinishReason: FinishReasonToWire(finish)}},
		})
		if err != nil {
			t.Fatalf("from wire: %v", err)
		}
		if got := resp.Text(); got != text {
			t.Fatalf("text %q != %q", got, text)
		}
		if got := resp.FinishReason(); got != finish {
			t.Fatalf("finish %q != %q", got, finish)
		}
	})
}
