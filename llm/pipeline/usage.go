package pipeline

import (
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
	"github.com/BaSui01/genflow/llm/tokenizer"
)

// estimateUsage counts prompt tokens from the wire messages and completion
// tokens from the returned text. It is only called when the backend reported
// no usage; the result is attached to the RequestContext for telemetry and
// never to the caller's response.
func (p *Pipeline) estimateUsage(model string, wireReq *providers.ChatCompletionRequest, chunks []*llm.GenerateResponse) *llm.UsageMetadata {
	tk := p.tokenizerFor(model)

	msgs := make([]tokenizer.Message, 0, len(wireReq.Messages))
	for _, m := range wireReq.Messages {
		content := m.Content.String()
		for _, tc := range m.ToolCalls {
			content += tc.Function.Name + tc.Function.Arguments
		}
		msgs = append(msgs, tokenizer.Message{Role: m.Role, Content: content})
	}
	prompt, err := tk.CountMessages(msgs)
	if err != nil {
		p.logger.Debug("prompt token estimation failed", zap.String("tokenizer", tk.Name()), zap.Error(err))
		return nil
	}

	var completion, thoughts int
	var text, thought strings.Builder
	for _, c := range chunks {
		collectText(c, &text, &thought)
	}
	if completion, err = tk.CountTokens(text.String()); err != nil {
		completion = 0
	}
	if thoughts, err = tk.CountTokens(thought.String()); err != nil {
		thoughts = 0
	}

	return &llm.UsageMetadata{
		PromptTokenCount:     prompt,
		CandidatesTokenCount: completion,
		ThoughtsTokenCount:   thoughts,
		TotalTokenCount:      prompt + completion + thoughts,
	}
}

func collectText(resp *llm.GenerateResponse, text, thought *strings.Builder) {
	if resp == nil {
		return
	}
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			switch {
			case part.Thought:
				thought.WriteString(part.Text)
			case part.FunctionCall != nil:
				text.WriteString(part.FunctionCall.Name)
			default:
				text.WriteString(part.Text)
			}
		}
	}
}

func (p *Pipeline) tokenizerFor(model string) tokenizer.Tokenizer {
	if p.tokenizer != nil {
		return p.tokenizer
	}
	if tk, ok := p.tokenizers.Load(model); ok {
		return tk.(tokenizer.Tokenizer)
	}
	tk, _ := p.tokenizers.LoadOrStore(model, tokenizer.ForModel(model))
	return tk.(tokenizer.Tokenizer)
}
