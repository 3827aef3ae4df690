package deepseek

import (
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
	"github.com/BaSui01/genflow/llm/providers/openaicompat"
)

// Name is the strategy id.
const Name = "deepseek"

// Match selects DeepSeek by name or by its API host.
var Match = providers.HostMatcher([]string{Name}, "deepseek.com")

// Strategy is the DeepSeek backend. DeepSeek speaks the OpenAI-compatible
// format but only accepts string message content.
type Strategy struct {
	*openaicompat.Strategy
}

// New creates a DeepSeek strategy.
func New(cfg providers.Config, logger *zap.Logger) *Strategy {
	return &Strategy{
		Strategy: openaicompat.New(cfg, openaicompat.Options{
			Name:        Name,
			RequestHook: flattenContent,
			Logger:      logger,
		}),
	}
}

// Entry returns the registry entry for DeepSeek.
func Entry(logger *zap.Logger) providers.Entry {
	return providers.Entry{
		Name:  Name,
		Match: Match,
		New: func(cfg providers.Config) (providers.Strategy, error) {
			return New(cfg, logger), nil
		},
	}
}

// flattenContent turns array content into plain strings. Non-text parts
// cannot be expressed and are rejected. reasoning_content is never echoed
// back because the API refuses it on input.
func flattenContent(req *providers.ChatCompletionRequest, _ string) error {
	for i := range req.Messages {
		m := &req.Messages[i]
		m.ReasoningContent = ""
		if !m.Content.IsParts() {
			continue
		}
		for _, p := range m.Content.Parts {
			if p.Type != "text" {
				return llm.Errorf(llm.ErrConversion, "deepseek does not accept %q content in %s messages", p.Type, m.Role)
			}
		}
		m.Content = providers.TextContent(m.Content.String())
	}
	return nil
}
