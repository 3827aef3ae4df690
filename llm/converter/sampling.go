package converter

import (
	"slices"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

// applySampling resolves each field independently: provider override, then
// request value, then built-in default. Only temperature and top_p have a
// default; every other field is sent only when resolved.
func (c *Converter) applySampling(out *providers.ChatCompletionRequest, cfg *llm.GenerationConfig) {
	o := c.sampling
	if o == nil {
		o = &providers.SamplingParams{}
	}
	if cfg == nil {
		cfg = &llm.GenerationConfig{}
	}

	out.Temperature = firstFloat(o.Temperature, cfg.Temperature, ptr(DefaultTemperature))
	out.TopP = firstFloat(o.TopP, cfg.TopP, ptr(DefaultTopP))
	out.TopK = firstInt(o.TopK, cfg.TopK)
	out.MaxTokens = firstInt(o.MaxTokens, cfg.MaxOutputTokens)
	out.PresencePenalty = firstFloat(o.PresencePenalty, cfg.PresencePenalty)
	out.FrequencyPenalty = firstFloat(o.FrequencyPenalty, cfg.FrequencyPenalty)
	out.RepetitionPenalty = firstFloat(o.RepetitionPenalty, cfg.RepetitionPenalty)

	switch {
	case len(o.Stop) > 0:
		out.Stop = slices.Clone(o.Stop)
	case len(cfg.StopSequences) > 0:
		out.Stop = slices.Clone(cfg.StopSequences)
	}
}

func firstFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return ptr(*v)
		}
	}
	return nil
}

func firstInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return ptr(*v)
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
