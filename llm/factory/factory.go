// Package factory assembles the built-in strategy registry. It imports every
// backend sub-package and lists them in match order, breaking the import
// cycle that would occur if this logic lived in the providers package.
package factory

import (
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm/providers"
	"github.com/BaSui01/genflow/llm/providers/azure"
	"github.com/BaSui01/genflow/llm/providers/dashscope"
	"github.com/BaSui01/genflow/llm/providers/deepseek"
	"github.com/BaSui01/genflow/llm/providers/openaicompat"
	"github.com/BaSui01/genflow/llm/providers/openrouter"
)

// Entries returns the built-in entries in match order. The first entry whose
// predicate accepts a config wins.
func Entries(logger *zap.Logger) []providers.Entry {
	return []providers.Entry{
		azure.Entry(logger),
		dashscope.Entry(logger),
		deepseek.Entry(logger),
		openrouter.Entry(logger),
	}
}

// DefaultRegistry builds the registry used by the pipeline when none is
// injected: azure, dashscope, deepseek, openrouter, then the generic
// OpenAI-compatible strategy as fallback.
func DefaultRegistry(logger *zap.Logger) *providers.Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg, err := providers.NewRegistry(openaicompat.Entry(logger), Entries(logger)...)
	if err != nil {
		// Built-in entries are static; a failure here is a programming error.
		panic(err)
	}
	return reg
}

// NewStrategy resolves cfg against the default registry.
func NewStrategy(cfg providers.Config, logger *zap.Logger) (providers.Strategy, error) {
	return DefaultRegistry(logger).Resolve(cfg)
}

// SupportedProviders returns the built-in strategy ids in match order. Any
// config that matches none of them is served by the generic strategy.
func SupportedProviders() []string {
	return DefaultRegistry(nil).Names()
}
