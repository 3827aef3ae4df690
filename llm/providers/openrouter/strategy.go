package openrouter

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm/providers"
	"github.com/BaSui01/genflow/llm/providers/openaicompat"
)

// Name is the strategy id.
const Name = "openrouter"

// Attribution defaults sent when the config leaves them empty.
const (
	DefaultReferer  = "https://github.com/BaSui01/genflow"
	DefaultAppTitle = "genflow"
)

// Match selects OpenRouter by name or host.
var Match = providers.HostMatcher([]string{Name}, "openrouter.ai")

// Strategy is the OpenRouter backend with app attribution headers.
type Strategy struct {
	*openaicompat.Strategy
}

// New creates the OpenRouter strategy.
func New(cfg providers.Config, logger *zap.Logger) *Strategy {
	return &Strategy{
		Strategy: openaicompat.New(cfg, openaicompat.Options{
			Name:       Name,
			HeaderHook: attributionHeaders,
			Logger:     logger,
		}),
	}
}

// Entry returns the registry entry for OpenRouter.
func Entry(logger *zap.Logger) providers.Entry {
	return providers.Entry{
		Name:  Name,
		Match: Match,
		New: func(cfg providers.Config) (providers.Strategy, error) {
			return New(cfg, logger), nil
		},
	}
}

func attributionHeaders(h http.Header, cfg providers.Config) {
	referer := cfg.Referer
	if referer == "" {
		referer = DefaultReferer
	}
	title := cfg.AppTitle
	if title == "" {
		title = DefaultAppTitle
	}
	h.Set("HTTP-Referer", referer)
	h.Set("X-Title", title)
}
