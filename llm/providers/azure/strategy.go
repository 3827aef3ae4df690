package azure

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
	"github.com/BaSui01/genflow/llm/providers/openaicompat"
)

// Name is the strategy id.
const Name = "azure"

// DefaultAPIVersion is used when the config does not pin one.
const DefaultAPIVersion = "2024-10-21"

// Match selects Azure OpenAI by name or by its resource hosts.
var Match = providers.HostMatcher([]string{Name, "azure-openai"}, "openai.azure.com", "cognitiveservices.azure.com")

// Strategy is the Azure OpenAI backend: api-key auth, deployment paths and
// lower-cased model ids.
type Strategy struct {
	*openaicompat.Strategy
}

// New creates the Azure strategy.
func New(cfg providers.Config, logger *zap.Logger) *Strategy {
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	return &Strategy{
		Strategy: openaicompat.New(cfg, openaicompat.Options{
			Name:         Name,
			PathForModel: deploymentPath,
			Query:        url.Values{"api-version": {version}},
			AuthHeaders:  apiKeyHeaders,
			RequestHook:  normalizeModel,
			Logger:       logger,
		}),
	}
}

// Entry returns the registry entry for Azure.
func Entry(logger *zap.Logger) providers.Entry {
	return providers.Entry{
		Name:  Name,
		Match: Match,
		New: func(cfg providers.Config) (providers.Strategy, error) {
			return New(cfg, logger), nil
		},
	}
}

func apiKeyHeaders(h http.Header, cfg providers.Config) {
	h.Set("api-key", strings.TrimSpace(cfg.APIKey))
	h.Set("Content-Type", "application/json")
}

func deploymentPath(model string) string {
	return "/openai/deployments/" + url.PathEscape(model) + "/chat/completions"
}

// normalizeModel lower-cases the deployment id; Azure deployment names are
// case-insensitive but the routing layer is not.
func normalizeModel(req *providers.ChatCompletionRequest, _ string) error {
	req.Model = strings.ToLower(strings.TrimSpace(req.Model))
	if req.Model == "" {
		return llm.NewError(llm.ErrConfiguration, "azure requires a deployment model id")
	}
	return nil
}
