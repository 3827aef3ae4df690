package openaicompat

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

// Name is the id of the default bearer-token strategy.
const Name = "openai"

// DefaultUserAgent is sent when the config does not set one.
const DefaultUserAgent = "genflow-go/1.0"

// Options customise the shared strategy for backends that embed it.
// Each hook is optional.
type Options struct {
	// Name overrides the strategy id. Defaults to Name.
	Name string

	EndpointPath string
	PathForModel func(model string) string
	Query        url.Values

	// AuthHeaders replaces the default bearer token header.
	AuthHeaders func(h http.Header, cfg providers.Config)
	// HeaderHook adds backend-specific headers after auth. Custom headers
	// from the config are applied after the hook.
	HeaderHook func(h http.Header, cfg providers.Config)
	// RequestHook adjusts the cloned request. It may return an error to
	// reject content the backend cannot take.
	RequestHook func(req *providers.ChatCompletionRequest, requestID string) error

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Strategy is the default OpenAI-compatible backend strategy. Other
// backends embed it and only supply Options.
type Strategy struct {
	Cfg  providers.Config
	Opts Options
}

var _ providers.Strategy = (*Strategy)(nil)

// New creates the default strategy.
func New(cfg providers.Config, opts Options) *Strategy {
	if opts.Name == "" {
		opts.Name = Name
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Strategy{Cfg: cfg, Opts: opts}
}

// Entry returns the fallback registry entry. The strategy is labelled with
// the config's explicit name when one is set, so generic OpenAI-compatible
// backends (grok, kimi, glm, ...) keep their own provider label.
func Entry(logger *zap.Logger) providers.Entry {
	return providers.Entry{
		Name: Name,
		New: func(cfg providers.Config) (providers.Strategy, error) {
			return New(cfg, Options{
				Name:   strings.ToLower(strings.TrimSpace(cfg.Name)),
				Logger: logger,
			}), nil
		},
	}
}

// Name returns the strategy id.
func (s *Strategy) Name() string { return s.Opts.Name }

// BuildHeaders returns auth, user agent, backend and custom headers, in that
// order of precedence from lowest to highest.
func (s *Strategy) BuildHeaders() http.Header {
	h := http.Header{}
	if s.Opts.AuthHeaders != nil {
		s.Opts.AuthHeaders(h, s.Cfg)
	} else {
		providers.BearerTokenHeaders(h, strings.TrimSpace(s.Cfg.APIKey))
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	ua := s.Cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	h.Set("User-Agent", ua)
	if s.Opts.HeaderHook != nil {
		s.Opts.HeaderHook(h, s.Cfg)
	}
	providers.ApplyCustomHeaders(h, s.Cfg.Headers)
	return h
}

// BuildClient returns a transport bound to the config.
func (s *Strategy) BuildClient() (providers.Transport, error) {
	return NewClient(ClientConfig{
		Provider:     s.Name(),
		BaseURL:      s.Cfg.BaseURL,
		EndpointPath: s.Opts.EndpointPath,
		PathForModel: s.Opts.PathForModel,
		Query:        s.Opts.Query,
		Headers:      s.BuildHeaders(),
		Timeout:      s.Cfg.EffectiveTimeout(),
		MaxRetries:   s.Cfg.MaxRetries,
		HTTPClient:   s.Opts.HTTPClient,
		Logger:       s.Opts.Logger,
	})
}

// BuildRequest clones req, fills a missing model from the config and runs
// the backend hook.
func (s *Strategy) BuildRequest(req *providers.ChatCompletionRequest, requestID string) (*providers.ChatCompletionRequest, error) {
	if req == nil {
		return nil, llm.NewError(llm.ErrConversion, "nil chat completion request").WithProvider(s.Name())
	}
	out := req.Clone()
	if out.Model == "" {
		out.Model = s.Cfg.Model
	}
	if s.Opts.RequestHook != nil {
		if err := s.Opts.RequestHook(out, requestID); err != nil {
			if e, ok := llm.AsError(err); ok {
				if e.Provider == "" {
					e.Provider = s.Name()
				}
				return nil, e
			}
			return nil, llm.NewError(llm.ErrConversion, "adapt request").WithProvider(s.Name()).WithCause(err)
		}
	}
	return out, nil
}
