package providers

import (
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/genflow/llm"
)

// SamplingParams are provider-level sampling overrides. Non-nil fields win
// over the request's values.
type SamplingParams struct {
	Temperature       *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	MaxTokens         *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	PresencePenalty   *float64 `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`
	FrequencyPenalty  *float64 `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty" yaml:"repetition_penalty,omitempty"`
	Stop              []string `json:"stop,omitempty" yaml:"stop,omitempty"`
}

// Config describes one backend: address, credential, extra headers and
// timeout. Strategy selection is a pure function of it.
type Config struct {
	// Name is an optional explicit backend id ("azure", "dashscope", ...).
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
	AuthType string `json:"auth_type,omitempty" yaml:"auth_type,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`

	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// MaxRetries bounds transport retries of failed connections. Responses
	// with a status are never retried and the pipeline itself never retries.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`

	Sampling *SamplingParams `json:"sampling,omitempty" yaml:"sampling,omitempty"`

	// Backend specific knobs.
	APIVersion         string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Referer            string `json:"referer,omitempty" yaml:"referer,omitempty"`
	AppTitle           string `json:"app_title,omitempty" yaml:"app_title,omitempty"`
	UserAgent          string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	SessionID          string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	EnableCacheControl bool   `json:"enable_cache_control,omitempty" yaml:"enable_cache_control,omitempty"`
}

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 120 * time.Second

// Host returns the lower-cased host of BaseURL, or "" when it cannot be parsed.
func (c Config) Host() string {
	u, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// NameIs reports whether the explicit backend name equals one of names.
func (c Config) NameIs(names ...string) bool {
	n := strings.ToLower(strings.TrimSpace(c.Name))
	for _, name := range names {
		if n == name {
			return true
		}
	}
	return false
}

// EffectiveTimeout returns Timeout or DefaultTimeout.
func (c Config) EffectiveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Validate checks the fields every backend needs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return llm.NewError(llm.ErrConfiguration, "base url is required").WithProvider(c.Name)
	}
	u, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return llm.Errorf(llm.ErrConfiguration, "invalid base url %q", c.BaseURL).WithProvider(c.Name).WithCause(err)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return llm.NewError(llm.ErrConfiguration, "api key is required").WithProvider(c.Name)
	}
	if c.Timeout < 0 {
		return llm.Errorf(llm.ErrConfiguration, "timeout must not be negative, got %s", c.Timeout).WithProvider(c.Name)
	}
	return nil
}
