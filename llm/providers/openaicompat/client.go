package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/internal/tlsutil"
	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

// DefaultEndpointPath is appended to the base URL for chat completions.
const DefaultEndpointPath = "/chat/completions"

// ClientConfig binds a Client to one backend.
type ClientConfig struct {
	// Provider labels errors and log lines.
	Provider string
	BaseURL  string
	// EndpointPath defaults to DefaultEndpointPath.
	EndpointPath string
	// PathForModel, when set, replaces EndpointPath with a path derived from
	// the request model (Azure deployments).
	PathForModel func(model string) string
	// Query is merged into the endpoint URL (e.g. api-version).
	Query url.Values
	// Headers are sent with every request.
	Headers http.Header
	Timeout time.Duration
	// MaxRetries bounds retries of failed connections, where no response
	// status arrived. Status responses (429, 5xx) are never retried.
	MaxRetries int
	Retry      RetryPolicy

	// HTTPClient overrides the hardened default client.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is the OpenAI-compatible chat-completion transport.
type Client struct {
	cfg    ClientConfig
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

var _ providers.Transport = (*Client)(nil)

// NewClient creates a transport. It fails only on an unusable base URL.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = DefaultEndpointPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = providers.DefaultTimeout
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, llm.Errorf(llm.ErrConfiguration, "invalid base url %q", cfg.BaseURL).
			WithProvider(cfg.Provider).WithCause(err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Accept-Encoding is negotiated by the client so brotli can be decoded too.
		httpClient = tlsutil.SecureHTTPClient(cfg.Timeout, tlsutil.TransportOptions{DisableCompression: true})
	}

	return &Client{
		cfg:    cfg,
		base:   base,
		http:   httpClient,
		logger: cfg.Logger.With(zap.String("component", "openaicompat"), zap.String("provider", cfg.Provider)),
	}, nil
}

// Endpoint returns the chat-completion URL used for model.
func (c *Client) Endpoint(model string) string {
	path := c.cfg.EndpointPath
	if c.cfg.PathForModel != nil {
		path = c.cfg.PathForModel(model)
	}
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(c.cfg.Query) > 0 {
		q := u.Query()
		for k, vs := range c.cfg.Query {
			for _, v := range vs {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Headers returns a copy of the headers sent with every request.
func (c *Client) Headers() http.Header { return c.cfg.Headers.Clone() }

// CreateChatCompletion performs a non-streaming call.
func (c *Client) CreateChatCompletion(ctx context.Context, req *providers.ChatCompletionRequest) (*providers.ChatCompletionResponse, error) {
	body := req.Clone()
	body.Stream = false
	body.StreamOptions = nil

	resp, err := c.do(ctx, body)
	if err != nil {
		return nil, err
	}
	defer providers.SafeCloseBody(resp.Body)

	reader, err := decodeBody(resp)
	if err != nil {
		return nil, llm.NewError(llm.ErrStreamIntegrity, "decode response body").WithProvider(c.cfg.Provider).WithCause(err)
	}
	defer reader.Close()

	var out providers.ChatCompletionResponse
	if err := json.NewDecoder(reader).Decode(&out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, llm.NewError(llm.ErrStreamIntegrity, "malformed chat completion response").
			WithProvider(c.cfg.Provider).WithCause(err)
	}
	return &out, nil
}

// CreateChatCompletionStream opens a streaming call. The returned reader
// owns the response body.
func (c *Client) CreateChatCompletionStream(ctx context.Context, req *providers.ChatCompletionRequest) (providers.ChunkReader, error) {
	body := req.Clone()
	body.Stream = true
	if body.StreamOptions == nil {
		body.StreamOptions = &providers.StreamOptions{IncludeUsage: true}
	}

	resp, err := c.do(ctx, body)
	if err != nil {
		return nil, err
	}
	reader, err := decodeBody(resp)
	if err != nil {
		providers.SafeCloseBody(resp.Body)
		return nil, llm.NewError(llm.ErrStreamIntegrity, "decode stream body").WithProvider(c.cfg.Provider).WithCause(err)
	}
	return newSSEReader(ctx, reader, c.cfg.Provider), nil
}

// do sends the request and returns a response with a success status.
func (c *Client) do(ctx context.Context, body *providers.ChatCompletionRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, llm.NewError(llm.ErrConversion, "marshal chat completion request").
			WithProvider(c.cfg.Provider).WithCause(err)
	}

	endpoint := c.Endpoint(body.Model)
	return withRetry(ctx, c.cfg.MaxRetries, c.cfg.Retry, c.logger, func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, llm.NewError(llm.ErrConfiguration, "create request").WithProvider(c.cfg.Provider).WithCause(err)
		}
		for k, vs := range c.cfg.Headers {
			httpReq.Header[k] = append([]string(nil), vs...)
		}
		if httpReq.Header.Get("Content-Type") == "" {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		httpReq.Header.Set("Accept-Encoding", "gzip, br")
		if body.Stream {
			httpReq.Header.Set("Accept", "text/event-stream")
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &connError{err: fmt.Errorf("post %s: %w", c.cfg.Provider, err)}
		}
		if resp.StatusCode >= 400 {
			defer providers.SafeCloseBody(resp.Body)
			reader, derr := decodeBody(resp)
			if derr != nil {
				return nil, providers.MapHTTPError(resp.StatusCode, http.StatusText(resp.StatusCode), c.cfg.Provider, nil)
			}
			msg, raw := providers.ReadErrorMessage(reader)
			_ = reader.Close()
			return nil, providers.MapHTTPError(resp.StatusCode, msg, c.cfg.Provider, raw)
		}
		return resp, nil
	})
}
