package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
	"github.com/BaSui01/genflow/llm/tokenizer"
)

// logged is one call to captureLogger.
type logged struct {
	kind       string
	rc         *llm.RequestContext
	resp       *llm.GenerateResponse
	chunks     []*llm.GenerateResponse
	rawChunks  []any
	err        error
	backendReq any
}

// captureLogger records every telemetry call.
type captureLogger struct {
	mu     sync.Mutex
	events []logged
}

func (c *captureLogger) LogSuccess(rc *llm.RequestContext, resp *llm.GenerateResponse, backendReq, _ any) {
	c.add(logged{kind: "success", rc: rc, resp: resp, backendReq: backendReq})
}

func (c *captureLogger) LogStreamingSuccess(rc *llm.RequestContext, chunks []*llm.GenerateResponse, backendReq any, raw []any) {
	c.add(logged{kind: "stream_success", rc: rc, chunks: chunks, rawChunks: raw, backendReq: backendReq})
}

func (c *captureLogger) LogError(rc *llm.RequestContext, err error, backendReq any) {
	c.add(logged{kind: "error", rc: rc, err: err, backendReq: backendReq})
}

func (c *captureLogger) add(e logged) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureLogger) byKind(kind string) []logged {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []logged
	for _, e := range c.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (c *captureLogger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// captured is what a fake backend saw.
type captured struct {
	mu     sync.Mutex
	path   string
	header http.Header
	body   providers.ChatCompletionRequest
}

func (c *captured) record(t *testing.T, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = r.URL.Path
	c.header = r.Header.Clone()
	data, err := io.ReadAll(r.Body)
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(data, &c.body))
}

func (c *captured) request() providers.ChatCompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body
}

// jsonBackend answers every call with body.
func jsonBackend(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	seen := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.record(t, r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

// sseBackend streams events as SSE data lines followed by [DONE].
func sseBackend(t *testing.T, events ...string) (*httptest.Server, *captured) {
	t.Helper()
	seen := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.record(t, r)
		writeSSE(w, events...)
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func writeSSE(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, e := range events {
		_, _ = fmt.Fprintf(w, "data: %s\n\n", e)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Wire chunk builders.

func contentEvent(text string) string {
	return fmt.Sprintf(`{"id":"c","model":"m","choices":[{"index":0,"delta":{"content":%q}}]}`, text)
}

func finishEvent(reason string) string {
	return fmt.Sprintf(`{"id":"c","model":"m","choices":[{"index":0,"delta":{},"finish_reason":%q}]}`, reason)
}

func usageEvent(prompt, completion int) string {
	return fmt.Sprintf(`{"id":"c","model":"m","choices":[],"usage":{"prompt_tokens":%d,"completion_tokens":%d,"total_tokens":%d}}`,
		prompt, completion, prompt+completion)
}

func roleOnlyEvent() string {
	return `{"id":"c","model":"m","choices":[{"index":0,"delta":{"role":"assistant"}}]}`
}

func toolCallEvent(id, name, args string) string {
	return fmt.Sprintf(`{"id":"c","model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":%q,"type":"function","function":{"name":%q,"arguments":%q}}]}}]}`,
		id, name, args)
}

func toolArgsEvent(args string) string {
	return fmt.Sprintf(`{"id":"c","model":"m","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":%q}}]}}]}`, args)
}

func testConfig(baseURL string) providers.Config {
	return providers.Config{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "qwen-test",
		Timeout: 5 * time.Second,
	}
}

// newTestPipeline builds a pipeline with an estimator tokenizer so no
// encoding files are fetched.
func newTestPipeline(t *testing.T, cfg providers.Config, opts ...Option) (*Pipeline, *captureLogger) {
	t.Helper()
	tl := &captureLogger{}
	base := []Option{
		WithTelemetry(tl),
		WithLogger(zaptest.NewLogger(t)),
		WithTokenizer(tokenizer.NewEstimatorTokenizer("test", 0)),
	}
	p, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	return p, tl
}

func userRequest(text string) *llm.GenerateRequest {
	return &llm.GenerateRequest{Contents: []llm.Content{llm.NewUserText(text)}}
}
