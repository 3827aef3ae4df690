package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

func TestExecuteStream_MergesFinishAndUsage(t *testing.T) {
	srv, seen := sseBackend(t,
		contentEvent("Hello"),
		finishEvent("stop"),
		usageEvent(7, 3),
	)
	p, tl := newTestPipeline(t, testConfig(srv.URL))

	s, err := p.ExecuteStream(context.Background(), userRequest("hi"), "req-1")
	require.NoError(t, err)
	chunks, err := llm.Collect(s)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Hello", chunks[0].Text())
	assert.Equal(t, llm.FinishReasonUnspecified, chunks[0].FinishReason())
	assert.Nil(t, chunks[0].UsageMetadata)

	last := chunks[1]
	assert.Equal(t, llm.FinishReasonStop, last.FinishReason())
	require.NotNil(t, last.UsageMetadata)
	assert.Equal(t, 7, last.UsageMetadata.PromptTokenCount)
	assert.Equal(t, 3, last.UsageMetadata.CandidatesTokenCount)
	assert.Equal(t, 10, last.UsageMetadata.TotalTokenCount)

	body := seen.request()
	assert.True(t, body.Stream)
	require.NotNil(t, body.StreamOptions)
	assert.True(t, body.StreamOptions.IncludeUsage)

	success := tl.byKind("stream_success")
	require.Len(t, success, 1)
	assert.Len(t, success[0].chunks, 2)
	assert.Len(t, success[0].rawChunks, 3, "every backend chunk is kept for debugging")
	assert.True(t, success[0].rc.Streaming)
	assert.Nil(t, success[0].rc.EstimatedUsage)
	assert.Empty(t, tl.byKind("error"))
}

func TestExecuteStream_FinishWithUsageInSameChunk(t *testing.T) {
	srv, _ := sseBackend(t,
		contentEvent("a"),
		`{"id":"c","choices":[{"index":0,"delta":{},"finish_reason":"length"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`,
	)
	p, _ := newTestPipeline(t, testConfig(srv.URL))

	s, err := p.ExecuteStream(context.Background(), userRequest("hi"), "req-1")
	require.NoError(t, err)
	chunks, err := llm.Collect(s)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, llm.FinishReasonMaxTokens, chunks[1].FinishReason())
	assert.Equal(t, 2, chunks[1].UsageMetadata.TotalTokenCount)
}

func TestExecuteStream_FiltersEmptyChunks(t *testing.T) {
	srv, _ := sseBackend(t,
		roleOnlyEvent(),
		`{"id":"c","choices":[{"index":0,"delta":{"content":""}}]}`,
		contentEvent("x"),
		`{"id":"c","choices":[]}`,
		finishEvent("stop"),
	)
	p, tl := newTestPipeline(t, testConfig(srv.URL))

	s, err := p.ExecuteStream(context.Background(), userRequest("hi"), "req-1")
	require.NoError(t, err)
	chunks, err := llm.Collect(s)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.False(t, c.IsEmpty())
	}
	assert.Equal(t, "x", chunks[0].Text())
	assert.Equal(t, llm.FinishReasonStop, chunks[1].FinishReason())

	success := tl.byKind("stream_success")
	require.Len(t, success, 1)
	assert.Len(t, success[0].rawChunks, 5)
	require.NotNil(t, success[0].rc.EstimatedUsage, "no usage reported, so it is estimated")
}

func TestExecuteStream_StateIsolation(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// First stream: a tool call whose arguments never complete.
			writeSSE(w,
				toolCallEvent("call_a", "first", `{"a":`),
				toolArgsEvent(`1,"leak":`),
			)
			<-r.Context().Done()
			return
		}
		writeSSE(w,
			toolCallEvent("call_b", "second", `{"b":`),
			toolArgsEvent(`2}`),
			finishEvent("tool_calls"),
		)
	}))
	t.Cleanup(srv.Close)
	p, _ := newTestPipeline(t, testConfig(srv.URL))

	first, err := p.ExecuteStream(context.Background(), userRequest("one"), "req-1")
	require.NoError(t, err)
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = first.Close()
	}()
	_, err = llm.Collect(first)
	require.ErrorIs(t, err, llm.ErrStreamClosed)

	second, err := p.ExecuteStream(context.Background(), userRequest("two"), "req-2")
	require.NoError(t, err)
	chunks, err := llm.Collect(second)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	calls2 := chunks[0].FunctionCalls()
	require.Len(t, calls2, 1)
	assert.Equal(t, "call_b", calls2[0].ID)
	assert.Equal(t, "second", calls2[0].Name)
	assert.Equal(t, map[string]any{"b": float64(2)}, calls2[0].Args)
	assert.Equal(t, llm.FinishReasonToolCall, chunks[0].FinishReason())
}

func TestExecuteStream_ReusedToolIndex(t *testing.T) {
	// Both calls use index 0; the continuation fragments carry no id.
	srv, _ := sseBackend(t,
		toolCallEvent("call_a", "first", `{"n":`),
		toolArgsEvent(`1}`),
		toolCallEvent("call_b", "second", `{"m":`),
		toolArgsEvent(`2}`),
		finishEvent("tool_calls"),
	)
	p, _ := newTestPipeline(t, testConfig(srv.URL))

	s, err := p.ExecuteStream(context.Background(), userRequest("hi"), "req-1")
	require.NoError(t, err)
	chunks, err := llm.Collect(s)
	require.NoError(t, err)

	var calls []*llm.FunctionCall
	for _, c := range chunks {
		calls = append(calls, c.FunctionCalls()...)
	}
	require.Len(t, calls, 2)
	assert.Equal(t, "call_a", calls[0].ID)
	assert.Equal(t, map[string]any{"n": float64(1)}, calls[0].Args)
	assert.Equal(t, "call_b", calls[1].ID)
	assert.Equal(t, map[string]any{"m": float64(2)}, calls[1].Args)
}

func TestExecuteStream_ToolCallWithoutFinishIsFlushed(t *testing.T) {
	srv, _ := sseBackend(t,
		toolCallEvent("call_1", "lookup", `{"q":"go"}`),
	)
	p, _ := newTestPipeline(t, testConfig(srv.URL))

	s, err := p.ExecuteStream(context.Background(), userRequest("hi"), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", s.RequestID())
	chunks, err := llm.Collect(s)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	calls := chunks[0].FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "go", calls[0].Args["q"])
}

func TestExecuteStream_MidStreamTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, contentEvent("one"), contentEvent("two"))
		// Drop the connection without terminating the chunked body.
		panic(http.ErrAbortHandler)
	}))
	t.Cleanup(srv.Close)
	p, tl := newTestPipeline(t, testConfig(srv.URL))

	s, err := p.ExecuteStream(context.Background(), userRequest("hi"), "req-1")
	require.NoError(t, err)

	var got []string
	var streamErr error
	for chunk, err := range s.Chunks() {
		if err != nil {
			streamErr = err
			break
		}
		got = append(got, chunk.Text())
	}

	assert.Equal(t, []string{"one", "two"}, got, "chunks before the failure stay delivered")
	require.Error(t, streamErr)
	assert.True(t, llm.IsKind(streamErr, llm.ErrTransport), "got %v", streamErr)
	le, _ := llm.AsError(streamErr)
	assert.Equal(t, "req-1", le.RequestID)

	assert.Len(t, tl.byKind("error"), 1)
	assert.Empty(t, tl.byKind("stream_success"))
}

func TestExecuteStream_ErrorRepeatsAfterFailure(t *testing.T) {
	srv, _ := sseBackend(t, `{not json`)
	p, tl := newTestPipeline(t, testConfig(srv.URL))

	s, err := p.ExecuteStream(context.Background(), userRequest("hi"), "req-1")
	require.NoError(t, err)

	_, err1 := s.Recv()
	_, err2 := s.Recv()
	assert.True(t, llm.IsKind(err1, llm.ErrStreamIntegrity))
	assert.Equal(t, err1, err2)
	assert.Len(t, tl.byKind("error"), 1)
	assert.NoError(t, s.Close())
	assert.Equal(t, 1, tl.count())
}

func TestExecuteStream_CloseReleasesConnection(t *testing.T) {
	released := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, contentEvent("partial"))
		<-r.Context().Done()
		close(released)
	}))
	t.Cleanup(srv.Close)
	p, tl := newTestPipeline(t, testConfig(srv.URL))

	s, err := p.ExecuteStream(context.Background(), userRequest("hi"), "req-1")
	require.NoError(t, err)

	chunk, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", chunk.Text())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("backend connection was not released")
	}

	_, err = s.Recv()
	assert.ErrorIs(t, err, llm.ErrStreamClosed)
	assert.Empty(t, tl.byKind("stream_success"))
	assert.Empty(t, tl.byKind("error"))
}

func TestExecuteStream_OpenFailure(t *testing.T) {
	srv, _ := jsonBackend(t, http.StatusServiceUnavailable, `{"error":{"message":"overloaded"}}`)
	p, tl := newTestPipeline(t, testConfig(srv.URL))

	s, err := p.ExecuteStream(context.Background(), userRequest("hi"), "req-1")
	assert.Nil(t, s)
	require.Error(t, err)
	assert.True(t, llm.IsKind(err, llm.ErrUpstream))
	assert.True(t, llm.IsRetryable(err))

	errs := tl.byKind("error")
	require.Len(t, errs, 1)
	wire, ok := errs[0].backendReq.(*providers.ChatCompletionRequest)
	require.True(t, ok)
	assert.True(t, wire.Stream)
}

func TestExecuteStream_CallerCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, contentEvent("a"))
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	p, tl := newTestPipeline(t, testConfig(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := p.ExecuteStream(ctx, userRequest("hi"), "req-1")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Recv()
	require.NoError(t, err)
	cancel()
	_, err = s.Recv()
	assert.True(t, llm.IsKind(err, llm.ErrCanceled), "got %v", err)
	assert.False(t, errors.Is(err, io.EOF))
	assert.Len(t, tl.byKind("error"), 1)
}

// countingTransport fails every request that reaches the default transport.
type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, errors.New("unexpected outbound request")
}

func TestExecuteStream_EstimateDoesNoNetworkIO(t *testing.T) {
	ct := &countingTransport{}
	orig := http.DefaultTransport
	http.DefaultTransport = ct
	t.Cleanup(func() { http.DefaultTransport = orig })

	srv, _ := sseBackend(t, contentEvent("hello"), finishEvent("stop"))
	cfg := testConfig(srv.URL)
	cfg.Model = "gpt-4o-mini"
	tl := &captureLogger{}
	// No WithTokenizer: the per-model default is used.
	p, err := New(cfg, WithTelemetry(tl), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	s, err := p.ExecuteStream(context.Background(), userRequest("hi"), "req-1")
	require.NoError(t, err)
	_, err = llm.Collect(s)
	require.NoError(t, err)

	assert.Zero(t, ct.calls.Load())
	events := tl.byKind("stream_success")
	require.Len(t, events, 1)
	require.NotNil(t, events[0].rc.EstimatedUsage)
	assert.Positive(t, events[0].rc.EstimatedUsage.PromptTokenCount)
}
