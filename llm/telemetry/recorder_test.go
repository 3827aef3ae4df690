package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/genflow/llm"
)

type captureSubmitter struct {
	mu     sync.Mutex
	events []Event
	reject bool
}

func (c *captureSubmitter) Submit(e Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reject {
		return false
	}
	c.events = append(c.events, e)
	return true
}

func (c *captureSubmitter) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

type panicSubmitter struct{}

func (panicSubmitter) Submit(Event) bool { panic("boom") }

func testContext(streaming bool) *llm.RequestContext {
	rc := llm.NewRequestContext("req-1", "m", "deepseek", "api-key", streaming)
	rc.Finish()
	return rc
}

func TestRecorder_LogSuccess(t *testing.T) {
	sub := &captureSubmitter{}
	r := NewRecorder(sub, zaptest.NewLogger(t))

	resp := &llm.GenerateResponse{
		Candidates:    []llm.Candidate{{FinishReason: llm.FinishReasonStop}},
		UsageMetadata: &llm.UsageMetadata{PromptTokenCount: 3, TotalTokenCount: 5},
	}
	r.LogSuccess(testContext(false), resp, "wire-req", "wire-resp")

	events := sub.all()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, KindSuccess, e.Kind)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "deepseek", e.Provider)
	assert.Equal(t, "api-key", e.AuthType)
	assert.Equal(t, "wire-req", e.Request)
	assert.Equal(t, "wire-resp", e.RawResponse)
	assert.Equal(t, llm.FinishReasonStop, e.FinishReason)
	assert.Equal(t, 5, e.Usage.TotalTokenCount)
	assert.False(t, e.UsageEstimated)
	assert.False(t, e.Timestamp.IsZero())
}

func TestRecorder_LogStreamingSuccess(t *testing.T) {
	sub := &captureSubmitter{}
	r := NewRecorder(sub, nil)

	rc := testContext(true)
	rc.EstimatedUsage = &llm.UsageMetadata{PromptTokenCount: 7, TotalTokenCount: 9}
	chunks := []*llm.GenerateResponse{
		{Candidates: []llm.Candidate{{Content: llm.Content{Parts: []llm.Part{llm.NewTextPart("a")}}}}},
		{Candidates: []llm.Candidate{{FinishReason: llm.FinishReasonMaxTokens}}},
	}
	r.LogStreamingSuccess(rc, chunks, "wire-req", []any{"c1", "c2", "c3"})

	events := sub.all()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, KindStreamSuccess, e.Kind)
	assert.True(t, e.Streaming)
	assert.Len(t, e.Chunks, 2)
	assert.Len(t, e.RawChunks, 3)
	assert.Equal(t, llm.FinishReasonMaxTokens, e.FinishReason)
	require.NotNil(t, e.Usage)
	assert.True(t, e.UsageEstimated)
	assert.Equal(t, 9, e.Usage.TotalTokenCount)
}

func TestRecorder_LogError(t *testing.T) {
	sub := &captureSubmitter{}
	r := NewRecorder(sub, nil)

	err := llm.StatusError(429, "slow down", []byte(`{}`))
	r.LogError(testContext(false), err, nil)

	events := sub.all()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, KindError, e.Kind)
	assert.Equal(t, llm.ErrUpstream, e.ErrorKind)
	assert.Equal(t, 429, e.HTTPStatus)
	assert.True(t, e.Retryable)
	assert.Contains(t, e.ErrorMessage, "slow down")
}

func TestRecorder_NeverPanics(t *testing.T) {
	r := NewRecorder(panicSubmitter{}, zaptest.NewLogger(t))
	assert.NotPanics(t, func() {
		r.LogSuccess(nil, nil, nil, nil)
		r.LogStreamingSuccess(nil, nil, nil, nil)
		r.LogError(nil, nil, nil)
	})

	rejecting := NewRecorder(&captureSubmitter{reject: true}, nil)
	assert.NotPanics(t, func() { rejecting.LogError(testContext(false), assert.AnError, nil) })

	nilSink := NewRecorder(nil, nil)
	assert.NotPanics(t, func() { nilSink.LogError(testContext(false), assert.AnError, nil) })
}

func TestRecorder_Duration(t *testing.T) {
	sub := &captureSubmitter{}
	r := NewRecorder(sub, nil)
	rc := llm.NewRequestContext("r", "m", "p", "", false)
	time.Sleep(2 * time.Millisecond)
	rc.Finish()

	r.LogError(rc, assert.AnError, nil)
	assert.Equal(t, rc.Duration, sub.all()[0].Duration)
	assert.Positive(t, rc.Duration)
}

var _ Logger = (*Recorder)(nil)
var _ Logger = NopLogger{}
