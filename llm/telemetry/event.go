package telemetry

import (
	"time"

	"github.com/BaSui01/genflow/llm"
)

// Kind 事件类型
type Kind string

const (
	KindSuccess       Kind = "success"
	KindStreamSuccess Kind = "stream_success"
	KindError         Kind = "error"
)

// Event 是交给 Sink 的结构化遥测记录。Request / RawResponse / RawChunks
// 是后端线格式的原始值，对遥测而言不透明。
type Event struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	RequestID string        `json:"request_id"`
	Model     string        `json:"model"`
	Provider  string        `json:"provider"`
	AuthType  string        `json:"auth_type,omitempty"`
	Streaming bool          `json:"streaming"`
	Duration  time.Duration `json:"duration"`

	Request     any                     `json:"request,omitempty"`
	Response    *llm.GenerateResponse   `json:"response,omitempty"`
	RawResponse any                     `json:"raw_response,omitempty"`
	Chunks      []*llm.GenerateResponse `json:"chunks,omitempty"`
	RawChunks   []any                   `json:"raw_chunks,omitempty"`

	Usage          *llm.UsageMetadata `json:"usage,omitempty"`
	UsageEstimated bool               `json:"usage_estimated,omitempty"`
	FinishReason   llm.FinishReason   `json:"finish_reason,omitempty"`

	ErrorKind    llm.ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	HTTPStatus   int           `json:"http_status,omitempty"`
	Retryable    bool          `json:"retryable,omitempty"`
}

// Logger 是管线使用的遥测契约。实现不得 panic，也不得返回错误：
// 遥测失败绝不能让调用失败。
type Logger interface {
	LogSuccess(rc *llm.RequestContext, resp *llm.GenerateResponse, backendReq, backendResp any)
	LogStreamingSuccess(rc *llm.RequestContext, chunks []*llm.GenerateResponse, backendReq any, backendChunks []any)
	LogError(rc *llm.RequestContext, err error, backendReq any)
}

// NopLogger 丢弃所有事件。
type NopLogger struct{}

func (NopLogger) LogSuccess(*llm.RequestContext, *llm.GenerateResponse, any, any)              {}
func (NopLogger) LogStreamingSuccess(*llm.RequestContext, []*llm.GenerateResponse, any, []any) {}
func (NopLogger) LogError(*llm.RequestContext, error, any)                                     {}
