package telemetry

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
)

// Submitter accepts events. *Reporter implements it.
type Submitter interface {
	Submit(Event) bool
}

// Recorder implements Logger by turning each call into an Event and
// handing it to a Submitter.
type Recorder struct {
	sink   Submitter
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder. A nil logger is replaced by a no-op one.
func NewRecorder(sink Submitter, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		sink:   sink,
		logger: logger.With(zap.String("component", "telemetry_recorder")),
		now:    time.Now,
	}
}

// LogSuccess records a completed single-shot call.
func (r *Recorder) LogSuccess(rc *llm.RequestContext, resp *llm.GenerateResponse, backendReq, backendResp any) {
	defer r.recover("LogSuccess")

	e := r.base(KindSuccess, rc)
	e.Request = backendReq
	e.Response = resp
	e.RawResponse = backendResp
	e.FinishReason = resp.FinishReason()
	if resp.HasUsage() {
		e.Usage = resp.UsageMetadata
	}
	r.fillEstimate(&e, rc)
	r.submit(e)
}

// LogStreamingSuccess records a stream that ran to completion.
func (r *Recorder) LogStreamingSuccess(rc *llm.RequestContext, chunks []*llm.GenerateResponse, backendReq any, backendChunks []any) {
	defer r.recover("LogStreamingSuccess")

	e := r.base(KindStreamSuccess, rc)
	e.Request = backendReq
	e.Chunks = chunks
	e.RawChunks = backendChunks
	for i := len(chunks) - 1; i >= 0; i-- {
		if e.Usage == nil && chunks[i].HasUsage() {
			e.Usage = chunks[i].UsageMetadata
		}
		if e.FinishReason == llm.FinishReasonUnspecified {
			e.FinishReason = chunks[i].FinishReason()
		}
	}
	r.fillEstimate(&e, rc)
	r.submit(e)
}

// LogError records a failed call.
func (r *Recorder) LogError(rc *llm.RequestContext, err error, backendReq any) {
	defer r.recover("LogError")

	e := r.base(KindError, rc)
	e.Request = backendReq
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	if le, ok := llm.AsError(err); ok {
		e.ErrorKind = le.Kind
		e.HTTPStatus = le.HTTPStatus
		e.Retryable = le.Retryable
	}
	r.submit(e)
}

func (r *Recorder) base(kind Kind, rc *llm.RequestContext) Event {
	e := Event{Kind: kind, Timestamp: r.now()}
	if rc != nil {
		e.RequestID = rc.RequestID
		e.Model = rc.Model
		e.Provider = rc.Provider
		e.AuthType = rc.AuthType
		e.Streaming = rc.Streaming
		e.Duration = rc.Elapsed()
	}
	return e
}

func (r *Recorder) fillEstimate(e *Event, rc *llm.RequestContext) {
	if e.Usage == nil && rc != nil && rc.EstimatedUsage != nil {
		e.Usage = rc.EstimatedUsage
		e.UsageEstimated = true
	}
}

func (r *Recorder) submit(e Event) {
	if r.sink == nil {
		return
	}
	if !r.sink.Submit(e) {
		r.logger.Debug("telemetry event dropped",
			zap.String("kind", string(e.Kind)),
			zap.String("request_id", e.RequestID))
	}
}

func (r *Recorder) recover(op string) {
	if v := recover(); v != nil {
		r.logger.Error("telemetry panic recovered", zap.String("op", op), zap.Any("panic", v))
	}
}
