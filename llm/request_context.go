package llm

import (
	"sync"
	"time"
)

// RequestContext is created once per pipeline call and discarded after
// telemetry has been recorded. Duration is written exactly once by Finish.
type RequestContext struct {
	RequestID string
	Model     string
	Provider  string
	AuthType  string
	StartTime time.Time
	Duration  time.Duration
	Streaming bool

	// EstimatedUsage is filled by the pipeline when the backend reported no
	// usage and token counts had to be estimated locally.
	EstimatedUsage *UsageMetadata

	once sync.Once
	now  func() time.Time
}

// NewRequestContext starts the clock for a call.
func NewRequestContext(requestID, model, provider, authType string, streaming bool) *RequestContext {
	return &RequestContext{
		RequestID: requestID,
		Model:     model,
		Provider:  provider,
		AuthType:  authType,
		StartTime: time.Now(),
		Streaming: streaming,
		now:       time.Now,
	}
}

// Finish records the elapsed duration. Later calls are no-ops.
func (rc *RequestContext) Finish() time.Duration {
	if rc == nil {
		return 0
	}
	rc.once.Do(func() {
		now := rc.now
		if now == nil {
			now = time.Now
		}
		rc.Duration = now().Sub(rc.StartTime)
	})
	return rc.Duration
}

// Elapsed returns the recorded duration, or the running time if the call
// has not finished yet.
func (rc *RequestContext) Elapsed() time.Duration {
	if rc == nil {
		return 0
	}
	if rc.Duration > 0 {
		return rc.Duration
	}
	return time.Since(rc.StartTime)
}
