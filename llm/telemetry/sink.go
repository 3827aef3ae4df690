package telemetry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/genflow/internal/metrics"
)

// Sink receives batches of events. Implementations must be safe for
// concurrent use; the Reporter calls every sink in its own goroutine.
type Sink interface {
	Write(ctx context.Context, events []Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, events []Event) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, events []Event) error { return f(ctx, events) }

// MultiSink writes to each sink in order and joins their errors.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(ctx context.Context, events []Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// Zap
// =============================================================================

// ZapSink writes one structured log line per event.
type ZapSink struct {
	logger   *zap.Logger
	payloads bool
}

// ZapSinkOption configures a ZapSink.
type ZapSinkOption func(*ZapSink)

// WithPayloads adds requests, responses and raw chunks at debug level.
func WithPayloads(enabled bool) ZapSinkOption {
	return func(s *ZapSink) { s.payloads = enabled }
}

// NewZapSink creates a ZapSink.
func NewZapSink(logger *zap.Logger, opts ...ZapSinkOption) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ZapSink{logger: logger.With(zap.String("component", "telemetry"))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write implements Sink.
func (s *ZapSink) Write(_ context.Context, events []Event) error {
	for i := range events {
		e := &events[i]
		fields := []zap.Field{
			zap.String("kind", string(e.Kind)),
			zap.String("request_id", e.RequestID),
			zap.String("provider", e.Provider),
			zap.String("model", e.Model),
			zap.Bool("streaming", e.Streaming),
			zap.Duration("duration", e.Duration),
		}
		if e.AuthType != "" {
			fields = append(fields, zap.String("auth_type", e.AuthType))
		}
		if e.Usage != nil {
			fields = append(fields,
				zap.Int("prompt_tokens", e.Usage.PromptTokenCount),
				zap.Int("completion_tokens", e.Usage.CandidatesTokenCount),
				zap.Int("total_tokens", e.Usage.TotalTokenCount),
				zap.Bool("usage_estimated", e.UsageEstimated))
		}
		if e.Kind == KindStreamSuccess {
			fields = append(fields,
				zap.Int("chunks", len(e.Chunks)),
				zap.Int("raw_chunks", len(e.RawChunks)))
		}

		if e.Kind == KindError {
			fields = append(fields,
				zap.String("error_kind", string(e.ErrorKind)),
				zap.String("error", e.ErrorMessage),
				zap.Int("http_status", e.HTTPStatus),
				zap.Bool("retryable", e.Retryable))
			s.logger.Warn("generation failed", fields...)
		} else {
			fields = append(fields, zap.String("finish_reason", string(e.FinishReason)))
			s.logger.Info("generation completed", fields...)
		}

		if s.payloads && s.logger.Core().Enabled(zapcore.DebugLevel) {
			s.logger.Debug("generation payloads",
				zap.String("request_id", e.RequestID),
				zap.Any("request", e.Request),
				zap.Any("response", e.Response),
				zap.Any("raw_response", e.RawResponse),
				zap.Any("chunks", e.Chunks),
				zap.Any("raw_chunks", e.RawChunks))
		}
	}
	return nil
}

// =============================================================================
// Prometheus
// =============================================================================

// CallRecorder is the slice of *metrics.Collector used by MetricsSink.
type CallRecorder interface {
	RecordRequest(provider, model string, streaming bool, status string, duration time.Duration, tokens metrics.Tokens, cost float64)
	RecordError(provider, kind string)
	RecordStreamChunks(provider string, n int)
}

// Pricer estimates the cost of a call. *observability.CostCalculator implements it.
type Pricer interface {
	Calculate(provider, model string, tokensInput, tokensOutput int) float64
}

// MetricsSink records events on the Prometheus collector.
type MetricsSink struct {
	rec    CallRecorder
	prices Pricer
}

// NewMetricsSink creates a MetricsSink. prices may be nil.
func NewMetricsSink(rec CallRecorder, prices Pricer) *MetricsSink {
	return &MetricsSink{rec: rec, prices: prices}
}

// Write implements Sink.
func (s *MetricsSink) Write(_ context.Context, events []Event) error {
	for i := range events {
		e := &events[i]
		if e.Kind == KindError {
			s.rec.RecordRequest(e.Provider, e.Model, e.Streaming, "error", e.Duration, metrics.Tokens{}, 0)
			s.rec.RecordError(e.Provider, string(e.ErrorKind))
			continue
		}

		var tokens metrics.Tokens
		if u := e.Usage; u != nil {
			tokens = metrics.Tokens{
				Prompt:     u.PromptTokenCount,
				Completion: u.CandidatesTokenCount,
				Cached:     u.CachedContentTokenCount,
				Thoughts:   u.ThoughtsTokenCount,
			}
		}
		var cost float64
		if s.prices != nil {
			cost = s.prices.Calculate(e.Provider, e.Model, tokens.Prompt, tokens.Completion)
		}
		s.rec.RecordRequest(e.Provider, e.Model, e.Streaming, "success", e.Duration, tokens, cost)
		if e.Kind == KindStreamSuccess {
			s.rec.RecordStreamChunks(e.Provider, len(e.Chunks))
		}
	}
	return nil
}
