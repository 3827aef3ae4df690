package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/BaSui01/genflow/llm"

// 每次管线调用使用的 span 名称。
const (
	SpanGenerate       = "genflow.generate"
	SpanGenerateStream = "genflow.generate_stream"
)

// Metrics 管线调用的 OTel 指标与追踪
type Metrics struct {
	tracer trace.Tracer
	meter  metric.Meter
	// 柜台
	requestTotal metric.Int64Counter
	tokenTotal   metric.Int64Counter
	errorTotal   metric.Int64Counter
	chunkTotal   metric.Int64Counter
	// 直方图
	requestDuration metric.Float64Histogram
	tokenCount      metric.Int64Histogram
	costPerRequest  metric.Float64Histogram
	// 进行中的调用
	activeRequests metric.Int64UpDownCounter

	costs *CostCalculator
}

// Option 配置 Metrics
type Option func(*metricsOptions)

type metricsOptions struct {
	tp    trace.TracerProvider
	mp    metric.MeterProvider
	costs *CostCalculator
}

// WithTracerProvider 使用指定的 TracerProvider 而不是全局的
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *metricsOptions) { o.tp = tp }
}

// WithMeterProvider 使用指定的 MeterProvider 而不是全局的
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *metricsOptions) { o.mp = mp }
}

// WithCostCalculator 设置成本计算器
func WithCostCalculator(c *CostCalculator) Option {
	return func(o *metricsOptions) { o.costs = c }
}

// NewMetrics 创建指标收集器
func NewMetrics(opts ...Option) (*Metrics, error) {
	o := metricsOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tp == nil {
		o.tp = otel.GetTracerProvider()
	}
	if o.mp == nil {
		o.mp = otel.GetMeterProvider()
	}
	if o.costs == nil {
		o.costs = NewCostCalculator()
	}

	meter := o.mp.Meter(instrumentationName)
	m := &Metrics{
		tracer: o.tp.Tracer(instrumentationName),
		meter:  meter,
		costs:  o.costs,
	}

	var err error

	// 请求计数
	m.requestTotal, err = meter.Int64Counter("genflow.request.total",
		metric.WithDescription("Total number of generation calls"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	// Token 计数
	m.tokenTotal, err = meter.Int64Counter("genflow.token.total",
		metric.WithDescription("Total tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	// 错误计数
	m.errorTotal, err = meter.Int64Counter("genflow.error.total",
		metric.WithDescription("Total number of classified errors"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	// 流式分片
	m.chunkTotal, err = meter.Int64Counter("genflow.stream.chunks",
		metric.WithDescription("Canonical chunks emitted by streams"),
		metric.WithUnit("{chunk}"))
	if err != nil {
		return nil, err
	}

	// 请求延迟
	m.requestDuration, err = meter.Float64Histogram("genflow.request.duration",
		metric.WithDescription("Call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30))
	if err != nil {
		return nil, err
	}

	// Token 分布
	m.tokenCount, err = meter.Int64Histogram("genflow.token.count",
		metric.WithDescription("Token count per call"),
		metric.WithUnit("{token}"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 2000, 4000, 8000, 16000, 32000))
	if err != nil {
		return nil, err
	}

	// 成本分布
	m.costPerRequest, err = meter.Float64Histogram("genflow.cost.per_request",
		metric.WithDescription("Cost per call in USD"),
		metric.WithUnit("USD"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5))
	if err != nil {
		return nil, err
	}

	// 活跃请求数
	m.activeRequests, err = meter.Int64UpDownCounter("genflow.request.active",
		metric.WithDescription("Number of calls in flight"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// CallAttrs 调用属性
type CallAttrs struct {
	RequestID string
	Provider  string
	Model     string
	AuthType  string
	Streaming bool
}

// Outcome 调用结果
type Outcome struct {
	Status           string // success、error 或 canceled
	ErrorKind        string
	TokensPrompt     int
	TokensCompletion int
	TokensCached     int
	UsageEstimated   bool
	Chunks           int
	Duration         time.Duration
}

// StartCall 开始调用追踪。nil 接收者返回原 ctx 与 noop span。
func (m *Metrics) StartCall(ctx context.Context, attrs CallAttrs) (context.Context, trace.Span) {
	if m == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	name := SpanGenerate
	if attrs.Streaming {
		name = SpanGenerateStream
	}
	ctx, span := m.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("genflow.request_id", attrs.RequestID),
			attribute.String("genflow.provider", attrs.Provider),
			attribute.String("genflow.model", attrs.Model),
			attribute.String("genflow.auth_type", attrs.AuthType),
			attribute.Bool("genflow.streaming", attrs.Streaming),
		))

	m.activeRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", attrs.Provider),
			attribute.String("model", attrs.Model)))

	return ctx, span
}

// EndCall 结束调用追踪并返回估算成本
func (m *Metrics) EndCall(ctx context.Context, span trace.Span, attrs CallAttrs, out Outcome) float64 {
	if m == nil {
		return 0
	}
	defer span.End()

	commonAttrs := []attribute.KeyValue{
		attribute.String("provider", attrs.Provider),
		attribute.String("model", attrs.Model),
		attribute.Bool("streaming", attrs.Streaming),
		attribute.String("status", out.Status),
	}

	m.activeRequests.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("provider", attrs.Provider),
			attribute.String("model", attrs.Model)))

	m.requestTotal.Add(ctx, 1, metric.WithAttributes(commonAttrs...))
	m.requestDuration.Record(ctx, out.Duration.Seconds(), metric.WithAttributes(commonAttrs...))

	// 记录 Token
	totalTokens := int64(out.TokensPrompt + out.TokensCompletion)
	if totalTokens > 0 {
		for _, t := range []struct {
			kind string
			n    int
		}{
			{"prompt", out.TokensPrompt},
			{"completion", out.TokensCompletion},
			{"cached", out.TokensCached},
		} {
			if t.n == 0 {
				continue
			}
			m.tokenTotal.Add(ctx, int64(t.n), metric.WithAttributes(
				attribute.String("provider", attrs.Provider),
				attribute.String("model", attrs.Model),
				attribute.String("type", t.kind)))
		}
		m.tokenCount.Record(ctx, totalTokens, metric.WithAttributes(commonAttrs...))
	}

	// 记录成本
	cost := m.costs.Calculate(attrs.Provider, attrs.Model, out.TokensPrompt, out.TokensCompletion)
	if cost > 0 {
		m.costPerRequest.Record(ctx, cost, metric.WithAttributes(commonAttrs...))
	}

	if attrs.Streaming && out.Chunks > 0 {
		m.chunkTotal.Add(ctx, int64(out.Chunks), metric.WithAttributes(
			attribute.String("provider", attrs.Provider)))
	}

	// 记录错误
	if out.ErrorKind != "" {
		m.errorTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", attrs.Provider),
			attribute.String("model", attrs.Model),
			attribute.String("error_kind", out.ErrorKind)))

		span.SetAttributes(attribute.String("genflow.error_kind", out.ErrorKind))
		span.SetStatus(codes.Error, out.ErrorKind)
	} else if out.Status == "success" {
		span.SetStatus(codes.Ok, "")
	}

	// Span 属性
	span.SetAttributes(
		attribute.String("genflow.status", out.Status),
		attribute.Int("genflow.tokens.prompt", out.TokensPrompt),
		attribute.Int("genflow.tokens.completion", out.TokensCompletion),
		attribute.Bool("genflow.usage_estimated", out.UsageEstimated),
		attribute.Int("genflow.chunks", out.Chunks),
		attribute.Float64("genflow.cost", cost),
		attribute.Float64("genflow.duration_ms", float64(out.Duration.Milliseconds())))

	return cost
}

// Costs 返回成本计算器
func (m *Metrics) Costs() *CostCalculator {
	if m == nil {
		return nil
	}
	return m.costs
}

// Tracer 获取 Tracer
func (m *Metrics) Tracer() trace.Tracer {
	return m.tracer
}
