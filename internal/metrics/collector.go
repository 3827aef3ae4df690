// Package metrics 提供内部指标收集。
// 该包仅供内部使用，外部项目不应导入。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 调用指标
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec

	// Token 与成本
	tokensUsed *prometheus.CounterVec
	cost       *prometheus.CounterVec

	// 流式指标
	streamChunks *prometheus.HistogramVec

	// 遥测上报
	telemetryDropped prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器。reg 为 nil 时注册到 prometheus.DefaultRegisterer。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of generation calls",
		},
		[]string{"provider", "model", "mode", "status"}, // mode：sync 或 stream
	)

	c.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Generation call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model", "mode"},
	)

	c.errorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of classified errors",
		},
		[]string{"provider", "kind"},
	)

	c.tokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type：prompt、completion、cached、thoughts
	)

	c.cost = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_total",
			Help:      "Total estimated cost in USD",
		},
		[]string{"provider", "model"},
	)

	c.streamChunks = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_chunks",
			Help:      "Canonical chunks emitted per completed stream",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"provider"},
	)

	c.telemetryDropped = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_events_dropped_total",
			Help:      "Telemetry events dropped because the reporter queue was full or closed",
		},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🤖 调用指标记录
// =============================================================================

// Tokens 是一次调用的 Token 用量。
type Tokens struct {
	Prompt     int
	Completion int
	Cached     int
	Thoughts   int
}

// RecordRequest 记录一次成功或失败的调用
func (c *Collector) RecordRequest(provider, model string, streaming bool, status string, duration time.Duration, tokens Tokens, cost float64) {
	m := mode(streaming)
	c.requestsTotal.WithLabelValues(provider, model, m, status).Inc()
	c.requestDuration.WithLabelValues(provider, model, m).Observe(duration.Seconds())

	c.addTokens(provider, model, "prompt", tokens.Prompt)
	c.addTokens(provider, model, "completion", tokens.Completion)
	c.addTokens(provider, model, "cached", tokens.Cached)
	c.addTokens(provider, model, "thoughts", tokens.Thoughts)

	if cost > 0 {
		c.cost.WithLabelValues(provider, model).Add(cost)
	}
}

// RecordError 记录一个已分类的错误
func (c *Collector) RecordError(provider, kind string) {
	c.errorsTotal.WithLabelValues(provider, kind).Inc()
}

// RecordStreamChunks 记录一次完整流式调用输出的分片数
func (c *Collector) RecordStreamChunks(provider string, n int) {
	c.streamChunks.WithLabelValues(provider).Observe(float64(n))
}

// RecordTelemetryDrop 记录一次被丢弃的遥测事件
func (c *Collector) RecordTelemetryDrop() {
	c.telemetryDropped.Inc()
}

func (c *Collector) addTokens(provider, model, kind string, n int) {
	if n > 0 {
		c.tokensUsed.WithLabelValues(provider, model, kind).Add(float64(n))
	}
}

func mode(streaming bool) string {
	if streaming {
		return "stream"
	}
	return "sync"
}
