package pipeline

import (
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm/converter"
	"github.com/BaSui01/genflow/llm/observability"
	"github.com/BaSui01/genflow/llm/providers"
	"github.com/BaSui01/genflow/llm/telemetry"
	"github.com/BaSui01/genflow/llm/tokenizer"
)

// Option 配置 Pipeline
type Option func(*options)

type options struct {
	registry  *providers.Registry
	telemetry telemetry.Logger
	logger    *zap.Logger
	metrics   *observability.Metrics
	tokenizer tokenizer.Tokenizer
	convOpts  []converter.Option
}

// WithRegistry 替换默认的策略注册表
func WithRegistry(r *providers.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithTelemetry 设置遥测记录器。未设置时不记录任何事件。
func WithTelemetry(l telemetry.Logger) Option {
	return func(o *options) { o.telemetry = l }
}

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics 为每次调用开启 OpenTelemetry span 与指标
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTokenizer 固定后端未返回 usage 时用于估算的分词器。
// 默认按模型选择，且不会在调用路径上加载编码数据。
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(o *options) { o.tokenizer = t }
}

// WithConverterOptions 应用于每次调用创建的转换器
func WithConverterOptions(opts ...converter.Option) Option {
	return func(o *options) { o.convOpts = append(o.convOpts, opts...) }
}
