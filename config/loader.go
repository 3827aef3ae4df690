// =============================================================================
// 📦 genflow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("genflow.yaml").
//	    WithEnvPrefix("GENFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/genflow/llm/providers"
	"github.com/BaSui01/genflow/llm/telemetry"
)

// DefaultEnvPrefix 是环境变量的默认前缀
const DefaultEnvPrefix = "GENFLOW"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 genflow 的完整配置结构
type Config struct {
	// Provider 后端配置
	Provider ProviderSettings `yaml:"provider" env:"PROVIDER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry OpenTelemetry 配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics Prometheus 配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Reporter 遥测事件上报配置
	Reporter ReporterSettings `yaml:"reporter" env:"REPORTER"`
}

// ProviderSettings 后端配置，对应 providers.Config
type ProviderSettings struct {
	// 显式后端名称: azure, dashscope, deepseek, openrouter; 为空时按 base_url 识别
	Name string `yaml:"name" env:"NAME"`
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API 密钥
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 认证方式（仅用于遥测标签）
	AuthType string `yaml:"auth_type" env:"AUTH_TYPE"`
	// 默认模型
	Model string `yaml:"model" env:"MODEL"`
	// 附加请求头
	Headers map[string]string `yaml:"headers" env:"-"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 连接阶段最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 采样参数覆盖
	Sampling SamplingSettings `yaml:"sampling" env:"SAMPLING"`

	// Azure 的 api-version
	APIVersion string `yaml:"api_version" env:"API_VERSION"`
	// OpenRouter 归属信息
	Referer  string `yaml:"referer" env:"REFERER"`
	AppTitle string `yaml:"app_title" env:"APP_TITLE"`
	// DashScope 专用
	UserAgent          string `yaml:"user_agent" env:"USER_AGENT"`
	SessionID          string `yaml:"session_id" env:"SESSION_ID"`
	EnableCacheControl bool   `yaml:"enable_cache_control" env:"ENABLE_CACHE_CONTROL"`

	// 启动时加载 tiktoken 编码，使用量估算得到精确计数（可能需要下载）
	PreloadTokenizer bool `yaml:"preload_tokenizer" env:"PRELOAD_TOKENIZER"`
}

// SamplingSettings 采样参数覆盖。nil 表示不覆盖。
type SamplingSettings struct {
	Temperature       *float64 `yaml:"temperature" env:"TEMPERATURE"`
	TopP              *float64 `yaml:"top_p" env:"TOP_P"`
	TopK              *int     `yaml:"top_k" env:"TOP_K"`
	MaxTokens         *int     `yaml:"max_tokens" env:"MAX_TOKENS"`
	PresencePenalty   *float64 `yaml:"presence_penalty" env:"PRESENCE_PENALTY"`
	FrequencyPenalty  *float64 `yaml:"frequency_penalty" env:"FREQUENCY_PENALTY"`
	RepetitionPenalty *float64 `yaml:"repetition_penalty" env:"REPETITION_PENALTY"`
	Stop              []string `yaml:"stop" env:"STOP"`
}

// IsZero 报告是否未设置任何覆盖。
func (s SamplingSettings) IsZero() bool {
	return s.Temperature == nil && s.TopP == nil && s.TopK == nil && s.MaxTokens == nil &&
		s.PresencePenalty == nil && s.FrequencyPenalty == nil && s.RepetitionPenalty == nil &&
		len(s.Stop) == 0
}

// ToProviderConfig 转换为管线使用的 providers.Config
func (p ProviderSettings) ToProviderConfig() providers.Config {
	cfg := providers.Config{
		Name:               p.Name,
		BaseURL:            p.BaseURL,
		APIKey:             p.APIKey,
		AuthType:           p.AuthType,
		Model:              p.Model,
		Timeout:            p.Timeout,
		MaxRetries:         p.MaxRetries,
		APIVersion:         p.APIVersion,
		Referer:            p.Referer,
		AppTitle:           p.AppTitle,
		UserAgent:          p.UserAgent,
		SessionID:          p.SessionID,
		EnableCacheControl: p.EnableCacheControl,
	}
	if len(p.Headers) > 0 {
		cfg.Headers = make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			cfg.Headers[k] = v
		}
	}
	if !p.Sampling.IsZero() {
		s := p.Sampling
		cfg.Sampling = &providers.SamplingParams{
			Temperature:       s.Temperature,
			TopP:              s.TopP,
			TopK:              s.TopK,
			MaxTokens:         s.MaxTokens,
			PresencePenalty:   s.PresencePenalty,
			FrequencyPenalty:  s.FrequencyPenalty,
			RepetitionPenalty: s.RepetitionPenalty,
			Stop:              append([]string(nil), s.Stop...),
		}
	}
	return cfg
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig OpenTelemetry 配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig Prometheus 配置
type MetricsConfig struct {
	// 是否暴露 /metrics
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 监听地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// ReporterSettings 遥测事件上报配置
type ReporterSettings struct {
	QueueSize       int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	BatchSize       int           `yaml:"batch_size" env:"BATCH_SIZE"`
	FlushInterval   time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
	SinkTimeout     time.Duration `yaml:"sink_timeout" env:"SINK_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 是否在 Debug 日志中附带请求与响应
	LogPayloads bool `yaml:"log_payloads" env:"LOG_PAYLOADS"`
}

// ToReporterConfig 转换为 telemetry.ReporterConfig
func (r ReporterSettings) ToReporterConfig() telemetry.ReporterConfig {
	return telemetry.ReporterConfig{
		QueueSize:     r.QueueSize,
		BatchSize:     r.BatchSize,
		FlushInterval: r.FlushInterval,
		SinkTimeout:   r.SinkTimeout,
	}
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.Ptr:
		elem := reflect.New(field.Type().Elem())
		if err := setFieldValue(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)

	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 验证后端配置
	if err := c.Provider.ToProviderConfig().Validate(); err != nil {
		errs = append(errs, "provider: "+err.Error())
	}
	if c.Provider.MaxRetries < 0 {
		errs = append(errs, "provider.max_retries must not be negative")
	}
	if t := c.Provider.Sampling.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, "provider.sampling.temperature must be between 0 and 2")
	}
	if p := c.Provider.Sampling.TopP; p != nil && (*p < 0 || *p > 1) {
		errs = append(errs, "provider.sampling.top_p must be between 0 and 1")
	}

	// 验证日志配置
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("invalid log format %q", c.Log.Format))
	}

	// 验证遥测配置
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, "telemetry.otlp_endpoint is required when telemetry is enabled")
	}
	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Sprintf("invalid metrics addr %q", c.Metrics.Addr))
		}
	}
	if c.Reporter.QueueSize < 0 || c.Reporter.BatchSize < 0 {
		errs = append(errs, "reporter sizes must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
