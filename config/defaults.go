// =============================================================================
// 📦 genflow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/genflow/llm/telemetry"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Provider:  DefaultProviderSettings(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
		Reporter:  DefaultReporterSettings(),
	}
}

// DefaultProviderSettings 返回默认后端配置。凭据与地址没有默认值。
func DefaultProviderSettings() ProviderSettings {
	return ProviderSettings{
		AuthType:   "api-key",
		Timeout:    2 * time.Minute,
		MaxRetries: 0,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认 OpenTelemetry 配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "genflow",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认 Prometheus 配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Addr:      ":9091",
		Namespace: "genflow",
	}
}

// DefaultReporterSettings 返回默认遥测上报配置
func DefaultReporterSettings() ReporterSettings {
	d := telemetry.DefaultReporterConfig()
	return ReporterSettings{
		QueueSize:       d.QueueSize,
		BatchSize:       d.BatchSize,
		FlushInterval:   d.FlushInterval,
		SinkTimeout:     d.SinkTimeout,
		ShutdownTimeout: 10 * time.Second,
		LogPayloads:     false,
	}
}
