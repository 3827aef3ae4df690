// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig 返回一个能通过 Validate 的配置
func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Provider.BaseURL = "https://api.deepseek.com"
	cfg.Provider.APIKey = "sk-test"
	cfg.Provider.Model = "deepseek-chat"
	return cfg
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 2*time.Minute, cfg.Provider.Timeout)
	assert.Equal(t, "genflow", cfg.Telemetry.ServiceName)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "genflow.yaml")

	yamlContent := `
provider:
  name: "openrouter"
  base_url: "https://openrouter.ai/api/v1"
  api_key: "or-key"
  model: "anthropic/claude-3.5-sonnet"
  timeout: 30s
  headers:
    X-Trace: "on"
  referer: "https://example.com"
  app_title: "genflow"
  sampling:
    temperature: 0.2
    max_tokens: 512
    stop: ["END"]

log:
  level: "debug"
  format: "console"

metrics:
  enabled: true
  addr: "127.0.0.1:9100"

reporter:
  batch_size: 8
  flush_interval: 500ms
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 加载配置
	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 验证 YAML 值覆盖了默认值
	assert.Equal(t, "openrouter", cfg.Provider.Name)
	assert.Equal(t, "or-key", cfg.Provider.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, map[string]string{"X-Trace": "on"}, cfg.Provider.Headers)
	require.NotNil(t, cfg.Provider.Sampling.Temperature)
	assert.Equal(t, 0.2, *cfg.Provider.Sampling.Temperature)
	require.NotNil(t, cfg.Provider.Sampling.MaxTokens)
	assert.Equal(t, 512, *cfg.Provider.Sampling.MaxTokens)
	assert.Nil(t, cfg.Provider.Sampling.TopP)
	assert.Equal(t, []string{"END"}, cfg.Provider.Sampling.Stop)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
	assert.Equal(t, 8, cfg.Reporter.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Reporter.FlushInterval)
	// 未出现在文件中的值保持默认
	assert.Equal(t, 1024, cfg.Reporter.QueueSize)

	require.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"GENFLOW_PROVIDER_BASE_URL":             "https://dashscope.aliyuncs.com/compatible-mode/v1",
		"GENFLOW_PROVIDER_API_KEY":              "ds-key",
		"GENFLOW_PROVIDER_MODEL":                "qwen-plus",
		"GENFLOW_PROVIDER_MAX_RETRIES":          "2",
		"GENFLOW_PROVIDER_ENABLE_CACHE_CONTROL": "true",
		"GENFLOW_PROVIDER_PRELOAD_TOKENIZER":    "true",
		"GENFLOW_PROVIDER_SAMPLING_TOP_P":       "0.8",
		"GENFLOW_PROVIDER_SAMPLING_STOP":        "a, b",
		"GENFLOW_LOG_LEVEL":                     "warn",
		"GENFLOW_LOG_OUTPUT_PATHS":              "stdout,/tmp/genflow.log",
		"GENFLOW_TELEMETRY_SAMPLE_RATE":         "0.5",
	}
	for k, v := range envVars {
		t.Setenv(k, v)
	}

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	// 验证环境变量覆盖了默认值
	assert.Equal(t, "ds-key", cfg.Provider.APIKey)
	assert.Equal(t, "qwen-plus", cfg.Provider.Model)
	assert.Equal(t, 2, cfg.Provider.MaxRetries)
	assert.True(t, cfg.Provider.EnableCacheControl)
	assert.True(t, cfg.Provider.PreloadTokenizer)
	require.NotNil(t, cfg.Provider.Sampling.TopP)
	assert.Equal(t, 0.8, *cfg.Provider.Sampling.TopP)
	assert.Equal(t, []string{"a", "b"}, cfg.Provider.Sampling.Stop)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"stdout", "/tmp/genflow.log"}, cfg.Log.OutputPaths)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "genflow.yaml")

	yamlContent := `
provider:
  api_key: "yaml-key"
  model: "yaml-model"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	// 设置环境变量（应该覆盖 YAML）
	t.Setenv("GENFLOW_PROVIDER_API_KEY", "env-key")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 环境变量应该覆盖 YAML
	assert.Equal(t, "env-key", cfg.Provider.APIKey)
	// YAML 值应该保留（没有被环境变量覆盖）
	assert.Equal(t, "yaml-model", cfg.Provider.Model)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_PROVIDER_MODEL", "custom-model")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)
	assert.Equal(t, "custom-model", cfg.Provider.Model)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("GENFLOW_PROVIDER_TIMEOUT", "forever")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GENFLOW_PROVIDER_TIMEOUT")
}

func TestLoader_WithValidator(t *testing.T) {
	// 默认配置缺少凭据，Validate 应该失败
	_, err := NewLoader().
		WithValidator((*Config).Validate).
		Load()
	assert.Error(t, err)

	t.Setenv("GENFLOW_PROVIDER_BASE_URL", "https://api.deepseek.com")
	t.Setenv("GENFLOW_PROVIDER_API_KEY", "k")
	_, err = NewLoader().
		WithValidator((*Config).Validate).
		Load()
	assert.NoError(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	// 指定不存在的文件，应该使用默认值（不报错）
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/genflow.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultConfig().Provider, cfg.Provider)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
provider:
  base_url: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

func TestMustLoad_Panics(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log: [x"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid config", modify: func(c *Config) {}},
		{
			name:    "missing api key",
			modify:  func(c *Config) { c.Provider.APIKey = "" },
			wantErr: "api key is required",
		},
		{
			name:    "missing base url",
			modify:  func(c *Config) { c.Provider.BaseURL = "" },
			wantErr: "base url is required",
		},
		{
			name:    "negative retries",
			modify:  func(c *Config) { c.Provider.MaxRetries = -1 },
			wantErr: "max_retries",
		},
		{
			name: "temperature out of range",
			modify: func(c *Config) {
				v := 2.5
				c.Provider.Sampling.Temperature = &v
			},
			wantErr: "temperature",
		},
		{
			name: "top_p out of range",
			modify: func(c *Config) {
				v := 1.5
				c.Provider.Sampling.TopP = &v
			},
			wantErr: "top_p",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log level",
		},
		{
			name:    "bad log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log format",
		},
		{
			name:    "sample rate out of range",
			modify:  func(c *Config) { c.Telemetry.SampleRate = 2 },
			wantErr: "sample_rate",
		},
		{
			name: "metrics addr invalid",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Addr = "nope"
			},
			wantErr: "metrics addr",
		},
		{
			name:    "negative reporter queue",
			modify:  func(c *Config) { c.Reporter.QueueSize = -1 },
			wantErr: "reporter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProviderSettings_ToProviderConfig(t *testing.T) {
	temp := 0.3
	ps := ProviderSettings{
		Name:       "azure",
		BaseURL:    "https://x.openai.azure.com",
		APIKey:     "k",
		Model:      "Test-Model",
		Headers:    map[string]string{"X-A": "1"},
		Timeout:    time.Second,
		MaxRetries: 1,
		APIVersion: "2024-10-21",
		Sampling:   SamplingSettings{Temperature: &temp},
	}

	cfg := ps.ToProviderConfig()
	assert.Equal(t, "azure", cfg.Name)
	assert.Equal(t, "Test-Model", cfg.Model)
	assert.Equal(t, "2024-10-21", cfg.APIVersion)
	assert.Equal(t, time.Second, cfg.Timeout)
	require.NotNil(t, cfg.Sampling)
	assert.Equal(t, 0.3, *cfg.Sampling.Temperature)

	// 转换结果不与原配置共享 map
	cfg.Headers["X-A"] = "2"
	assert.Equal(t, "1", ps.Headers["X-A"])

	assert.Nil(t, ProviderSettings{}.ToProviderConfig().Sampling)
}

func TestReporterSettings_ToReporterConfig(t *testing.T) {
	r := DefaultReporterSettings().ToReporterConfig()
	assert.Equal(t, 1024, r.QueueSize)
	assert.Equal(t, 32, r.BatchSize)
	assert.Equal(t, 2*time.Second, r.FlushInterval)
}
