package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/genflow/llm"
)

// maxErrorBody 限制读取的错误响应体大小
const maxErrorBody = 64 << 10

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 llm.Error
// 这是所有 Strategy 使用的通用错误映射函数
func MapHTTPError(status int, msg string, provider string, raw []byte) *llm.Error {
	e := llm.StatusError(status, msg, raw)
	e.Provider = provider
	if status == 529 { // 模型过载（部分后端使用）
		e.Retryable = true
	}
	return e
}

// ReadErrorMessage 读取响应体中的错误消息
// 尝试解析 JSON 错误响应，失败则回退到原始文本。同时返回原始负载。
func ReadErrorMessage(body io.Reader) (string, []byte) {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return "failed to read error response", data
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type), data
		}
		return errResp.Error.Message, data
	}

	// 回退到原始文本
	return strings.TrimSpace(string(data)), data
}

// BearerTokenHeaders 是标准的 Bearer token 认证 header 构建函数。
func BearerTokenHeaders(h http.Header, apiKey string) {
	h.Set("Authorization", "Bearer "+apiKey)
	h.Set("Content-Type", "application/json")
}

// ApplyCustomHeaders 将 cfg.Headers 复制到 h，
// 自定义 header 覆盖策略设置的同名 header。
func ApplyCustomHeaders(h http.Header, custom map[string]string) {
	for k, v := range custom {
		if strings.TrimSpace(k) == "" {
			continue
		}
		h.Set(k, v)
	}
}

// SafeCloseBody 安全关闭 HTTP 响应体并忽略错误
func SafeCloseBody(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}
