package dashscope

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm/providers"
	"github.com/BaSui01/genflow/llm/providers/openaicompat"
)

// Name is the strategy id.
const Name = "dashscope"

// Header names understood by DashScope.
const (
	HeaderCacheControl = "X-DashScope-CacheControl"
	HeaderUserAgent    = "X-DashScope-UserAgent"
	HeaderAuthType     = "X-DashScope-AuthType"
)

// Match selects DashScope by name ("dashscope" or "qwen") or by host.
var Match = providers.HostMatcher([]string{Name, "qwen"}, "dashscope.aliyuncs.com", "dashscope-intl.aliyuncs.com")

// Strategy is the Alibaba Cloud DashScope (Qwen) compatible-mode backend.
type Strategy struct {
	*openaicompat.Strategy
}

// New creates the DashScope strategy.
func New(cfg providers.Config, logger *zap.Logger) *Strategy {
	s := &Strategy{}
	s.Strategy = openaicompat.New(cfg, openaicompat.Options{
		Name:        Name,
		HeaderHook:  dashscopeHeaders,
		RequestHook: s.adaptRequest,
		Logger:      logger,
	})
	return s
}

// Entry returns the registry entry for DashScope.
func Entry(logger *zap.Logger) providers.Entry {
	return providers.Entry{
		Name:  Name,
		Match: Match,
		New: func(cfg providers.Config) (providers.Strategy, error) {
			return New(cfg, logger), nil
		},
	}
}

func dashscopeHeaders(h http.Header, cfg providers.Config) {
	if cfg.EnableCacheControl {
		h.Set(HeaderCacheControl, "enable")
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = openaicompat.DefaultUserAgent
	}
	h.Set(HeaderUserAgent, ua)
	if cfg.AuthType != "" {
		h.Set(HeaderAuthType, cfg.AuthType)
	}
}

// adaptRequest adds session metadata and, when enabled, ephemeral cache
// markers on the system message and on the last text part of the final
// message.
func (s *Strategy) adaptRequest(req *providers.ChatCompletionRequest, requestID string) error {
	if req.Metadata == nil {
		req.Metadata = make(map[string]string, 2)
	}
	if s.Cfg.SessionID != "" {
		req.Metadata["sessionId"] = s.Cfg.SessionID
	}
	if requestID != "" {
		req.Metadata["promptId"] = requestID
	}
	if len(req.Metadata) == 0 {
		req.Metadata = nil
	}

	if !s.Cfg.EnableCacheControl || len(req.Messages) == 0 {
		return nil
	}
	for i := range req.Messages {
		if req.Messages[i].Role == "system" {
			markLastText(&req.Messages[i])
		}
	}
	last := &req.Messages[len(req.Messages)-1]
	if last.Role != "system" {
		markLastText(last)
	}
	return nil
}

// markLastText converts the content to parts form and marks the last text
// part. Messages without text are left alone.
func markLastText(m *providers.ChatMessage) {
	if m.Content == nil {
		return
	}
	if !m.Content.IsParts() {
		if m.Content.Text == "" {
			return
		}
		m.Content = providers.PartsContent(providers.ContentPart{Type: "text", Text: m.Content.Text})
	}
	for i := len(m.Content.Parts) - 1; i >= 0; i-- {
		if m.Content.Parts[i].Type == "text" {
			m.Content.Parts[i].CacheControl = &providers.CacheControl{Type: "ephemeral"}
			return
		}
	}
}
