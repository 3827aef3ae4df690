// Package openaicompat provides the shared OpenAI-compatible strategy and
// the HTTP transport every backend uses.
//
// Backends such as DashScope, DeepSeek, OpenRouter and Azure share the same
// chat-completion wire format. Instead of duplicating HTTP handling, SSE
// parsing and error mapping, they embed openaicompat.Strategy and only
// supply what differs:
//
//   - Strategy name
//   - Auth and backend headers
//   - Endpoint path and query
//   - Request hooks for backend-specific fields
//
// Usage:
//
//	s := openaicompat.New(cfg, openaicompat.Options{
//	    Name: "deepseek",
//	    RequestHook: func(req *providers.ChatCompletionRequest, requestID string) error {
//	        return flatten(req)
//	    },
//	})
//	client, err := s.BuildClient()
package openaicompat
