package converter

import (
	"github.com/BaSui01/genflow/llm/providers"
)

// cleanMessages merges consecutive assistant messages and drops tool calls
// and tool results that have no counterpart. Backends reject both shapes.
func cleanMessages(msgs []providers.ChatMessage) []providers.ChatMessage {
	return dropOrphans(mergeAssistant(msgs))
}

func mergeAssistant(msgs []providers.ChatMessage) []providers.ChatMessage {
	out := make([]providers.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		n := len(out)
		if m.Role != "assistant" || n == 0 || out[n-1].Role != "assistant" {
			out = append(out, m)
			continue
		}
		prev := &out[n-1]
		switch {
		case prev.Content == nil:
			prev.Content = m.Content
		case m.Content != nil:
			prev.Content = providers.TextContent(prev.Content.String() + m.Content.String())
		}
		prev.ReasoningContent += m.ReasoningContent
		prev.ToolCalls = append(prev.ToolCalls, m.ToolCalls...)
	}
	return out
}

func dropOrphans(msgs []providers.ChatMessage) []providers.ChatMessage {
	answered := make(map[string]bool)
	for _, m := range msgs {
		if m.Role == "tool" && m.ToolCallID != "" {
			answered[m.ToolCallID] = true
		}
	}

	called := make(map[string]bool)
	out := make([]providers.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "assistant":
			if len(m.ToolCalls) > 0 {
				kept := make([]providers.ToolCall, 0, len(m.ToolCalls))
				for _, tc := range m.ToolCalls {
					if answered[tc.ID] {
						kept = append(kept, tc)
						called[tc.ID] = true
					}
				}
				m.ToolCalls = kept
				if len(kept) == 0 {
					m.ToolCalls = nil
				}
			}
			if m.Content == nil && len(m.ToolCalls) == 0 {
				continue
			}
		case "tool":
			if !called[m.ToolCallID] {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}
