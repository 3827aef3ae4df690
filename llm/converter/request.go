package converter

import (
	"encoding/base64"
	"encoding/json"
	"path"
	"strconv"
	"strings"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

// ToChatCompletionRequest maps a canonical request to the wire request. The
// input is never modified.
func (c *Converter) ToChatCompletionRequest(req *llm.GenerateRequest, streaming bool) (*providers.ChatCompletionRequest, error) {
	if req == nil {
		return nil, llm.NewError(llm.ErrConversion, "nil generate request")
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	out := &providers.ChatCompletionRequest{Model: model}

	if req.SystemInstruction != nil {
		if text := joinText(req.SystemInstruction.Parts); text != "" {
			out.Messages = append(out.Messages, providers.ChatMessage{
				Role:    "system",
				Content: providers.TextContent(text),
			})
		}
	}

	ids := newCallIDs(c.newID)
	for i, content := range req.Contents {
		msgs, err := c.contentToMessages(content, ids)
		if err != nil {
			if e, ok := llm.AsError(err); ok {
				e.Message = "contents[" + strconv.Itoa(i) + "]: " + e.Message
				return nil, e
			}
			return nil, err
		}
		out.Messages = append(out.Messages, msgs...)
	}
	out.Messages = cleanMessages(out.Messages)

	tools, err := convertTools(req.Tools)
	if err != nil {
		return nil, err
	}
	out.Tools = tools

	c.applySampling(out, req.Config)

	if streaming {
		out.Stream = true
		out.StreamOptions = &providers.StreamOptions{IncludeUsage: true}
	}
	return out, nil
}

func (c *Converter) contentToMessages(content llm.Content, ids *callIDs) ([]providers.ChatMessage, error) {
	switch content.Role {
	case llm.RoleModel:
		msg, err := modelMessage(content.Parts, ids)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			return nil, nil
		}
		return []providers.ChatMessage{*msg}, nil
	case llm.RoleUser, "":
		return userMessages(content.Parts, ids)
	default:
		return nil, llm.Errorf(llm.ErrConversion, "unsupported role %q", content.Role)
	}
}

// modelMessage folds model parts into one assistant message. Thought text
// becomes reasoning_content.
func modelMessage(parts []llm.Part, ids *callIDs) (*providers.ChatMessage, error) {
	var text, reasoning strings.Builder
	msg := providers.ChatMessage{Role: "assistant"}

	for _, p := range parts {
		switch {
		case p.FunctionCall != nil:
			args, err := marshalArgs(p.FunctionCall.Args)
			if err != nil {
				return nil, llm.Errorf(llm.ErrConversion, "function call %q arguments", p.FunctionCall.Name).WithCause(err)
			}
			id := ids.call(p.FunctionCall.ID, p.FunctionCall.Name)
			msg.ToolCalls = append(msg.ToolCalls, providers.ToolCall{
				ID:       id,
				Type:     "function",
				Function: providers.FunctionCall{Name: p.FunctionCall.Name, Arguments: args},
			})
		case p.Thought:
			reasoning.WriteString(p.Text)
		case p.Text != "":
			text.WriteString(p.Text)
		case p.InlineData != nil || p.FileData != nil:
			return nil, llm.NewError(llm.ErrConversion, "media parts are not supported in model content")
		case p.FunctionResponse != nil:
			return nil, llm.NewError(llm.ErrConversion, "function response in model content")
		}
	}

	if text.Len() > 0 {
		msg.Content = providers.TextContent(text.String())
	}
	msg.ReasoningContent = reasoning.String()
	if msg.Content == nil && len(msg.ToolCalls) == 0 {
		return nil, nil
	}
	return &msg, nil
}

// userMessages emits one tool message per function response, followed by a
// user message holding the remaining parts.
func userMessages(parts []llm.Part, ids *callIDs) ([]providers.ChatMessage, error) {
	var (
		out     []providers.ChatMessage
		content []providers.ContentPart
		onlyTxt = true
	)
	for _, p := range parts {
		switch {
		case p.FunctionResponse != nil:
			body, err := responseText(p.FunctionResponse.Response)
			if err != nil {
				return nil, llm.Errorf(llm.ErrConversion, "function response %q", p.FunctionResponse.Name).WithCause(err)
			}
			out = append(out, providers.ChatMessage{
				Role:       "tool",
				ToolCallID: ids.response(p.FunctionResponse.ID, p.FunctionResponse.Name),
				Content:    providers.TextContent(body),
			})
		case p.InlineData != nil:
			cp, err := inlinePart(p.InlineData)
			if err != nil {
				return nil, err
			}
			content = append(content, cp)
			onlyTxt = false
		case p.FileData != nil:
			content = append(content, filePart(p.FileData))
			onlyTxt = false
		case p.FunctionCall != nil:
			return nil, llm.NewError(llm.ErrConversion, "function call in user content")
		case p.Text != "":
			content = append(content, providers.ContentPart{Type: "text", Text: p.Text})
		}
	}

	if len(content) == 0 {
		return out, nil
	}
	msg := providers.ChatMessage{Role: "user"}
	if onlyTxt {
		texts := make([]string, len(content))
		for i, cp := range content {
			texts[i] = cp.Text
		}
		msg.Content = providers.TextContent(strings.Join(texts, "\n"))
	} else {
		msg.Content = providers.PartsContent(content...)
	}
	return append(out, msg), nil
}

func inlinePart(b *llm.Blob) (providers.ContentPart, error) {
	mime := strings.ToLower(b.MIMEType)
	data := base64.StdEncoding.EncodeToString(b.Data)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return providers.ContentPart{
			Type:     "image_url",
			ImageURL: &providers.ImageURL{URL: "data:" + mime + ";base64," + data},
		}, nil
	case strings.HasPrefix(mime, "audio/"):
		format := strings.TrimPrefix(mime, "audio/")
		switch format {
		case "mpeg", "mp3":
			format = "mp3"
		case "wav", "x-wav", "wave":
			format = "wav"
		default:
			return providers.ContentPart{}, llm.Errorf(llm.ErrConversion, "unsupported audio format %q", b.MIMEType)
		}
		return providers.ContentPart{Type: "input_audio", InputAudio: &providers.InputAudio{Data: data, Format: format}}, nil
	case mime == "":
		return providers.ContentPart{}, llm.NewError(llm.ErrConversion, "inline data without mime type")
	default:
		return providers.ContentPart{
			Type: "file",
			File: &providers.FilePart{Filename: "file." + extension(mime), FileData: "data:" + mime + ";base64," + data},
		}, nil
	}
}

func filePart(f *llm.FileData) providers.ContentPart {
	if strings.HasPrefix(strings.ToLower(f.MIMEType), "image/") {
		return providers.ContentPart{Type: "image_url", ImageURL: &providers.ImageURL{URL: f.FileURI}}
	}
	return providers.ContentPart{
		Type: "file",
		File: &providers.FilePart{Filename: path.Base(f.FileURI), FileData: f.FileURI},
	}
}

func extension(mime string) string {
	if i := strings.LastIndexByte(mime, '/'); i >= 0 && i < len(mime)-1 {
		return mime[i+1:]
	}
	return "bin"
}

func marshalArgs(args map[string]any) (string, error) {
	if len(args) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(args)
	return string(b), err
}

// responseText uses a plain "output" string as-is and serialises anything else.
func responseText(resp map[string]any) (string, error) {
	if len(resp) == 1 {
		if s, ok := resp["output"].(string); ok {
			return s, nil
		}
	}
	if resp == nil {
		return "{}", nil
	}
	b, err := json.Marshal(resp)
	return string(b), err
}

func joinText(parts []llm.Part) string {
	var texts []string
	for _, p := range parts {
		if p.Text != "" && !p.Thought {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// callIDs assigns ids to function calls that lack one and pairs anonymous
// responses with the oldest unanswered call of the same name.
type callIDs struct {
	gen     func() string
	pending map[string][]string
}

func newCallIDs(gen func() string) *callIDs {
	return &callIDs{gen: gen, pending: make(map[string][]string)}
}

func (c *callIDs) call(id, name string) string {
	if id == "" {
		id = c.gen()
	}
	c.pending[name] = append(c.pending[name], id)
	return id
}

func (c *callIDs) response(id, name string) string {
	queue := c.pending[name]
	if id != "" {
		for i, pid := range queue {
			if pid == id {
				c.pending[name] = append(queue[:i:i], queue[i+1:]...)
				break
			}
		}
		return id
	}
	if len(queue) == 0 {
		// orphaned; dropped by cleanMessages
		return c.gen()
	}
	c.pending[name] = queue[1:]
	return queue[0]
}
