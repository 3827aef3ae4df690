package tokenizer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 为 OpenAI 系列模型适配 tiktoken.
type TiktokenTokenizer struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// encodings 缓存已加载的编码，键为编码名称。进程内共享。
var encodings sync.Map

// modelEncodings 将模型名称前缀映射到其 tiktoken 编码.
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4.1":       "o200k_base",
	"gpt-5":         "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// NewTiktokenTokenizer 为给定模型创建基于 tiktoken 的分词器.
// 编码数据在第一次使用时才加载。
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	encoding := "cl100k_base"
	best := 0
	m := strings.ToLower(model)
	// 最长前缀匹配，gpt-4o 不会被 gpt-4 抢先
	for prefix, enc := range modelEncodings {
		if strings.HasPrefix(m, prefix) && len(prefix) > best {
			encoding, best = enc, len(prefix)
		}
	}
	if strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4") {
		encoding = "o200k_base"
	}
	return &TiktokenTokenizer{model: model, encoding: encoding}, nil
}

// init lazily 初始化 tiktoken 编码(可以在第一次使用时下载数据).
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		if v, ok := encodings.Load(t.encoding); ok {
			t.enc = v.(*tiktoken.Tiktoken)
			return
		}
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		encodings.Store(t.encoding, enc)
		t.enc = enc
	})
	return t.initErr
}

// Ready 报告编码是否已在进程内加载。为 true 时计数不会触发任何 I/O.
func (t *TiktokenTokenizer) Ready() bool {
	_, ok := encodings.Load(t.encoding)
	return ok
}

// Load 加载编码数据，最多等待到 ctx 结束。
// tiktoken 的下载本身不接受 context，超时后加载会在后台继续完成。
func (t *TiktokenTokenizer) Load(ctx context.Context) error {
	if t.Ready() {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- t.init() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Preload 为 model 加载 tiktoken 编码。非 OpenAI 系列模型直接返回。
// 用量估算只会使用已加载的编码，因此需要精确计数时应在启动阶段调用。
func Preload(ctx context.Context, model string) error {
	if !isOpenAIFamily(model) {
		return nil
	}
	tk, err := NewTiktokenTokenizer(model)
	if err != nil {
		return err
	}
	return tk.Load(ctx)
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range messages {
		// 每条消息的开销: <|start|>role\n content<|end|>\n
		total += 4
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(msg.Role, nil, nil))
	}
	total += 3 // 会话结束开销
	return total, nil
}

// Encoding 返回为模型选择的 tiktoken 编码名称。
func (t *TiktokenTokenizer) Encoding() string { return t.encoding }

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
