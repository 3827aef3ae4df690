package tokenizer

import (
	"strings"
)

// Tokenizer 是统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数,
	// 包括每条消息的开销（角色标记、分隔符等）。
	CountMessages(messages []Message) (int, error)

	// Name 返回分词器的名称.
	Name() string
}

// Message 是一个轻量级消息结构, 由 tokenizer 包使用
// 以避免与 llm 包的循环依赖。
type Message struct {
	Role    string
	Content string
}

// ForModel 返回模型对应的分词器：OpenAI 系列在编码已通过 Preload 加载时
// 使用 tiktoken，否则与其余模型一样使用 CJK 感知的估算器。
// 返回的分词器在计数时从不进行网络或磁盘 I/O。
func ForModel(model string) Tokenizer {
	est := NewEstimatorTokenizer(model, 0)
	if !isOpenAIFamily(model) {
		return est
	}
	tk, err := NewTiktokenTokenizer(model)
	if err != nil {
		return est
	}
	return &fallbackTokenizer{primary: tk, fallback: est}
}

func isOpenAIFamily(model string) bool {
	m := strings.ToLower(model)
	for prefix := range modelEncodings {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4")
}

// readier 由需要预先加载数据的分词器实现.
type readier interface {
	Ready() bool
}

// fallbackTokenizer 在主分词器未就绪或出错时使用备用分词器.
type fallbackTokenizer struct {
	primary  Tokenizer
	fallback Tokenizer
}

func (f *fallbackTokenizer) primaryReady() bool {
	r, ok := f.primary.(readier)
	return !ok || r.Ready()
}

func (f *fallbackTokenizer) CountTokens(text string) (int, error) {
	if f.primaryReady() {
		if n, err := f.primary.CountTokens(text); err == nil {
			return n, nil
		}
	}
	return f.fallback.CountTokens(text)
}

func (f *fallbackTokenizer) CountMessages(messages []Message) (int, error) {
	if f.primaryReady() {
		if n, err := f.primary.CountMessages(messages); err == nil {
			return n, nil
		}
	}
	return f.fallback.CountMessages(messages)
}

func (f *fallbackTokenizer) Name() string {
	return f.primary.Name() + "|" + f.fallback.Name()
}
