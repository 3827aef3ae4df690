package tokenizer

import (
	"unicode"
)

const (
	// 每条消息的角色标记与分隔符开销
	messageOverhead = 4
	// 回复起始标记开销
	replyPrimer = 3
	// 表意文字约 1.5 字符/token，其余约 4 字符/token
	ideographRunesPerToken = 1.5
	otherRunesPerToken     = 4.0
	defaultContextWindow   = 4096
)

// wideScripts 是按表意文字比例计数的字符集。
var wideScripts = []*unicode.RangeTable{
	unicode.Han,
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Hangul,
}

// EstimatorTokenizer 按字符类别估算 token 数，用于没有 BPE 编码表的模型。
type EstimatorTokenizer struct {
	model     string
	maxTokens int
}

// NewEstimatorTokenizer 创建估算器。maxTokens <= 0 时使用 4096。
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = defaultContextWindow
	}
	return &EstimatorTokenizer{model: model, maxTokens: maxTokens}
}

// CountTokens 估算 text 的 token 数。非空文本至少计 1。
func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	var wide, other int
	for _, r := range text {
		if isWide(r) {
			wide++
		} else {
			other++
		}
	}
	n := int(float64(wide)/ideographRunesPerToken + float64(other)/otherRunesPerToken)
	return max(n, 1), nil
}

// CountMessages 累加每条消息的内容与固定开销。
func (e *EstimatorTokenizer) CountMessages(messages []Message) (int, error) {
	total := replyPrimer
	for _, msg := range messages {
		n, err := e.CountTokens(msg.Content)
		if err != nil {
			return 0, err
		}
		total += n + messageOverhead
	}
	return total, nil
}

// MaxTokens 返回创建估算器时指定的上下文大小。
func (e *EstimatorTokenizer) MaxTokens() int { return e.maxTokens }

func (e *EstimatorTokenizer) Name() string { return "estimator[" + e.model + "]" }

func isWide(r rune) bool {
	if r >= 0x3000 && r <= 0x303F || r >= 0xFF00 && r <= 0xFFEF {
		// CJK 标点与全角字符
		return true
	}
	return unicode.In(r, wideScripts...)
}
