package observability

import (
	"strings"
	"sync"
)

// AnyProvider 匹配任意 Provider 的价格条目
const AnyProvider = "*"

// CostCalculator 成本计算器
type CostCalculator struct {
	mu     sync.RWMutex
	prices map[string]*ModelPrice // 键：provider:model
}

// ModelPrice 模型价格
type ModelPrice struct {
	Provider    string
	Model       string
	PriceInput  float64 // 美元 / 1K tokens
	PriceOutput float64 // 美元 / 1K tokens
}

// NewCostCalculator 创建成本计算器
func NewCostCalculator() *CostCalculator {
	c := &CostCalculator{
		prices: make(map[string]*ModelPrice),
	}
	c.loadDefaultPrices()
	return c
}

// loadDefaultPrices 加载默认价格（可通过 UpdatePrices 覆盖）
// Provider 为 "*" 的条目匹配任意 Provider。
func (c *CostCalculator) loadDefaultPrices() {
	defaults := []ModelPrice{
		// OpenAI 兼容（openai / azure / openrouter 共用）
		{Provider: AnyProvider, Model: "gpt-4o", PriceInput: 0.0025, PriceOutput: 0.01},
		{Provider: AnyProvider, Model: "gpt-4o-mini", PriceInput: 0.00015, PriceOutput: 0.0006},
		{Provider: AnyProvider, Model: "gpt-4.1", PriceInput: 0.002, PriceOutput: 0.008},
		{Provider: AnyProvider, Model: "gpt-4.1-mini", PriceInput: 0.0004, PriceOutput: 0.0016},
		{Provider: AnyProvider, Model: "gpt-3.5-turbo", PriceInput: 0.0005, PriceOutput: 0.0015},
		// DeepSeek 系列
		{Provider: "deepseek", Model: "deepseek-chat", PriceInput: 0.00027, PriceOutput: 0.0011},
		{Provider: "deepseek", Model: "deepseek-reasoner", PriceInput: 0.00055, PriceOutput: 0.00219},
		// 通义千问（DashScope）
		{Provider: "dashscope", Model: "qwen-turbo", PriceInput: 0.0003, PriceOutput: 0.0006},
		{Provider: "dashscope", Model: "qwen-plus", PriceInput: 0.0008, PriceOutput: 0.002},
		{Provider: "dashscope", Model: "qwen-max", PriceInput: 0.0024, PriceOutput: 0.0096},
		{Provider: "dashscope", Model: "qwen3-coder-plus", PriceInput: 0.001, PriceOutput: 0.005},
	}

	for _, p := range defaults {
		c.SetPrice(p.Provider, p.Model, p.PriceInput, p.PriceOutput)
	}
}

// SetPrice 设置模型价格
func (c *CostCalculator) SetPrice(provider, model string, priceInput, priceOutput float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	model = strings.ToLower(model)
	key := provider + ":" + model
	c.prices[key] = &ModelPrice{
		Provider:    provider,
		Model:       model,
		PriceInput:  priceInput,
		PriceOutput: priceOutput,
	}
}

// GetPrice 获取模型价格。先精确匹配 provider:model，再匹配通配 Provider，
// 最后按最长前缀匹配带日期后缀的模型名（如 gpt-4o-2024-08-06）。
func (c *CostCalculator) GetPrice(provider, model string) *ModelPrice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	model = strings.ToLower(model)
	for _, p := range []string{provider, AnyProvider} {
		if price, ok := c.prices[p+":"+model]; ok {
			return price
		}
	}

	var best *ModelPrice
	for _, price := range c.prices {
		if price.Provider != provider && price.Provider != AnyProvider {
			continue
		}
		if !strings.HasPrefix(model, price.Model+"-") {
			continue
		}
		if best == nil || len(price.Model) > len(best.Model) ||
			(len(price.Model) == len(best.Model) && price.Provider == provider) {
			best = price
		}
	}
	return best
}

// Calculate 计算成本
func (c *CostCalculator) Calculate(provider, model string, tokensInput, tokensOutput int) float64 {
	price := c.GetPrice(provider, model)
	if price == nil {
		return 0
	}

	inputCost := float64(tokensInput) / 1000 * price.PriceInput
	outputCost := float64(tokensOutput) / 1000 * price.PriceOutput

	return inputCost + outputCost
}

// UpdatePrices 批量更新价格（从配置）
func (c *CostCalculator) UpdatePrices(prices []ModelPrice) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range prices {
		model := strings.ToLower(p.Model)
		key := p.Provider + ":" + model
		c.prices[key] = &ModelPrice{
			Provider:    p.Provider,
			Model:       model,
			PriceInput:  p.PriceInput,
			PriceOutput: p.PriceOutput,
		}
	}
}

// CostSummary 成本汇总
type CostSummary struct {
	TotalCost       float64
	TotalTokens     int
	TokensInput     int
	TokensOutput    int
	RequestCount    int
	AvgCostPerReq   float64
	AvgTokensPerReq float64
}

// CostTracker 成本追踪器（用于会话级别的成本统计）
type CostTracker struct {
	calculator *CostCalculator
	mu         sync.Mutex
	summary    CostSummary
}

// NewCostTracker 创建成本追踪器
func NewCostTracker(calculator *CostCalculator) *CostTracker {
	return &CostTracker{
		calculator: calculator,
	}
}

// Track 追踪一次请求的成本
func (t *CostTracker) Track(provider, model string, tokensInput, tokensOutput int) float64 {
	cost := t.calculator.Calculate(provider, model, tokensInput, tokensOutput)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.summary.TotalCost += cost
	t.summary.TokensInput += tokensInput
	t.summary.TokensOutput += tokensOutput
	t.summary.TotalTokens += tokensInput + tokensOutput
	t.summary.RequestCount++

	if t.summary.RequestCount > 0 {
		t.summary.AvgCostPerReq = t.summary.TotalCost / float64(t.summary.RequestCount)
		t.summary.AvgTokensPerReq = float64(t.summary.TotalTokens) / float64(t.summary.RequestCount)
	}

	return cost
}

// Summary 获取成本汇总
func (t *CostTracker) Summary() CostSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summary
}

// Reset 重置统计
func (t *CostTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary = CostSummary{}
}
