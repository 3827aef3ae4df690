package observability

import (
	"testing"
)

func TestCostCalculator_Calculate(t *testing.T) {
	calc := NewCostCalculator()

	tests := []struct {
		name         string
		provider     string
		model        string
		tokensInput  int
		tokensOutput int
		wantMin      float64
		wantMax      float64
	}{
		{
			name:         "gpt-4o via openai",
			provider:     "openai",
			model:        "gpt-4o",
			tokensInput:  1000,
			tokensOutput: 500,
			wantMin:      0.007,
			wantMax:      0.008,
		},
		{
			name:         "gpt-4o via azure uses wildcard price",
			provider:     "azure",
			model:        "GPT-4o",
			tokensInput:  1000,
			tokensOutput: 500,
			wantMin:      0.007,
			wantMax:      0.008,
		},
		{
			name:         "dated model matches longest prefix",
			provider:     "openrouter",
			model:        "gpt-4o-mini-2024-07-18",
			tokensInput:  1000,
			tokensOutput: 1000,
			wantMin:      0.00075,
			wantMax:      0.00075,
		},
		{
			name:         "deepseek",
			provider:     "deepseek",
			model:        "deepseek-chat",
			tokensInput:  1000,
			tokensOutput: 1000,
			wantMin:      0.0013,
			wantMax:      0.0014,
		},
		{
			name:         "provider specific price is not shared",
			provider:     "openai",
			model:        "deepseek-chat",
			tokensInput:  1000,
			tokensOutput: 500,
			wantMin:      0,
			wantMax:      0,
		},
		{
			name:         "unknown model",
			provider:     "unknown",
			model:        "unknown",
			tokensInput:  1000,
			tokensOutput: 500,
			wantMin:      0,
			wantMax:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost := calc.Calculate(tt.provider, tt.model, tt.tokensInput, tt.tokensOutput)
			if cost < tt.wantMin-1e-12 || cost > tt.wantMax+1e-12 {
				t.Errorf("Calculate() = %v, want between %v and %v", cost, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestCostTracker_Track(t *testing.T) {
	calc := NewCostCalculator()
	tracker := NewCostTracker(calc)

	// 追踪多次请求
	tracker.Track("openai", "gpt-4o", 1000, 500)
	tracker.Track("openai", "gpt-4o", 2000, 1000)

	summary := tracker.Summary()

	if summary.RequestCount != 2 {
		t.Errorf("RequestCount = %d, want 2", summary.RequestCount)
	}
	if summary.TokensInput != 3000 {
		t.Errorf("TokensInput = %d, want 3000", summary.TokensInput)
	}
	if summary.TokensOutput != 1500 {
		t.Errorf("TokensOutput = %d, want 1500", summary.TokensOutput)
	}
	if summary.TotalCost <= 0 {
		t.Error("TotalCost should be > 0")
	}
}

func TestCostTracker_Reset(t *testing.T) {
	calc := NewCostCalculator()
	tracker := NewCostTracker(calc)

	tracker.Track("openai", "gpt-4o", 1000, 500)
	tracker.Reset()

	summary := tracker.Summary()
	if summary.RequestCount != 0 {
		t.Errorf("RequestCount after reset = %d, want 0", summary.RequestCount)
	}
}

func TestCostCalculator_SetPrice(t *testing.T) {
	calc := NewCostCalculator()

	// 设置自定义价格
	calc.SetPrice("custom", "custom-model", 0.01, 0.02)

	cost := calc.Calculate("custom", "custom-model", 1000, 1000)
	expected := 0.01 + 0.02 // 1K 输入 + 1K 输出
	if cost != expected {
		t.Errorf("Calculate() = %v, want %v", cost, expected)
	}
}

func TestCostCalculator_UpdatePrices(t *testing.T) {
	calc := NewCostCalculator()
	calc.UpdatePrices([]ModelPrice{{Provider: "deepseek", Model: "DeepSeek-Chat", PriceInput: 1, PriceOutput: 1}})

	if got := calc.Calculate("deepseek", "deepseek-chat", 1000, 0); got != 1 {
		t.Errorf("Calculate() = %v, want 1", got)
	}
}
