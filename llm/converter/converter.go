package converter

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm/providers"
)

// Built-in sampling defaults, used when neither the provider config nor the
// request sets a value.
const (
	DefaultTemperature = 0.0
	DefaultTopP        = 1.0
)

// Converter translates between canonical requests/responses and the
// chat-completion wire format. It owns the tool-call accumulator of one
// stream, so a Converter must not be shared between concurrent calls.
type Converter struct {
	model    string
	sampling *providers.SamplingParams
	acc      *ToolCallAccumulator
	newID    func() string
	logger   *zap.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIDGenerator replaces the tool-call id generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Converter) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithMaxToolArgBytes caps the buffered arguments per streamed tool call.
func WithMaxToolArgBytes(n int) Option {
	return func(c *Converter) {
		if n > 0 {
			c.acc.maxArgBytes = n
		}
	}
}

// New creates a converter. model is used when the request does not name one;
// sampling holds provider-level overrides and may be nil.
func New(model string, sampling *providers.SamplingParams, opts ...Option) *Converter {
	c := &Converter{
		model:    model,
		sampling: sampling,
		acc:      NewToolCallAccumulator(),
		newID:    newToolCallID,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.acc.logger = c.logger
	return c
}

// ResetStreamState clears the tool-call accumulator. It must be called at the
// start of every stream and after a stream error.
func (c *Converter) ResetStreamState() {
	c.acc.Reset()
}

// PendingToolCalls reports how many streamed tool calls are still buffered.
func (c *Converter) PendingToolCalls() int {
	return c.acc.Len()
}

func newToolCallID() string {
	return "call_" + uuid.NewString()
}
