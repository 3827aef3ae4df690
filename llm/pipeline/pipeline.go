package pipeline

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/converter"
	"github.com/BaSui01/genflow/llm/factory"
	"github.com/BaSui01/genflow/llm/observability"
	"github.com/BaSui01/genflow/llm/providers"
	"github.com/BaSui01/genflow/llm/telemetry"
	"github.com/BaSui01/genflow/llm/tokenizer"
)

// DefaultAuthType is reported in telemetry when the config does not name one.
const DefaultAuthType = "api-key"

// Pipeline executes canonical generate calls against one backend. The
// strategy and transport are resolved once in New and never change, so a
// Pipeline is safe for concurrent use.
type Pipeline struct {
	cfg       providers.Config
	strategy  providers.Strategy
	client    providers.Transport
	telemetry telemetry.Logger
	metrics   *observability.Metrics
	logger    *zap.Logger
	convOpts  []converter.Option

	tokenizer  tokenizer.Tokenizer
	tokenizers sync.Map // model -> tokenizer.Tokenizer
}

// New resolves the strategy for cfg and builds its transport client.
// Configuration problems surface here as ErrConfiguration.
func New(cfg providers.Config, opts ...Option) (*Pipeline, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.telemetry == nil {
		o.telemetry = telemetry.NopLogger{}
	}
	if o.registry == nil {
		o.registry = factory.DefaultRegistry(o.logger)
	}

	strategy, err := o.registry.Resolve(cfg)
	if err != nil {
		return nil, llm.Classify(err, nil, nil)
	}
	client, err := strategy.BuildClient()
	if err != nil {
		if e, ok := llm.AsError(err); ok {
			return nil, e
		}
		return nil, llm.NewError(llm.ErrConfiguration, "build transport client").
			WithProvider(strategy.Name()).WithCause(err)
	}

	p := &Pipeline{
		cfg:       cfg,
		strategy:  strategy,
		client:    client,
		telemetry: o.telemetry,
		metrics:   o.metrics,
		logger:    o.logger.With(zap.String("component", "pipeline"), zap.String("provider", strategy.Name())),
		convOpts:  o.convOpts,
		tokenizer: o.tokenizer,
	}
	p.logger.Debug("pipeline ready", zap.String("base_url", cfg.BaseURL), zap.String("model", cfg.Model))
	return p, nil
}

// Provider returns the id of the resolved strategy.
func (p *Pipeline) Provider() string { return p.strategy.Name() }

// Strategy returns the resolved strategy.
func (p *Pipeline) Strategy() providers.Strategy { return p.strategy }

// Execute performs a single-shot call. The returned error, if any, is always
// an *llm.Error and has already been reported to telemetry.
func (p *Pipeline) Execute(ctx context.Context, req *llm.GenerateRequest, requestID string) (*llm.GenerateResponse, error) {
	rc := p.newRequestContext(req, requestID, false)
	attrs := callAttrs(rc)
	ctx, span := p.metrics.StartCall(ctx, attrs)
	call := &callScope{p: p, ctx: ctx, span: span, attrs: attrs, rc: rc, req: req}

	conv := p.newConverter(rc.Model)
	wireReq, err := p.buildRequest(conv, req, requestID, false)
	if err != nil {
		return nil, call.fail(err, backendRequest(wireReq, req))
	}

	p.logger.Debug("executing generate",
		zap.String("request_id", requestID),
		zap.String("model", wireReq.Model),
		zap.Int("messages", len(wireReq.Messages)))

	wireResp, err := p.client.CreateChatCompletion(ctx, wireReq)
	if err != nil {
		return nil, call.fail(err, wireReq)
	}
	if len(wireResp.Choices) == 0 && wireResp.Usage == nil {
		// Nothing to return and nothing to account for.
		return nil, call.fail(llm.NewError(llm.ErrStreamIntegrity, "backend returned no choices").
			WithProvider(p.strategy.Name()).WithHTTPStatus(http.StatusOK), wireReq)
	}

	resp, err := conv.FromChatCompletion(wireResp)
	if err != nil {
		return nil, call.fail(err, wireReq)
	}

	rc.Finish()
	if !resp.HasUsage() {
		rc.EstimatedUsage = p.estimateUsage(rc.Model, wireReq, []*llm.GenerateResponse{resp})
	}
	p.telemetry.LogSuccess(rc, resp, wireReq, wireResp)
	call.succeed(usageOf(resp.UsageMetadata, rc), 0)
	return resp, nil
}

// ExecuteStream opens a streaming call. Nothing beyond the response headers
// is read until the caller pulls from the returned Stream. An error here
// means the stream could not be opened and has already been reported.
func (p *Pipeline) ExecuteStream(ctx context.Context, req *llm.GenerateRequest, requestID string) (*Stream, error) {
	rc := p.newRequestContext(req, requestID, true)
	attrs := callAttrs(rc)
	ctx, span := p.metrics.StartCall(ctx, attrs)
	call := &callScope{p: p, ctx: ctx, span: span, attrs: attrs, rc: rc, req: req}

	conv := p.newConverter(rc.Model)
	conv.ResetStreamState()

	wireReq, err := p.buildRequest(conv, req, requestID, true)
	if err != nil {
		return nil, call.fail(err, backendRequest(wireReq, req))
	}

	p.logger.Debug("opening stream",
		zap.String("request_id", requestID),
		zap.String("model", wireReq.Model))

	reader, err := p.client.CreateChatCompletionStream(ctx, wireReq)
	if err != nil {
		conv.ResetStreamState()
		return nil, call.fail(err, wireReq)
	}
	return newStream(call, conv, wireReq, reader), nil
}

func (p *Pipeline) newRequestContext(req *llm.GenerateRequest, requestID string, streaming bool) *llm.RequestContext {
	model := p.cfg.Model
	if req != nil && req.Model != "" {
		model = req.Model
	}
	authType := strings.TrimSpace(p.cfg.AuthType)
	if authType == "" {
		authType = DefaultAuthType
	}
	return llm.NewRequestContext(requestID, model, p.strategy.Name(), authType, streaming)
}

func (p *Pipeline) newConverter(model string) *converter.Converter {
	opts := append([]converter.Option{converter.WithLogger(p.logger)}, p.convOpts...)
	return converter.New(model, p.cfg.Sampling, opts...)
}

// buildRequest returns the converted request even when the strategy rejects
// it, so the failure can be logged with what was attempted.
func (p *Pipeline) buildRequest(conv *converter.Converter, req *llm.GenerateRequest, requestID string, streaming bool) (*providers.ChatCompletionRequest, error) {
	wireReq, err := conv.ToChatCompletionRequest(req, streaming)
	if err != nil {
		return nil, err
	}
	built, err := p.strategy.BuildRequest(wireReq, requestID)
	if err != nil {
		return wireReq, err
	}
	return built, nil
}

// backendRequest picks the best available request for error telemetry.
func backendRequest(wireReq *providers.ChatCompletionRequest, req *llm.GenerateRequest) any {
	if wireReq != nil {
		return wireReq
	}
	return req
}

func callAttrs(rc *llm.RequestContext) observability.CallAttrs {
	return observability.CallAttrs{
		RequestID: rc.RequestID,
		Provider:  rc.Provider,
		Model:     rc.Model,
		AuthType:  rc.AuthType,
		Streaming: rc.Streaming,
	}
}

// callScope carries what both success and failure paths need to close out
// one call.
type callScope struct {
	p     *Pipeline
	ctx   context.Context
	span  trace.Span
	attrs observability.CallAttrs
	rc    *llm.RequestContext
	req   *llm.GenerateRequest

	endOnce sync.Once
}

// fail classifies err, reports it and closes the span. The classified error
// is returned for the caller to surface.
func (c *callScope) fail(err error, backendReq any) *llm.Error {
	c.rc.Finish()
	classified := llm.Classify(err, c.rc, c.req)
	c.p.telemetry.LogError(c.rc, classified, backendReq)

	status := "error"
	if classified.Kind == llm.ErrCanceled {
		status = "canceled"
	}
	c.end(observability.Outcome{
		Status:    status,
		ErrorKind: string(classified.Kind),
		Duration:  c.rc.Duration,
	})
	c.p.logger.Debug("generate failed",
		zap.String("request_id", c.rc.RequestID),
		zap.String("kind", string(classified.Kind)),
		zap.Error(classified))
	return classified
}

func (c *callScope) succeed(usage *llm.UsageMetadata, chunks int) {
	out := observability.Outcome{
		Status:   "success",
		Chunks:   chunks,
		Duration: c.rc.Duration,
	}
	if usage != nil {
		out.TokensPrompt = usage.PromptTokenCount
		out.TokensCompletion = usage.CandidatesTokenCount
		out.TokensCached = usage.CachedContentTokenCount
		out.UsageEstimated = c.rc.EstimatedUsage != nil && usage == c.rc.EstimatedUsage
	}
	c.end(out)
}

// abandon closes the span of a stream the caller closed early.
func (c *callScope) abandon(chunks int) {
	c.rc.Finish()
	c.end(observability.Outcome{Status: "canceled", Chunks: chunks, Duration: c.rc.Duration})
}

func (c *callScope) end(out observability.Outcome) {
	c.endOnce.Do(func() {
		c.p.metrics.EndCall(c.ctx, c.span, c.attrs, out)
	})
}

// usageOf returns the reported usage, or the estimate when none was reported.
func usageOf(reported *llm.UsageMetadata, rc *llm.RequestContext) *llm.UsageMetadata {
	if reported != nil {
		return reported
	}
	return rc.EstimatedUsage
}
