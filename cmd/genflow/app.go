package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/config"
	"github.com/BaSui01/genflow/internal/metrics"
	"github.com/BaSui01/genflow/internal/server"
	otelsetup "github.com/BaSui01/genflow/internal/telemetry"
	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/observability"
	"github.com/BaSui01/genflow/llm/pipeline"
	"github.com/BaSui01/genflow/llm/telemetry"
	"github.com/BaSui01/genflow/llm/tokenizer"
)

// tokenizerPreloadTimeout bounds the startup download of tiktoken data.
const tokenizerPreloadTimeout = 10 * time.Second

// app owns everything one CLI invocation needs and tears it down in order.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	otel          *otelsetup.Providers
	registry      *prometheus.Registry
	collector     *metrics.Collector
	reporter      *telemetry.Reporter
	costs         *observability.CostTracker
	metricsServer *server.Manager

	pipeline *pipeline.Pipeline
}

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader().WithValidator((*config.Config).Validate)
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newApp wires config, logging, OTel, Prometheus, the telemetry reporter and
// the pipeline. On error everything already started is shut down again.
func newApp(f *callFlags) (a *app, err error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = f.metricsAddr
	}

	logger := initLogger(cfg.Log)
	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close(context.Background(), 0)
		}
	}()

	logger.Debug("starting genflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	a.otel, err = otelsetup.Init(cfg.Telemetry, logger)
	if err != nil {
		// Exporter problems must not block the call itself.
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		a.otel = nil
	}

	prices := observability.NewCostCalculator()
	otelMetrics, err := observability.NewMetrics(
		observability.WithTracerProvider(a.otel.TracerProvider()),
		observability.WithMeterProvider(a.otel.MeterProvider()),
		observability.WithCostCalculator(prices),
	)
	if err != nil {
		return a, fmt.Errorf("create otel instruments: %w", err)
	}
	a.costs = observability.NewCostTracker(prices)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.collector = metrics.NewCollector(cfg.Metrics.Namespace, a.registry, logger)

	sinks := []telemetry.Sink{
		telemetry.NewZapSink(logger, telemetry.WithPayloads(cfg.Reporter.LogPayloads)),
		telemetry.NewMetricsSink(a.collector, prices),
	}
	a.reporter = telemetry.NewReporter(cfg.Reporter.ToReporterConfig(), logger, sinks,
		telemetry.WithDropHook(a.collector.RecordTelemetryDrop))
	if err = a.reporter.Start(); err != nil {
		return a, fmt.Errorf("start telemetry reporter: %w", err)
	}

	if cfg.Metrics.Enabled {
		srvCfg := server.DefaultConfig()
		srvCfg.Addr = cfg.Metrics.Addr
		a.metricsServer = server.NewManager(server.MetricsHandler(a.registry), srvCfg, logger)
		if err = a.metricsServer.Start(); err != nil {
			return a, fmt.Errorf("start metrics server: %w", err)
		}
	}

	if cfg.Provider.PreloadTokenizer {
		pctx, cancel := context.WithTimeout(context.Background(), tokenizerPreloadTimeout)
		if perr := tokenizer.Preload(pctx, cfg.Provider.Model); perr != nil {
			logger.Warn("tokenizer preload failed, usage estimates stay approximate",
				zap.String("model", cfg.Provider.Model), zap.Error(perr))
		}
		cancel()
	}

	a.pipeline, err = pipeline.New(cfg.Provider.ToProviderConfig(),
		pipeline.WithLogger(logger),
		pipeline.WithTelemetry(telemetry.NewRecorder(a.reporter, logger)),
		pipeline.WithMetrics(otelMetrics),
	)
	if err != nil {
		return a, err
	}
	return a, nil
}

// track adds reported usage to the session cost summary.
func (a *app) track(model string, usage *llm.UsageMetadata) {
	if usage == nil {
		return
	}
	a.costs.Track(a.pipeline.Provider(), model, usage.PromptTokenCount, usage.CandidatesTokenCount)
}

// model returns the model a request will be sent with.
func (a *app) model(req *llm.GenerateRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return a.cfg.Provider.Model
}

// close flushes telemetry, keeps /metrics up for linger and shuts down the
// rest. It is safe on a partially built app.
func (a *app) close(ctx context.Context, linger time.Duration) {
	timeout := a.cfg.Reporter.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultReporterSettings().ShutdownTimeout
	}

	if a.reporter != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.reporter.Flush(flushCtx); err != nil {
			a.logger.Warn("telemetry flush failed", zap.Error(err))
		}
		cancel()
	}

	if a.metricsServer != nil {
		if linger > 0 {
			a.logger.Info("serving metrics until linger expires",
				zap.String("addr", a.metricsServer.Addr()),
				zap.Duration("linger", linger))
			lingerCtx, cancel := context.WithTimeout(ctx, linger)
			a.metricsServer.WaitForShutdown(lingerCtx)
			cancel()
		} else if err := a.metricsServer.Shutdown(context.Background()); err != nil {
			a.logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if a.reporter != nil {
		if err := a.reporter.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("telemetry reporter shutdown failed", zap.Error(err))
		}
		stats := a.reporter.Stats()
		a.logger.Debug("telemetry reporter stopped",
			zap.Int64("delivered", stats.Delivered),
			zap.Int64("dropped", stats.Dropped))
	}
	if err := a.otel.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}

	if a.costs != nil {
		if s := a.costs.Summary(); s.RequestCount > 0 {
			a.logger.Info("session cost",
				zap.Int("requests", s.RequestCount),
				zap.Int("tokens_input", s.TokensInput),
				zap.Int("tokens_output", s.TokensOutput),
				zap.Float64("total_cost", s.TotalCost))
		}
	}
	_ = a.logger.Sync()
}
