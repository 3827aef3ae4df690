// =============================================================================
// genflow 命令行入口
// =============================================================================
//
// 使用方法:
//
//	genflow generate --prompt "hello"                 # 单次调用
//	genflow stream --config genflow.yaml --prompt hi  # 流式调用
//	genflow generate --request req.json --json        # 从文件读取请求
//	genflow providers                                 # 列出后端策略
//	genflow version                                   # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/genflow/config"
	"github.com/BaSui01/genflow/llm/factory"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run 分发子命令并返回进程退出码。
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "generate":
		err = runGenerate(ctx, args[1:], stdin, stdout)
	case "stream":
		err = runStream(ctx, args[1:], stdin, stdout)
	case "providers":
		err = runProviders(args[1:], stdout)
	case "version":
		printVersion(stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "genflow %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

// runProviders 列出内置策略。带 --resolve 时加载配置，
// 改为输出该配置解析到的策略。
func runProviders(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("providers", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "Path to config file")
	resolve := fs.Bool("resolve", false, "Print the strategy the config resolves to")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("providers: %w", err)
	}

	if !*resolve {
		for _, name := range factory.SupportedProviders() {
			fmt.Fprintln(w, name)
		}
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	strategy, err := factory.NewStrategy(cfg.Provider.ToProviderConfig(), zap.NewNop())
	if err != nil {
		return err
	}
	fmt.Fprintln(w, strategy.Name())
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `genflow - canonical generate calls against chat-completion backends

Usage:
  genflow <command> [options]

Commands:
  generate    Run a single-shot call
  stream      Run a streaming call, printing text as it arrives
  providers   List built-in backend strategies (--resolve: show the one
              the config selects)
  version     Show version information
  help        Show this help

Options (generate, stream):
  --config        Path to YAML config file
  --prompt        User prompt text
  --system        System instruction
  --request       JSON request file, "-" for stdin
  --model         Override the configured model
  --json          Print the full JSON response (chunks for stream)
  --metrics-addr  Serve /metrics on this address
  --linger        Keep /metrics up this long after the call

Environment:
  Every config key can be set as GENFLOW_<SECTION>_<KEY>, e.g.
  GENFLOW_PROVIDER_BASE_URL, GENFLOW_PROVIDER_API_KEY, GENFLOW_LOG_LEVEL.
`)
}

// =============================================================================
// 🔧 日志
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Format == "console",
		Encoding:          "json",
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
