package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
)

// callFlags are shared by generate and stream.
type callFlags struct {
	configPath  string
	prompt      string
	system      string
	requestPath string
	model       string
	jsonOut     bool
	metricsAddr string
	linger      time.Duration
}

func parseCallFlags(name string, args []string) (*callFlags, error) {
	f := &callFlags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.configPath, "config", "", "Path to config file")
	fs.StringVar(&f.prompt, "prompt", "", "User prompt text")
	fs.StringVar(&f.system, "system", "", "System instruction")
	fs.StringVar(&f.requestPath, "request", "", `JSON request file, "-" for stdin`)
	fs.StringVar(&f.model, "model", "", "Override the configured model")
	fs.BoolVar(&f.jsonOut, "json", false, "Print JSON instead of text")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve /metrics on this address")
	fs.DurationVar(&f.linger, "linger", 0, "Keep /metrics up this long after the call")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if fs.NArg() > 0 && f.prompt == "" {
		f.prompt = fs.Arg(0)
	}
	return f, nil
}

// buildRequest reads the request file or assembles one from the prompt flags.
func buildRequest(f *callFlags, stdin io.Reader) (*llm.GenerateRequest, error) {
	var req llm.GenerateRequest
	switch {
	case f.requestPath != "":
		var (
			data []byte
			err  error
		)
		if f.requestPath == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(f.requestPath)
		}
		if err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("parse request: %w", err)
		}
	case f.prompt != "":
		req.Contents = []llm.Content{llm.NewUserText(f.prompt)}
	default:
		return nil, errors.New("either --prompt or --request is required")
	}

	if f.system != "" {
		req.SystemInstruction = &llm.Content{Parts: []llm.Part{llm.NewTextPart(f.system)}}
	}
	if f.model != "" {
		req.Model = f.model
	}
	if len(req.Contents) == 0 {
		return nil, errors.New("request has no contents")
	}
	return &req, nil
}

// =============================================================================
// ✨ generate command
// =============================================================================

func runGenerate(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	f, err := parseCallFlags("generate", args)
	if err != nil {
		return err
	}
	req, err := buildRequest(f, stdin)
	if err != nil {
		return err
	}

	a, err := newApp(f)
	if err != nil {
		return err
	}
	defer a.close(ctx, f.linger)

	resp, err := a.pipeline.Execute(ctx, req, uuid.NewString())
	if err != nil {
		return err
	}
	a.track(a.model(req), resp.UsageMetadata)

	if f.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResponse(stdout, resp)
	fmt.Fprintln(stdout)
	return nil
}

// =============================================================================
// 🌊 stream command
// =============================================================================

func runStream(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	f, err := parseCallFlags("stream", args)
	if err != nil {
		return err
	}
	req, err := buildRequest(f, stdin)
	if err != nil {
		return err
	}

	a, err := newApp(f)
	if err != nil {
		return err
	}
	defer a.close(ctx, f.linger)

	stream, err := a.pipeline.ExecuteStream(ctx, req, uuid.NewString())
	if err != nil {
		return err
	}
	defer stream.Close()

	enc := json.NewEncoder(stdout)
	var usage *llm.UsageMetadata
	for chunk, err := range stream.Chunks() {
		if err != nil {
			fmt.Fprintln(stdout)
			return err
		}
		if chunk.HasUsage() {
			usage = chunk.UsageMetadata
		}
		if f.jsonOut {
			if err := enc.Encode(chunk); err != nil {
				return err
			}
			continue
		}
		printResponse(stdout, chunk)
	}
	a.track(a.model(req), usage)
	a.logger.Debug("stream finished", zap.String("request_id", stream.RequestID()))
	if !f.jsonOut {
		fmt.Fprintln(stdout)
	}
	return nil
}

// printResponse writes the text of resp followed by any function calls.
func printResponse(w io.Writer, resp *llm.GenerateResponse) {
	fmt.Fprint(w, resp.Text())
	for _, call := range resp.FunctionCalls() {
		args, _ := json.Marshal(call.Args)
		fmt.Fprintf(w, "\n[call %s] %s(%s)", call.ID, call.Name, args)
	}
}
