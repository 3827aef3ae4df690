package providers

import (
	"context"
	"net/http"
)

// Strategy encapsulates one backend family: how to authenticate, which
// client to build and how to adapt a chat-completion request. A Strategy is
// bound to the Config it was constructed from and performs no network I/O.
type Strategy interface {
	// Name is the stable backend id, also used as the provider label in
	// telemetry and errors.
	Name() string

	// BuildHeaders returns the auth and backend-specific headers sent with
	// every request.
	BuildHeaders() http.Header

	// BuildClient returns a transport bound to the base URL, timeout and
	// headers of the config.
	BuildClient() (Transport, error)

	// BuildRequest applies backend-specific normalization. It must not
	// modify req; implementations return a clone.
	BuildRequest(req *ChatCompletionRequest, requestID string) (*ChatCompletionRequest, error)
}

// Transport executes chat-completion calls.
type Transport interface {
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest) (ChunkReader, error)
}

// ChunkReader is a pull-based reader over a streaming response. Recv returns
// io.EOF after the terminal event. Close releases the connection and is safe
// to call more than once.
type ChunkReader interface {
	Recv() (*ChatCompletionChunk, error)
	Close() error
}
