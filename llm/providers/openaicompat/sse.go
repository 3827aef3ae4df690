package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// streamEvent is a chunk that may carry an in-band error instead of choices.
type streamEvent struct {
	providers.ChatCompletionChunk
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// sseReader parses an SSE body one event per Recv. Nothing is read ahead.
type sseReader struct {
	ctx      context.Context
	body     io.ReadCloser
	reader   *bufio.Reader
	provider string

	done      bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ providers.ChunkReader = (*sseReader)(nil)

func newSSEReader(ctx context.Context, body io.ReadCloser, provider string) *sseReader {
	return &sseReader{
		ctx:      ctx,
		body:     body,
		reader:   bufio.NewReaderSize(body, 64<<10),
		provider: provider,
	}
}

// Recv returns the next chunk, io.EOF after [DONE] or a clean end of body.
func (r *sseReader) Recv() (*providers.ChatCompletionChunk, error) {
	if r.closed.Load() {
		return nil, llm.ErrStreamClosed
	}
	if r.done {
		return nil, io.EOF
	}

	for {
		line, err := r.reader.ReadBytes('\n')
		if len(line) > 0 {
			chunk, ok, perr := r.parseLine(line)
			if perr != nil {
				return nil, perr
			}
			if ok {
				return chunk, nil
			}
			if r.done {
				return nil, io.EOF
			}
		}
		if err != nil {
			return nil, r.readError(err)
		}
	}
}

func (r *sseReader) parseLine(line []byte) (*providers.ChatCompletionChunk, bool, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || !bytes.HasPrefix(line, dataPrefix) {
		// Comments, event names and keep-alives.
		return nil, false, nil
	}
	data := bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))
	if len(data) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(data, doneMarker) {
		r.done = true
		return nil, false, nil
	}

	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, false, llm.NewError(llm.ErrStreamIntegrity, "malformed stream chunk").
			WithProvider(r.provider).WithRaw(bytes.Clone(data)).WithCause(err)
	}
	if ev.Error != nil && ev.Error.Message != "" {
		msg := ev.Error.Message
		if ev.Error.Type != "" {
			msg = fmt.Sprintf("%s (type: %s)", msg, ev.Error.Type)
		}
		return nil, false, llm.NewError(llm.ErrUpstream, msg).WithProvider(r.provider).WithRaw(bytes.Clone(data))
	}
	chunk := ev.ChatCompletionChunk
	return &chunk, true, nil
}

func (r *sseReader) readError(err error) error {
	if errors.Is(err, io.EOF) {
		// Some backends close the body without a [DONE] marker.
		r.done = true
		return io.EOF
	}
	if r.closed.Load() {
		return llm.ErrStreamClosed
	}
	if ctxErr := r.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("read %s stream: %w", r.provider, err)
}

// Close releases the body. It may be called concurrently with Recv.
func (r *sseReader) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		r.closeErr = r.body.Close()
	})
	return r.closeErr
}
