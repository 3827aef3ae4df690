package pipeline

import (
	"errors"
	"io"
	"iter"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/converter"
	"github.com/BaSui01/genflow/llm/providers"
)

// streamState is the merge state of a Stream.
type streamState int

const (
	// stateIdle: nothing is held, chunks pass straight through.
	stateIdle streamState = iota
	// stateHoldingFinish: a chunk with a finish reason is held until usage
	// arrives, an ordinary chunk arrives or the backend ends the stream.
	stateHoldingFinish
	// stateClosed: the stream ended, failed or was closed by the caller.
	stateClosed
)

func (s streamState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateHoldingFinish:
		return "holding-finish"
	default:
		return "closed"
	}
}

// Stream is the pull-based result of ExecuteStream. Recv must be called from
// one goroutine at a time; Close may be called from any goroutine.
type Stream struct {
	call    *callScope
	conv    *converter.Converter
	wireReq *providers.ChatCompletionRequest
	reader  providers.ChunkReader

	state   streamState
	pending *llm.GenerateResponse
	ready   []*llm.GenerateResponse
	ended   bool // backend reached EOF
	err     error

	produced  []*llm.GenerateResponse
	raw       []any
	delivered atomic.Int64

	closed   atomic.Bool
	reported atomic.Bool
}

var _ llm.Stream = (*Stream)(nil)

func newStream(call *callScope, conv *converter.Converter, wireReq *providers.ChatCompletionRequest, reader providers.ChunkReader) *Stream {
	return &Stream{
		call:    call,
		conv:    conv,
		wireReq: wireReq,
		reader:  reader,
	}
}

// RequestID returns the id the stream was opened with.
func (s *Stream) RequestID() string { return s.call.rc.RequestID }

// Recv returns the next canonical chunk. It returns io.EOF once every chunk
// has been delivered, the classified error at the point of failure, and
// llm.ErrStreamClosed after Close.
func (s *Stream) Recv() (*llm.GenerateResponse, error) {
	for {
		if s.closed.Load() {
			return nil, llm.ErrStreamClosed
		}
		if len(s.ready) > 0 {
			chunk := s.ready[0]
			s.ready[0] = nil
			s.ready = s.ready[1:]
			s.delivered.Add(1)
			return chunk, nil
		}
		if s.err != nil {
			return nil, s.err
		}
		if s.ended {
			s.complete()
			return nil, io.EOF
		}
		s.advance()
	}
}

// Close releases the transport. A stream closed before it was drained
// records no success event. Close is idempotent.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.reader.Close()
	if !s.reported.Load() {
		s.call.abandon(int(s.delivered.Load()))
		s.call.p.logger.Debug("stream closed by caller",
			zap.String("request_id", s.call.rc.RequestID),
			zap.Int64("delivered", s.delivered.Load()))
	}
	return err
}

// Chunks adapts the stream to a range-over-func sequence. Breaking out of
// the loop closes the stream.
func (s *Stream) Chunks() iter.Seq2[*llm.GenerateResponse, error] {
	return llm.Iterate(s)
}

// advance reads one backend chunk and feeds it through the merge machine.
func (s *Stream) advance() {
	wire, err := s.reader.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.endOfStream()
			return
		}
		s.fail(err)
		return
	}
	s.raw = append(s.raw, wire)

	chunk, err := s.conv.FromChunk(wire)
	if err != nil {
		s.fail(err)
		return
	}
	s.push(chunk)
}

// push applies the merge rules to one converted chunk.
func (s *Stream) push(chunk *llm.GenerateResponse) {
	if chunk.IsEmpty() {
		return
	}
	switch {
	case chunk.FinishReason() != llm.FinishReasonUnspecified:
		// A second finish releases the first one unmerged.
		s.release()
		s.pending = chunk
		s.state = stateHoldingFinish
	case s.state == stateHoldingFinish && chunk.HasUsage():
		s.pending = mergeUsage(s.pending, chunk)
	default:
		s.release()
		s.emit(chunk)
	}
}

// release moves the held chunk, if any, to the ready queue.
func (s *Stream) release() {
	if s.pending != nil {
		s.emit(s.pending)
		s.pending = nil
	}
	s.state = stateIdle
}

func (s *Stream) emit(chunk *llm.GenerateResponse) {
	s.ready = append(s.ready, chunk)
	s.produced = append(s.produced, chunk)
}

// endOfStream runs when the backend finished normally. Tool calls the
// backend never terminated with a finish reason go out before the held
// finish chunk so that the finish stays last.
func (s *Stream) endOfStream() {
	if calls := s.conv.FlushToolCalls(); calls != nil {
		s.emit(calls)
	}
	s.release()
	s.state = stateClosed
	s.ended = true
	_ = s.reader.Close()
}

// complete reports success once the consumer has seen every chunk.
func (s *Stream) complete() {
	if !s.reported.CompareAndSwap(false, true) {
		return
	}
	rc := s.call.rc
	rc.Finish()

	usage := lastUsage(s.produced)
	if usage == nil {
		rc.EstimatedUsage = s.call.p.estimateUsage(rc.Model, s.wireReq, s.produced)
	}
	s.call.p.telemetry.LogStreamingSuccess(rc, s.produced, s.wireReq, s.raw)
	s.call.succeed(usageOf(usage, rc), len(s.produced))
}

// fail is the single error exit. Chunks received before the failure stay
// deliverable; the error follows them.
func (s *Stream) fail(err error) {
	s.conv.ResetStreamState()
	if s.closed.Load() {
		// The caller closed the stream; the read error is a consequence.
		s.err = llm.ErrStreamClosed
		return
	}
	s.release()
	s.state = stateClosed
	s.reported.Store(true)
	s.err = s.call.fail(err, s.wireReq)
	_ = s.reader.Close()
}

// mergeUsage folds a usage chunk into the held finish chunk. The usage
// chunk's metadata wins when present; any parts it carries are appended to
// the candidate with the same index.
func mergeUsage(pending, usage *llm.GenerateResponse) *llm.GenerateResponse {
	merged := *pending
	merged.Candidates = make([]llm.Candidate, len(pending.Candidates))
	copy(merged.Candidates, pending.Candidates)
	if usage.UsageMetadata != nil {
		merged.UsageMetadata = usage.UsageMetadata
	}

	for _, cand := range usage.Candidates {
		if len(cand.Content.Parts) == 0 {
			continue
		}
		i := candidateIndex(merged.Candidates, cand.Index)
		if i < 0 {
			merged.Candidates = append(merged.Candidates, cand)
			continue
		}
		target := merged.Candidates[i]
		parts := make([]llm.Part, 0, len(target.Content.Parts)+len(cand.Content.Parts))
		parts = append(parts, target.Content.Parts...)
		parts = append(parts, cand.Content.Parts...)
		target.Content.Parts = parts
		merged.Candidates[i] = target
	}
	return &merged
}

func candidateIndex(cands []llm.Candidate, index int) int {
	for i, c := range cands {
		if c.Index == index {
			return i
		}
	}
	return -1
}

func lastUsage(chunks []*llm.GenerateResponse) *llm.UsageMetadata {
	for i := len(chunks) - 1; i >= 0; i-- {
		if chunks[i].HasUsage() {
			return chunks[i].UsageMetadata
		}
	}
	return nil
}
