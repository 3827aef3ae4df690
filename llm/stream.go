package llm

import (
	"errors"
	"io"
	"iter"
)

// Stream is a pull-based sequence of canonical chunks. The producer does no
// work until Recv is called. Recv returns io.EOF once the stream finished
// normally; any other error is classified and terminal. Close releases the
// underlying transport and may be called at any time, more than once.
type Stream interface {
	Recv() (*GenerateResponse, error)
	Close() error
}

// ErrStreamClosed is returned by Recv after Close.
var ErrStreamClosed = errors.New("llm: stream closed")

// Iterate adapts a Stream to a range-over-func sequence. Breaking out of the
// loop closes the stream. A terminal error is yielded once as the last pair.
func Iterate(s Stream) iter.Seq2[*GenerateResponse, error] {
	return func(yield func(*GenerateResponse, error) bool) {
		defer s.Close()
		for {
			chunk, err := s.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(nil, err)
				}
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// Collect drains a stream and returns every chunk received before the
// first error. The stream is closed on return.
func Collect(s Stream) ([]*GenerateResponse, error) {
	var out []*GenerateResponse
	for chunk, err := range Iterate(s) {
		if err != nil {
			return out, err
		}
		out = append(out, chunk)
	}
	return out, nil
}
