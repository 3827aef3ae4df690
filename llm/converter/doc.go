// Package converter translates between the canonical generate-content model
// (contents, parts, candidates, usage metadata) and the OpenAI chat-completion
// wire format.
//
// A Converter holds the tool-call accumulator of a single stream. Allocate
// one per call and call ResetStreamState when a stream starts or fails.
package converter
