package converter

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

// MaxToolArgBytes is the default upper bound for buffered argument
// fragments per tool call.
const MaxToolArgBytes = 1 << 20 // 1 MB

type pendingCall struct {
	id        string
	name      string
	args      strings.Builder
	truncated bool
}

// ToolCallAccumulator assembles tool calls whose name and arguments arrive
// split across stream chunks. It belongs to exactly one stream.
type ToolCallAccumulator struct {
	calls map[int]*pendingCall
	// current maps a wire index to the key of the call it currently feeds.
	// The two differ once an index is reused for a new call id.
	current     map[int]int
	nextKey     int
	maxArgBytes int
	logger      *zap.Logger
}

// NewToolCallAccumulator returns an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{
		calls:       make(map[int]*pendingCall),
		current:     make(map[int]int),
		maxArgBytes: MaxToolArgBytes,
		logger:      zap.NewNop(),
	}
}

// Add buffers one fragment. position is the fragment's offset within its
// chunk and stands in for a missing index.
func (a *ToolCallAccumulator) Add(tc providers.ToolCall, position int) {
	wire := position
	if tc.Index != nil {
		wire = *tc.Index
	}

	key, seen := a.current[wire]
	if !seen {
		key = wire
		if _, taken := a.calls[key]; taken {
			// A moved call already sits on this key.
			key = a.freeKey(key)
		}
	}

	call, ok := a.calls[key]
	if ok && tc.ID != "" && call.id != "" && tc.ID != call.id {
		// Same index reused for a different call. Id-less fragments that
		// follow belong to the new call.
		key = a.freeKey(key)
		ok = false
	}
	if !ok {
		call = &pendingCall{}
		a.calls[key] = call
		if key >= a.nextKey {
			a.nextKey = key + 1
		}
	}
	a.current[wire] = key

	if tc.ID != "" {
		call.id = tc.ID
	}
	if tc.Function.Name != "" {
		call.name = tc.Function.Name
	}
	if tc.Function.Arguments == "" || call.truncated {
		return
	}
	if call.args.Len()+len(tc.Function.Arguments) > a.maxArgBytes {
		a.logger.Warn("tool call arguments exceed buffer limit, dropping remainder",
			zap.String("tool", call.name),
			zap.Int("buffered", call.args.Len()),
			zap.Int("limit", a.maxArgBytes))
		call.truncated = true
		return
	}
	call.args.WriteString(tc.Function.Arguments)
}

func (a *ToolCallAccumulator) freeKey(from int) int {
	key := max(from, a.nextKey)
	for {
		if _, used := a.calls[key]; !used {
			return key
		}
		key++
	}
}

// Len returns the number of buffered calls.
func (a *ToolCallAccumulator) Len() int { return len(a.calls) }

// Flush returns the buffered calls as function-call parts ordered by index
// and clears the accumulator. Calls without a name are dropped.
func (a *ToolCallAccumulator) Flush(newID func() string) []llm.Part {
	if len(a.calls) == 0 {
		return nil
	}
	keys := make([]int, 0, len(a.calls))
	for k := range a.calls {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	parts := make([]llm.Part, 0, len(keys))
	for _, k := range keys {
		call := a.calls[k]
		if call.name == "" {
			a.logger.Debug("dropping unnamed streamed tool call", zap.Int("index", k))
			continue
		}
		id := call.id
		if id == "" {
			id = newID()
		}
		parts = append(parts, llm.NewFunctionCallPart(id, call.name, parseArgs(call.args.String())))
	}
	a.Reset()
	return parts
}

// Reset discards every buffered fragment.
func (a *ToolCallAccumulator) Reset() {
	clear(a.calls)
	clear(a.current)
	a.nextKey = 0
}
