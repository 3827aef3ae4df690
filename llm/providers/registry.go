package providers

import (
	"fmt"
	"strings"

	"github.com/BaSui01/genflow/llm"
)

// Entry is one (predicate, constructor) pair of a Registry.
type Entry struct {
	Name  string
	Match func(Config) bool
	New   func(Config) (Strategy, error)
}

// Registry resolves a Config to exactly one Strategy. Entries are tried in
// registration order and the first match wins; when nothing matches the
// fallback constructor is used. A Registry is read-only after construction
// and safe for concurrent use.
type Registry struct {
	entries  []Entry
	fallback Entry
}

// NewRegistry builds a registry. fallback.Match is ignored.
func NewRegistry(fallback Entry, entries ...Entry) (*Registry, error) {
	if fallback.New == nil {
		return nil, fmt.Errorf("registry: fallback constructor is required")
	}
	seen := make(map[string]struct{}, len(entries)+1)
	seen[fallback.Name] = struct{}{}
	for i, e := range entries {
		if e.Match == nil || e.New == nil {
			return nil, fmt.Errorf("registry: entry %d (%s) needs both Match and New", i, e.Name)
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate entry %q", e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	return &Registry{entries: append([]Entry(nil), entries...), fallback: fallback}, nil
}

// Select returns the entry that cfg resolves to without constructing it.
func (r *Registry) Select(cfg Config) Entry {
	for _, e := range r.entries {
		if e.Match(cfg) {
			return e
		}
	}
	return r.fallback
}

// Resolve validates cfg and constructs its strategy.
func (r *Registry) Resolve(cfg Config) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := r.Select(cfg)
	s, err := e.New(cfg)
	if err != nil {
		if _, ok := llm.AsError(err); ok {
			return nil, err
		}
		return nil, llm.Errorf(llm.ErrConfiguration, "build %s strategy", e.Name).WithProvider(e.Name).WithCause(err)
	}
	return s, nil
}

// Names lists entries in match order, fallback last.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.entries)+1)
	for _, e := range r.entries {
		out = append(out, e.Name)
	}
	return append(out, r.fallback.Name)
}

// HostMatcher matches configs whose explicit name is one of names or whose
// base URL host equals or ends with one of hostSuffixes. A name that matches
// nothing does not turn off the host check.
func HostMatcher(names []string, hostSuffixes ...string) func(Config) bool {
	return func(cfg Config) bool {
		if cfg.NameIs(names...) {
			return true
		}
		host := cfg.Host()
		if host == "" {
			return false
		}
		for _, suffix := range hostSuffixes {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
		}
		return false
	}
}
