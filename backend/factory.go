package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Builder constructs a live backend from a validated config.
type Builder func(cfg Config) (Backend, error)

// Factory maps provider kinds to builders. It is safe for concurrent use and
// is injected wherever backends are resolved instead of living as a package
// level singleton.
type Factory struct {
	mu       sync.RWMutex
	builders map[Kind]Builder
}

// NewFactory constructs an empty factory. Providers register themselves via Register.
func NewFactory() *Factory {
	return &Factory{builders: make(map[Kind]Builder)}
}

// Register adds (or replaces) the builder for a provider kind.
func (f *Factory) Register(kind Kind, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[kind] = b
}

// Create validates the config and builds a live backend for it.
func (f *Factory) Create(cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	b, ok := f.builders[cfg.Kind]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
	return b(cfg)
}

// Kinds returns the registered provider kinds in sorted order.
func (f *Factory) Kinds() []Kind {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]Kind, 0, len(f.builders))
	for k := range f.builders {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
