package email

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// NamedBuilderFunc populates a message from typed arguments.
type NamedBuilderFunc[T any] func(ctx context.Context, m *Message, args T) error

type rawBuilder func(ctx context.Context, m *Message, args json.RawMessage) error

// Builders is a registry of named message builders. Registering the same
// builders in the process that enqueues and the one that works the queue is
// what lets a Named callback be rebuilt on the other side.
type Builders struct {
	mu       sync.RWMutex
	builders map[string]rawBuilder
}

// NewBuilders returns an empty registry.
func NewBuilders() *Builders {
	return &Builders{builders: make(map[string]rawBuilder)}
}

// RegisterBuilder adds a typed builder under name. Args are decoded from JSON
// into T before fn is called; a builder without arguments can use struct{}.
func RegisterBuilder[T any](b *Builders, name string, fn NamedBuilderFunc[T]) error {
	if b == nil || fn == nil || name == "" {
		return fmt.Errorf("%w: builder name and function are required", ErrInvalidArgument)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.builders[name]; exists {
		return fmt.Errorf("%w: %s", ErrBuilderRegistered, name)
	}

	b.builders[name] = func(ctx context.Context, m *Message, raw json.RawMessage) error {
		var args T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return fmt.Errorf("%w: failed to decode args for builder %q: %v", ErrInvalidCallback, name, err)
			}
		}
		return fn(ctx, m, args)
	}
	return nil
}

// MustRegisterBuilder is like RegisterBuilder but panics on error.
func MustRegisterBuilder[T any](b *Builders, name string, fn NamedBuilderFunc[T]) {
	if err := RegisterBuilder(b, name, fn); err != nil {
		panic(err)
	}
}

// Has reports whether a builder is registered under name.
func (b *Builders) Has(name string) bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.builders[name]
	return ok
}

// Names returns the registered builder names, sorted.
func (b *Builders) Names() []string {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.builders))
	for name := range b.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Builders) build(ctx context.Context, name string, m *Message, args json.RawMessage) error {
	if b == nil {
		return fmt.Errorf("%w: %s", ErrBuilderNotFound, name)
	}
	b.mu.RLock()
	fn, ok := b.builders[name]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrBuilderNotFound, name)
	}
	return fn(ctx, m, args)
}
