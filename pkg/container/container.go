package container

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Factory builds a service. It receives the container so it can resolve
// its own dependencies.
type Factory func(c *Container) (any, error)

type binding struct {
	factory Factory
	shared  bool

	once     sync.Once
	instance any
	err      error
}

// Container is a named-service registry. It is safe for concurrent use.
type Container struct {
	mu       sync.RWMutex
	bindings map[string]*binding
	aliases  map[string]string
}

// New returns an empty container.
func New() *Container {
	return &Container{
		bindings: make(map[string]*binding),
		aliases:  make(map[string]string),
	}
}

// Bind registers a factory called on every Resolve. A later registration
// under the same name replaces the earlier one.
func (c *Container) Bind(name string, factory Factory) {
	c.register(name, &binding{factory: factory})
}

// Singleton registers a factory called at most once; its result, error
// included, is shared by every Resolve.
func (c *Container) Singleton(name string, factory Factory) {
	c.register(name, &binding{factory: factory, shared: true})
}

// Instance registers an already built service.
func (c *Container) Instance(name string, service any) {
	b := &binding{shared: true, instance: service}
	b.once.Do(func() {})
	c.register(name, b)
}

// Alias makes alias resolve to the service registered under name.
func (c *Container) Alias(alias, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliases[alias] = name
}

// Has reports whether name, or the target of an alias, is registered.
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bindings[c.canonical(name)]
	return ok
}

// Names returns registered service names, sorted. Aliases are not included.
func (c *Container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.bindings))
	for name := range c.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the service registered under name.
func (c *Container) Resolve(name string) (any, error) {
	c.mu.RLock()
	canonical := c.canonical(name)
	b, ok := c.bindings[canonical]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}

	if !b.shared {
		return c.build(canonical, b.factory)
	}

	b.once.Do(func() {
		b.instance, b.err = c.build(canonical, b.factory)
	})
	return b.instance, b.err
}

func (c *Container) build(name string, factory Factory) (any, error) {
	svc, err := factory(c)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%w: %s", ErrServiceFactory, name), err)
	}
	return svc, nil
}

func (c *Container) register(name string, b *binding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.aliases, name)
	c.bindings[name] = b
}

// canonical follows aliases; callers hold c.mu.
func (c *Container) canonical(name string) string {
	for range len(c.aliases) + 1 {
		target, ok := c.aliases[name]
		if !ok {
			return name
		}
		name = target
	}
	return name
}

// Resolve returns the service registered under name as T.
func Resolve[T any](c *Container, name string) (T, error) {
	var zero T
	svc, err := c.Resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T, not %T", ErrServiceType, name, svc, zero)
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](c *Container, name string) T {
	svc, err := Resolve[T](c, name)
	if err != nil {
		panic(err)
	}
	return svc
}

// Optional resolves name as T, returning the zero value when nothing is
// registered. Other failures are returned.
func Optional[T any](c *Container, name string) (T, error) {
	var zero T
	if !c.Has(name) {
		return zero, nil
	}
	return Resolve[T](c, name)
}
