package templates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/a-h/templ"
)

var (
	ErrViewNotFound   = errors.New("templates.errors.view_not_found")
	ErrInvalidView    = errors.New("templates.errors.invalid_view")
	ErrFailedToRender = errors.New("templates.errors.failed_to_render")
)

// ViewFunc builds a component from the view data.
type ViewFunc func(data map[string]any) templ.Component

// Registry maps view names to templ components. It satisfies email.Renderer.
type Registry struct {
	mu    sync.RWMutex
	views map[string]ViewFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string]ViewFunc)}
}

// Register adds or replaces the view stored under name.
func (r *Registry) Register(name string, fn ViewFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("%w: name and view function are required", ErrInvalidView)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[name] = fn
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, fn ViewFunc) *Registry {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
	return r
}

// Has reports whether a view is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.views[name]
	return ok
}

// Names returns the registered view names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.views))
	for name := range r.views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render renders the view registered under view with data.
func (r *Registry) Render(ctx context.Context, view string, data map[string]any) (string, error) {
	r.mu.RLock()
	fn, ok := r.views[view]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrViewNotFound, view)
	}

	component := fn(data)
	if component == nil {
		return "", fmt.Errorf("%w: view %s returned no component", ErrFailedToRender, view)
	}

	out, err := Render(ctx, component)
	if err != nil {
		return "", errors.Join(fmt.Errorf("%w: %s", ErrFailedToRender, view), err)
	}
	return out, nil
}
