package email

import (
	"context"
	"encoding/json"
	"fmt"
)

// BuilderFunc populates a message: recipients, subject, anything the view does not.
type BuilderFunc func(ctx context.Context, m *Message) error

// Collaborator is a named service capable of populating a message.
type Collaborator interface {
	Mail(ctx context.Context, m *Message) error
}

// Resolver looks up named services, typically a *container.Container.
type Resolver interface {
	Resolve(name string) (any, error)
}

type callbackKind uint8

const (
	callbackNone callbackKind = iota
	callbackFunc
	callbackService
	callbackBuilder
)

// Descriptor kinds as they appear in queued jobs.
const (
	CallbackKindService = "service"
	CallbackKindBuilder = "builder"
)

// Callback is a tagged variant describing how a message gets populated:
// an in-process function, a collaborator looked up by name, or a registered
// builder addressed by name with JSON-encoded arguments.
// Only the last two survive a queue boundary.
type Callback struct {
	kind callbackKind
	fn   BuilderFunc
	name string
	args json.RawMessage
}

// Func wraps an in-process function. It can be sent, but not queued.
func Func(fn BuilderFunc) Callback {
	if fn == nil {
		return Callback{}
	}
	return Callback{kind: callbackFunc, fn: fn}
}

// Service refers to a Collaborator registered under name in the container.
func Service(name string) Callback {
	if name == "" {
		return Callback{}
	}
	return Callback{kind: callbackService, name: name}
}

// Named refers to a builder registered with RegisterBuilder, bound to args.
// Args are JSON-encoded right away so the callback can be queued as is.
func Named(name string, args any) (Callback, error) {
	if name == "" {
		return Callback{}, fmt.Errorf("%w: builder name is required", ErrInvalidCallback)
	}
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return Callback{}, fmt.Errorf("%w: failed to encode builder args of type %T: %v", ErrInvalidCallback, args, err)
		}
		raw = b
	}
	return Callback{kind: callbackBuilder, name: name, args: raw}, nil
}

// MustNamed is like Named but panics on encoding failure.
func MustNamed(name string, args any) Callback {
	cb, err := Named(name, args)
	if err != nil {
		panic(err)
	}
	return cb
}

// IsZero reports whether the callback carries nothing invocable.
func (c Callback) IsZero() bool {
	return c.kind == callbackNone
}

// Name returns the service or builder name, empty for functions.
func (c Callback) Name() string {
	return c.name
}

// Queueable reports whether the callback can be serialized into a job.
func (c Callback) Queueable() bool {
	return c.kind == callbackService || c.kind == callbackBuilder
}

func (c Callback) String() string {
	switch c.kind {
	case callbackFunc:
		return "func"
	case callbackService:
		return CallbackKindService + ":" + c.name
	case callbackBuilder:
		return CallbackKindBuilder + ":" + c.name
	default:
		return "none"
	}
}

// CallbackDescriptor is the transportable form of a Callback.
type CallbackDescriptor struct {
	Kind string          `json:"kind"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Descriptor converts the callback into its transportable form.
func (c Callback) Descriptor() (CallbackDescriptor, error) {
	switch c.kind {
	case callbackService:
		return CallbackDescriptor{Kind: CallbackKindService, Name: c.name}, nil
	case callbackBuilder:
		return CallbackDescriptor{Kind: CallbackKindBuilder, Name: c.name, Args: c.args}, nil
	case callbackFunc:
		return CallbackDescriptor{}, fmt.Errorf("%w: register the function with RegisterBuilder and use Named", ErrCallbackNotSerializable)
	default:
		return CallbackDescriptor{}, ErrInvalidCallback
	}
}

// Callback rebuilds an invocable callback from its descriptor.
func (d CallbackDescriptor) Callback() (Callback, error) {
	if d.Name == "" {
		return Callback{}, fmt.Errorf("%w: descriptor has no name", ErrInvalidCallback)
	}
	switch d.Kind {
	case CallbackKindService:
		return Service(d.Name), nil
	case CallbackKindBuilder:
		return Callback{kind: callbackBuilder, name: d.Name, args: d.Args}, nil
	default:
		return Callback{}, fmt.Errorf("%w: unknown descriptor kind %q", ErrInvalidCallback, d.Kind)
	}
}
