package handlers

import (
	"fmt"
	"reflect"
)

type Kind int

const (
	KindInvalid Kind = iota
	KindTyped
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindTyped:
		return "typed"
	case KindGeneric:
		return "generic"
	default:
		return "invalid"
	}
}

// Binding declares which resource shape a handler serves. Build one with
// Typed or Generic; the zero value is rejected at registration.
type Binding struct {
	kind    Kind
	name    string
	shape   reflect.Type
	handler Handler
	invalid string
}

type Option func(*Binding)

// WithTypeName overrides the resource type name, which defaults to the Go
// type name of the shape.
func WithTypeName(name string) Option { return func(b *Binding) { b.name = name } }

// Typed binds h to the resource shape T.
func Typed[T any](h TypedHandler[T], opts ...Option) Binding {
	shape := reflect.TypeFor[T]()
	b := Binding{kind: KindTyped, shape: shape, name: shape.Name()}
	for _, o := range opts {
		o(&b)
	}
	switch {
	case h == nil:
		b.invalid = "typed handler is nil"
	case shape.Kind() != reflect.Struct:
		b.invalid = fmt.Sprintf("resource shape %s must be a struct", shape)
	case b.name == "":
		b.invalid = fmt.Sprintf("resource shape %s has no name; use WithTypeName", shape)
	default:
		b.handler = typedAdapter[T]{h: h}
	}
	return b
}

// Generic binds h as the fallback for every type without a typed binding.
func Generic(h Handler) Binding {
	b := Binding{kind: KindGeneric, handler: h}
	if h == nil {
		b.invalid = "generic handler is nil"
	}
	return b
}

func (b Binding) Kind() Kind          { return b.kind }
func (b Binding) Name() string        { return b.name }
func (b Binding) Shape() reflect.Type { return b.shape }
func (b Binding) Handler() Handler    { return b.handler }
func (b Binding) IsGeneric() bool     { return b.kind == KindGeneric }

func (b Binding) validate() error {
	if b.kind == KindInvalid {
		return fmt.Errorf("binding is neither typed nor generic")
	}
	if b.invalid != "" {
		return fmt.Errorf("%s binding %q: %s", b.kind, b.name, b.invalid)
	}
	return nil
}

func (b Binding) String() string {
	if b.kind == KindGeneric {
		return "generic"
	}
	return fmt.Sprintf("%s(%s)", b.kind, b.name)
}
