package handlers

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-multierror"

	"github.com/joeydtaylor/steeze-exthost/pkg/resource"
)

// Registry maps resource type names to bindings. It is built once by New and
// never mutated, so concurrent Resolve calls need no locking.
type Registry struct {
	byName  map[string]Binding
	byShape map[reflect.Type]Binding
	typed   []Binding
	generic *Binding
}

// New classifies and indexes bindings. Every problem found is reported, each
// as a *resource.StartupError, inside one aggregate StartupError.
func New(bindings ...Binding) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]Binding, len(bindings)),
		byShape: make(map[reflect.Type]Binding, len(bindings)),
	}

	var errs *multierror.Error
	if len(bindings) == 0 {
		errs = multierror.Append(errs, resource.NewStartupError(
			resource.CodeInvalidBinding, "no resource handlers were provided", nil))
	}

	for i, b := range bindings {
		if err := b.validate(); err != nil {
			errs = multierror.Append(errs, resource.NewStartupError(
				resource.CodeInvalidBinding, fmt.Sprintf("binding #%d", i), err))
			continue
		}
		switch b.kind {
		case KindGeneric:
			if r.generic != nil {
				errs = multierror.Append(errs, resource.NewStartupError(
					resource.CodeDuplicateHandler, "a generic handler is already registered", nil))
				continue
			}
			g := b
			r.generic = &g
		case KindTyped:
			if _, dup := r.byName[b.name]; dup {
				errs = multierror.Append(errs, resource.NewStartupError(
					resource.CodeDuplicateHandler,
					fmt.Sprintf("a handler for resource type %q is already registered", b.name), nil))
				continue
			}
			r.byName[b.name] = b
			if _, seen := r.byShape[b.shape]; !seen {
				r.byShape[b.shape] = b
			}
			r.typed = append(r.typed, b)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, resource.NewStartupError(resource.CodeStartupConfigFail, "handler registration failed", err)
	}
	return r, nil
}

// Resolve returns the binding registered for name, else the generic binding,
// else a HandlerNotFound error.
func (r *Registry) Resolve(name string) (Binding, error) {
	if b, ok := r.byName[name]; ok {
		return b, nil
	}
	if r.generic != nil {
		return *r.generic, nil
	}
	return Binding{}, resource.NewHandlerNotFound(name)
}

// ResolveShape resolves by declared shape instead of name. Pointer types are
// dereferenced.
func (r *Registry) ResolveShape(t reflect.Type) (Binding, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if b, ok := r.byShape[t]; ok {
		return b, nil
	}
	if r.generic != nil {
		return *r.generic, nil
	}
	name := "<nil>"
	if t != nil {
		name = t.String()
	}
	return Binding{}, resource.NewHandlerNotFound(name)
}

// Typed returns the typed bindings in registration order.
func (r *Registry) Typed() []Binding {
	return append([]Binding(nil), r.typed...)
}

func (r *Registry) Generic() (Binding, bool) {
	if r.generic == nil {
		return Binding{}, false
	}
	return *r.generic, true
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.typed))
	for _, b := range r.typed {
		out = append(out, b.name)
	}
	return out
}
