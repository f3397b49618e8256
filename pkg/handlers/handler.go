// Package handlers holds the contracts extension authors implement and the
// immutable registry that maps resource type names to them.
package handlers

import (
	"context"

	"github.com/joeydtaylor/steeze-exthost/pkg/codec"
	"github.com/joeydtaylor/steeze-exthost/pkg/resource"
)

// Handler serves any resource type. A generic binding forwards the raw
// properties document unmodified.
type Handler interface {
	CreateOrUpdate(ctx context.Context, spec *resource.Specification) (*resource.Result, error)
	Preview(ctx context.Context, spec *resource.Specification) (*resource.Result, error)
	Get(ctx context.Context, ref *resource.Reference) (*resource.Result, error)
	Delete(ctx context.Context, ref *resource.Reference) (*resource.Result, error)
}

// TypedHandler serves exactly one resource shape T. Preview must not mutate
// external state.
type TypedHandler[T any] interface {
	CreateOrUpdate(ctx context.Context, req *Request[T]) (*resource.Result, error)
	Preview(ctx context.Context, req *Request[T]) (*resource.Result, error)
	Get(ctx context.Context, ref *resource.Reference) (*resource.Result, error)
	Delete(ctx context.Context, ref *resource.Reference) (*resource.Result, error)
}

// Request is a Specification whose properties were decoded into T.
type Request[T any] struct {
	Resource   T
	Type       string
	APIVersion string
	// Properties is the document Resource was decoded from.
	Properties resource.Document
	Config     resource.Document
}

// Succeeded encodes v with the wire naming convention and wraps it in a
// successful result for this request's type.
func (r *Request[T]) Succeeded(v T, identifiers resource.Document) (*resource.Result, error) {
	props, err := codec.EncodeShape(v)
	if err != nil {
		return nil, err
	}
	return resource.Succeeded(r.Type, r.APIVersion, props, identifiers), nil
}

type typedAdapter[T any] struct {
	h TypedHandler[T]
}

func (a typedAdapter[T]) decode(spec *resource.Specification) (*Request[T], error) {
	req := &Request[T]{
		Type:       spec.Type,
		APIVersion: spec.APIVersion,
		Properties: spec.Properties,
		Config:     spec.Config,
	}
	if err := codec.DecodeShape("properties", spec.Properties, &req.Resource); err != nil {
		return nil, err
	}
	return req, nil
}

func (a typedAdapter[T]) CreateOrUpdate(ctx context.Context, spec *resource.Specification) (*resource.Result, error) {
	req, err := a.decode(spec)
	if err != nil {
		return nil, err
	}
	return a.h.CreateOrUpdate(ctx, req)
}

func (a typedAdapter[T]) Preview(ctx context.Context, spec *resource.Specification) (*resource.Result, error) {
	req, err := a.decode(spec)
	if err != nil {
		return nil, err
	}
	return a.h.Preview(ctx, req)
}

func (a typedAdapter[T]) Get(ctx context.Context, ref *resource.Reference) (*resource.Result, error) {
	return a.h.Get(ctx, ref)
}

func (a typedAdapter[T]) Delete(ctx context.Context, ref *resource.Reference) (*resource.Result, error) {
	return a.h.Delete(ctx, ref)
}
