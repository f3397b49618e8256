package main

import (
	"context"
	"errors"
	"sync"

	"github.com/joeydtaylor/steeze-exthost/pkg/handlers"
	"github.com/joeydtaylor/steeze-exthost/pkg/resource"
)

type Widget struct {
	Name     string   `json:"name" ext:"required,identifier" description:"Unique widget name"`
	Count    int      `json:"count"`
	Labels   []string `json:"labels"`
	Revision int      `json:"revision" ext:"readonly"`
}

type widgetStore struct {
	mu    sync.Mutex
	items map[string]Widget
}

func newWidgetStore() *widgetStore { return &widgetStore{items: map[string]Widget{}} }

func (s *widgetStore) CreateOrUpdate(_ context.Context, req *handlers.Request[Widget]) (*resource.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := req.Resource
	w.Revision = s.items[w.Name].Revision + 1
	s.items[w.Name] = w
	return req.Succeeded(w, resource.Document{"name": w.Name})
}

func (s *widgetStore) Preview(_ context.Context, req *handlers.Request[Widget]) (*resource.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := req.Resource
	w.Revision = s.items[w.Name].Revision
	return req.Succeeded(w, resource.Document{"name": w.Name})
}

func (s *widgetStore) Get(_ context.Context, ref *resource.Reference) (*resource.Result, error) {
	name, _ := ref.Identifiers["name"].(string)
	s.mu.Lock()
	w, ok := s.items[name]
	s.mu.Unlock()
	if !ok {
		return resource.Failed(ref.Type, ref.APIVersion, &resource.ErrorInfo{
			Code: "NotFound", Target: "name", Message: "widget " + name + " does not exist",
		}), nil
	}
	return resource.Succeeded(ref.Type, ref.APIVersion, resource.Document{
		"name": w.Name, "count": w.Count, "labels": w.Labels, "revision": w.Revision,
	}, ref.Identifiers), nil
}

func (s *widgetStore) Delete(_ context.Context, ref *resource.Reference) (*resource.Result, error) {
	name, _ := ref.Identifiers["name"].(string)
	s.mu.Lock()
	delete(s.items, name)
	s.mu.Unlock()
	return resource.Succeeded(ref.Type, ref.APIVersion, nil, ref.Identifiers), nil
}

type Color string

func (Color) EnumValues() []string { return []string{"Red", "Green", "Blue"} }

type Dimensions struct {
	Width  int `json:"width" ext:"required"`
	Height int `json:"height" ext:"required"`
}

type Gadget struct {
	ID         string     `json:"id" ext:"required,identifier"`
	Color      Color      `json:"color"`
	Size       Dimensions `json:"size"`
	Parts      []*Gadget  `json:"parts"`
	AccessKey  string     `json:"accessKey" ext:"writeonly,sensitive"`
	Deployment string     `json:"deployment" ext:"deploytimeconstant"`
}

// gadgets is stateless: Get and Delete are not meaningful for it.
type gadgets struct{}

var errGadgetsStateless = errors.New("gadgets are not persisted")

func (gadgets) CreateOrUpdate(_ context.Context, req *handlers.Request[Gadget]) (*resource.Result, error) {
	g := req.Resource
	g.AccessKey = ""
	return req.Succeeded(g, resource.Document{"id": g.ID})
}

func (h gadgets) Preview(ctx context.Context, req *handlers.Request[Gadget]) (*resource.Result, error) {
	return h.CreateOrUpdate(ctx, req)
}

func (gadgets) Get(context.Context, *resource.Reference) (*resource.Result, error) {
	return nil, errGadgetsStateless
}

func (gadgets) Delete(context.Context, *resource.Reference) (*resource.Result, error) {
	return nil, errGadgetsStateless
}

// Tag is published in the schema only.
type Tag struct {
	Key   string `json:"key" ext:"required"`
	Value string `json:"value"`
}

// echo accepts any other type and returns the properties it was given.
type echo struct{}

func (echo) CreateOrUpdate(_ context.Context, s *resource.Specification) (*resource.Result, error) {
	return resource.Succeeded(s.Type, s.APIVersion, s.Properties, nil), nil
}

func (e echo) Preview(ctx context.Context, s *resource.Specification) (*resource.Result, error) {
	return e.CreateOrUpdate(ctx, s)
}

func (echo) Get(_ context.Context, r *resource.Reference) (*resource.Result, error) {
	return resource.Succeeded(r.Type, r.APIVersion, nil, r.Identifiers), nil
}

func (echo) Delete(_ context.Context, r *resource.Reference) (*resource.Result, error) {
	return resource.Succeeded(r.Type, r.APIVersion, nil, r.Identifiers), nil
}
