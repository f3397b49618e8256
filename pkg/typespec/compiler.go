// Package typespec compiles registered resource shapes into the type graph
// and index artifacts consumed by orchestrator tooling.
package typespec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/joeydtaylor/steeze-exthost/pkg/codec"
	"github.com/joeydtaylor/steeze-exthost/pkg/handlers"
	"github.com/joeydtaylor/steeze-exthost/pkg/resource"
)

const (
	TypesFile = "types.json"
	IndexFile = "index.json"
)

// Shape is a resource shape not attached to a handler.
type Shape struct {
	Name string
	Type reflect.Type
}

// Standalone tags T for inclusion in the schema under its Go type name.
func Standalone[T any]() Shape {
	t := reflect.TypeFor[T]()
	return Shape{Name: t.Name(), Type: t}
}

type Settings struct {
	Name        string
	Version     string
	IsSingleton bool
	// Configuration, when set, describes the extension-level config document.
	Configuration reflect.Type
}

// WithConfiguration returns s with its configuration shape set to T.
func WithConfiguration[T any](s Settings) Settings {
	s.Configuration = reflect.TypeFor[T]()
	return s
}

type ResourceEntry struct {
	Name string
	Ref  Ref
}

type Graph struct {
	Nodes         []Node
	Resources     []ResourceEntry
	Configuration *Ref
}

func (g *Graph) Node(r Ref) Node {
	if int(r) < 0 || int(r) >= len(g.Nodes) {
		return nil
	}
	return g.Nodes[r]
}

// Resource returns the ResourceType registered under name.
func (g *Graph) Resource(name string) (ResourceType, bool) {
	for _, e := range g.Resources {
		if e.Name == name {
			rt, ok := g.Node(e.Ref).(ResourceType)
			return rt, ok
		}
	}
	return ResourceType{}, false
}

type Artifacts struct {
	Types []byte
	Index []byte
	Graph *Graph
}

// Compile walks every typed binding's shape in registration order, then the
// standalone shapes not already covered by a typed binding.
func Compile(reg *handlers.Registry, settings Settings, standalone ...Shape) (*Artifacts, error) {
	w := newWalker()
	g := &Graph{}
	seen := map[string]bool{}

	add := func(name string, t reflect.Type) error {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return &NotSupportedError{Shape: name, GoType: t.String(), Reason: "resource shapes must be structs"}
		}
		body, err := w.ref(t, false, site{shape: name})
		if err != nil {
			return err
		}
		rt := w.f.Create(ResourceType{Name: name, Body: body})
		g.Resources = append(g.Resources, ResourceEntry{Name: name, Ref: rt})
		seen[name] = true
		return nil
	}

	if reg != nil {
		for _, b := range reg.Typed() {
			if err := add(b.Name(), b.Shape()); err != nil {
				return nil, startupError(err)
			}
		}
	}
	for _, s := range standalone {
		if s.Type == nil || s.Name == "" || seen[s.Name] {
			continue
		}
		if reg != nil {
			if b, err := reg.ResolveShape(s.Type); err == nil && b.Kind() == handlers.KindTyped {
				continue
			}
		}
		if err := add(s.Name, s.Type); err != nil {
			return nil, startupError(err)
		}
	}

	if settings.Configuration != nil {
		t := settings.Configuration
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return nil, startupError(&NotSupportedError{Shape: "configuration", GoType: t.String(), Reason: "configuration must be a struct"})
		}
		r, err := w.ref(t, false, site{shape: "configuration"})
		if err != nil {
			return nil, startupError(err)
		}
		g.Configuration = &r
	}

	g.Nodes = w.f.Nodes()

	types, err := codec.JSONDocument.Marshal(g.Nodes)
	if err != nil {
		return nil, fmt.Errorf("serialize types: %w", err)
	}
	index, err := marshalIndex(g, settings)
	if err != nil {
		return nil, fmt.Errorf("serialize index: %w", err)
	}
	return &Artifacts{Types: types, Index: index, Graph: g}, nil
}

func startupError(err error) error {
	return resource.NewStartupError(resource.CodeNotSupported, "type schema compilation failed", err)
}

func marshalIndex(g *Graph, s Settings) ([]byte, error) {
	var res bytes.Buffer
	res.WriteByte('{')
	for i, e := range g.Resources {
		if i > 0 {
			res.WriteByte(',')
		}
		k, _ := json.Marshal(e.Name)
		v, err := json.Marshal(CrossFileRef{File: TypesFile, Ref: e.Ref})
		if err != nil {
			return nil, err
		}
		res.Write(k)
		res.WriteByte(':')
		res.Write(v)
	}
	res.WriteByte('}')

	type settingsJSON struct {
		Name              string        `json:"name"`
		Version           string        `json:"version"`
		IsSingleton       bool          `json:"isSingleton"`
		ConfigurationType *CrossFileRef `json:"configurationType,omitempty"`
	}
	st := settingsJSON{Name: s.Name, Version: s.Version, IsSingleton: s.IsSingleton}
	if g.Configuration != nil {
		st.ConfigurationType = &CrossFileRef{File: TypesFile, Ref: *g.Configuration}
	}

	return codec.JSONDocument.Marshal(struct {
		Resources         json.RawMessage `json:"resources"`
		ResourceFunctions struct{}        `json:"resourceFunctions"`
		Settings          settingsJSON    `json:"settings"`
	}{Resources: res.Bytes(), Settings: st})
}

// Compiler caches the first successful compilation. The registry it reads is
// immutable, so the artifacts stay valid for the process lifetime.
type Compiler struct {
	reg        *handlers.Registry
	settings   Settings
	standalone []Shape

	mu  sync.Mutex
	art *Artifacts
}

func NewCompiler(reg *handlers.Registry, settings Settings, standalone ...Shape) *Compiler {
	return &Compiler{reg: reg, settings: settings, standalone: standalone}
}

func (c *Compiler) Artifacts() (*Artifacts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.art != nil {
		return c.art, nil
	}
	art, err := Compile(c.reg, c.settings, c.standalone...)
	if err != nil {
		return nil, err
	}
	c.art = art
	return art, nil
}

func (c *Compiler) Settings() Settings { return c.settings }
