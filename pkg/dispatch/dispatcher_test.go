package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap/zaptest"

	"github.com/joeydtaylor/steeze-exthost/pkg/codec"
	"github.com/joeydtaylor/steeze-exthost/pkg/handlers"
	"github.com/joeydtaylor/steeze-exthost/pkg/resource"
	"github.com/joeydtaylor/steeze-exthost/pkg/typespec"
	"github.com/joeydtaylor/steeze-exthost/pkg/wire"
)

type Widget struct {
	Name  string `json:"name" ext:"required,identifier"`
	Count int    `json:"count"`
}

type widgets struct {
	mu       sync.Mutex
	previews int
	writes   int
}

func (w *widgets) CreateOrUpdate(_ context.Context, req *handlers.Request[Widget]) (*resource.Result, error) {
	w.mu.Lock()
	w.writes++
	w.mu.Unlock()
	return req.Succeeded(req.Resource, resource.Document{"name": req.Resource.Name})
}

func (w *widgets) Preview(_ context.Context, req *handlers.Request[Widget]) (*resource.Result, error) {
	w.mu.Lock()
	w.previews++
	w.mu.Unlock()
	return req.Succeeded(req.Resource, nil)
}

func (w *widgets) Get(_ context.Context, ref *resource.Reference) (*resource.Result, error) {
	return resource.Succeeded(ref.Type, ref.APIVersion, resource.Document{"seenConfig": ref.Config != nil}, ref.Identifiers), nil
}

func (w *widgets) Delete(_ context.Context, ref *resource.Reference) (*resource.Result, error) {
	return resource.Succeeded(ref.Type, ref.APIVersion, nil, ref.Identifiers), nil
}

// generic is a fallback whose behavior is chosen by resource type.
type generic struct{}

func (generic) CreateOrUpdate(ctx context.Context, s *resource.Specification) (*resource.Result, error) {
	switch s.Type {
	case "Panics":
		panic("boom")
	case "Errors":
		return nil, errors.New("backend unavailable")
	case "Conflict":
		return nil, &resource.Error{Code: "Conflict", Target: "name", Message: "already exists"}
	case "Blocks":
		<-ctx.Done()
		return nil, ctx.Err()
	case "Nil":
		return nil, nil
	}
	return resource.Succeeded(s.Type, s.APIVersion, s.Properties, nil), nil
}

func (g generic) Preview(ctx context.Context, s *resource.Specification) (*resource.Result, error) {
	return g.CreateOrUpdate(ctx, s)
}

func (generic) Get(_ context.Context, r *resource.Reference) (*resource.Result, error) {
	panic(fmt.Errorf("get is broken for %s", r.Type))
}

func (generic) Delete(_ context.Context, r *resource.Reference) (*resource.Result, error) {
	return resource.Failed(r.Type, r.APIVersion, nil), nil
}

func newDispatcher(t *testing.T, opts []Option, b ...handlers.Binding) (*Dispatcher, *widgets) {
	t.Helper()
	w := &widgets{}
	if len(b) == 0 {
		b = []handlers.Binding{handlers.Typed[Widget](w)}
	}
	reg, err := handlers.New(b...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	compiler := typespec.NewCompiler(reg, typespec.Settings{Name: "test", Version: "1.0.0"})
	return New(reg, compiler, zaptest.NewLogger(t), opts...), w
}

func props(t *testing.T, resp *wire.Response) resource.Document {
	t.Helper()
	doc, err := codec.ParseDocument("properties", resp.Properties)
	if err != nil {
		t.Fatalf("response properties: %v", err)
	}
	return doc
}

func TestScenarioTypedCreateOrUpdateEchoes(t *testing.T) {
	is := is.New(t)
	d, w := newDispatcher(t, nil)

	resp := d.CreateOrUpdate(context.Background(), &wire.ResourceSpecification{
		Type:       "Widget",
		APIVersion: "1.0.0",
		Properties: `{"name":"a","count":3}`,
	})

	is.Equal(resp.Status, "Succeeded")
	is.Equal(resp.Type, "Widget")
	is.Equal(resp.Properties, `{"count":3,"name":"a"}`)
	is.Equal(resp.Identifiers, `{"name":"a"}`)
	is.True(resp.Error == nil)
	is.Equal(w.writes, 1)
}

func TestScenarioUnregisteredTypeIsHandlerNotFound(t *testing.T) {
	is := is.New(t)
	d, _ := newDispatcher(t, nil)

	resp := d.CreateOrUpdate(context.Background(), &wire.ResourceSpecification{
		Type:       "Ghost",
		APIVersion: "1.0.0",
		Properties: `{}`,
	})

	is.Equal(resp.Status, "Failed")
	is.Equal(resp.Error.Code, resource.CodeHandlerNotFound)
	is.Equal(resp.Type, "Ghost")
	is.Equal(resp.Properties, "{}") // no resource payload
}

func TestScenarioMalformedPropertiesIsParseError(t *testing.T) {
	is := is.New(t)
	d, w := newDispatcher(t, nil)

	resp := d.CreateOrUpdate(context.Background(), &wire.ResourceSpecification{
		Type:       "Widget",
		APIVersion: "1.0.0",
		Properties: `"just a string"`,
	})

	is.Equal(resp.Status, "Failed")
	is.Equal(resp.Error.Code, resource.CodeParseError)
	is.Equal(resp.Error.Target, "properties")
	is.Equal(w.writes, 0)
}

func TestTypedDecodeFailureIsArgumentError(t *testing.T) {
	is := is.New(t)
	d, _ := newDispatcher(t, nil)

	resp := d.CreateOrUpdate(context.Background(), &wire.ResourceSpecification{
		Type:       "Widget",
		Properties: `{"name":"a","count":"many"}`,
	})
	is.Equal(resp.Status, "Failed")
	is.Equal(resp.Error.Code, resource.CodeArgumentError)
	is.Equal(resp.Error.Target, "properties")

	// the next call is unaffected
	resp = d.CreateOrUpdate(context.Background(), &wire.ResourceSpecification{Type: "Widget", Properties: `{"name":"b"}`})
	is.Equal(resp.Status, "Succeeded")
}

func TestGenericReceivesRawProperties(t *testing.T) {
	is := is.New(t)
	d, _ := newDispatcher(t, nil, handlers.Generic(generic{}))

	resp := d.CreateOrUpdate(context.Background(), &wire.ResourceSpecification{
		Type:       "Anything",
		APIVersion: "2024-01-01",
		Properties: `{"Whatever":{"nested":[1,2]}}`,
	})
	is.Equal(resp.Status, "Succeeded")
	is.Equal(resp.Properties, `{"Whatever":{"nested":[1,2]}}`)
	is.Equal(resp.APIVersion, "2024-01-01")
}

func TestHandlerFaultsAreIsolated(t *testing.T) {
	d, _ := newDispatcher(t, nil, handlers.Generic(generic{}))

	cases := []struct {
		typ     string
		code    string
		message string
	}{
		{"Panics", resource.CodeHandlerFault, "handler panic: boom"},
		{"Errors", resource.CodeHandlerFault, "backend unavailable"},
		{"Conflict", "Conflict", "already exists"},
		{"Nil", resource.CodeHandlerFault, "handler returned no result"},
	}
	for _, tc := range cases {
		t.Run(tc.typ, func(t *testing.T) {
			is := is.New(t)
			resp := d.CreateOrUpdate(context.Background(), &wire.ResourceSpecification{Type: tc.typ, Properties: `{}`})
			is.Equal(resp.Status, "Failed")
			is.Equal(resp.Error.Code, tc.code)
			is.Equal(resp.Error.Message, tc.message)
			is.Equal(resp.Type, tc.typ)
		})
	}

	is := is.New(t)
	resp := d.CreateOrUpdate(context.Background(), &wire.ResourceSpecification{Type: "Fine", Properties: `{"ok":true}`})
	is.Equal(resp.Status, "Succeeded") // the process keeps serving
}

func TestPanicWithErrorValueInGet(t *testing.T) {
	is := is.New(t)
	d, _ := newDispatcher(t, nil, handlers.Generic(generic{}))

	resp := d.Get(context.Background(), &wire.ResourceReference{Type: "Thing", Identifiers: `{"id":"1"}`})
	is.Equal(resp.Status, "Failed")
	is.Equal(resp.Error.Code, resource.CodeHandlerFault)
	is.Equal(resp.Error.Message, "handler panic: get is broken for Thing")
}

func TestFailedWithoutErrorGetsFault(t *testing.T) {
	is := is.New(t)
	d, _ := newDispatcher(t, nil, handlers.Generic(generic{}))

	resp := d.Delete(context.Background(), &wire.ResourceReference{Type: "Thing", Identifiers: `{}`})
	is.Equal(resp.Status, "Failed")
	is.Equal(resp.Error.Code, resource.CodeHandlerFault)
}

func TestCancellationSurfacesAsCanceled(t *testing.T) {
	is := is.New(t)
	d, _ := newDispatcher(t, nil, handlers.Generic(generic{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *wire.Response)
	go func() {
		done <- d.CreateOrUpdate(ctx, &wire.ResourceSpecification{Type: "Blocks", Properties: `{}`})
	}()
	cancel()

	resp := <-done
	is.Equal(resp.Status, "Canceled")
	is.Equal(resp.Error.Code, resource.CodeCanceled)
}

func TestCallTimeoutSurfacesAsTimedOut(t *testing.T) {
	is := is.New(t)
	d, _ := newDispatcher(t, []Option{WithCallTimeout(10 * time.Millisecond)}, handlers.Generic(generic{}))

	resp := d.CreateOrUpdate(context.Background(), &wire.ResourceSpecification{Type: "Blocks", Properties: `{}`})
	is.Equal(resp.Status, "TimedOut")
	is.Equal(resp.Error.Code, resource.CodeTimedOut)
}

func TestGetAndDeletePassIdentifiersThrough(t *testing.T) {
	is := is.New(t)
	d, _ := newDispatcher(t, nil)

	resp := d.Get(context.Background(), &wire.ResourceReference{
		Type:        "Widget",
		APIVersion:  "1.0.0",
		Identifiers: `{"name":"a"}`,
		Config:      `{"region":"west"}`,
	})
	is.Equal(resp.Status, "Succeeded")
	is.Equal(resp.Identifiers, `{"name":"a"}`)
	is.Equal(props(t, resp)["seenConfig"], true)

	resp = d.Delete(context.Background(), &wire.ResourceReference{Type: "Widget", Identifiers: `{"name":"a"}`})
	is.Equal(resp.Status, "Succeeded")

	resp = d.Get(context.Background(), &wire.ResourceReference{Type: "Widget", Identifiers: `[]`})
	is.Equal(resp.Error.Code, resource.CodeParseError)
	is.Equal(resp.Error.Target, "identifiers")
}

func TestPreviewDispatchesDryRun(t *testing.T) {
	is := is.New(t)
	d, w := newDispatcher(t, nil)

	resp := d.Preview(context.Background(), &wire.ResourceSpecification{Type: "Widget", Properties: `{"name":"p"}`})
	is.Equal(resp.Status, "Succeeded")
	is.Equal(w.previews, 1)
	is.Equal(w.writes, 0)
}

func TestPreviewOfSchemaTypeReturnsTypes(t *testing.T) {
	is := is.New(t)
	d, _ := newDispatcher(t, nil)

	resp := d.Preview(context.Background(), &wire.ResourceSpecification{Type: SchemaType, Properties: `{}`})
	is.Equal(resp.Status, "Succeeded")
	is.Equal(resp.Type, SchemaType)
	is.Equal(resp.APIVersion, "1.0.0")

	doc := props(t, resp)
	types, ok := doc["types"].([]any)
	is.True(ok)
	is.True(len(types) > 0)
	index, ok := doc["index"].(map[string]any)
	is.True(ok)
	_, ok = index["resources"].(map[string]any)["Widget"]
	is.True(ok)
}

func TestDescribeIsCached(t *testing.T) {
	is := is.New(t)
	d, _ := newDispatcher(t, nil)

	a, err := d.Describe(context.Background())
	is.NoErr(err)
	b, err := d.Describe(context.Background())
	is.NoErr(err)
	is.True(a == b)
}

func TestPingAlwaysSucceeds(t *testing.T) {
	is := is.New(t)
	d := New(nil, nil, nil)
	is.True(d.Ping(context.Background()) != nil)

	resp := d.CreateOrUpdate(context.Background(), nil)
	is.Equal(resp.Status, "Failed")
	is.Equal(resp.Error.Code, resource.CodeArgumentError)
}

func TestConcurrentCalls(t *testing.T) {
	d, w := newDispatcher(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := d.CreateOrUpdate(context.Background(), &wire.ResourceSpecification{
				Type:       "Widget",
				Properties: fmt.Sprintf(`{"name":"w%d","count":%d}`, i, i),
			})
			if resp.Status != "Succeeded" {
				t.Errorf("call %d: %s", i, resp.Status)
			}
		}(i)
	}
	wg.Wait()

	is := is.New(t)
	is.Equal(w.writes, 32)
}

func typeLabels() map[string]bool {
	ch := make(chan prometheus.Metric, 256)
	go func() {
		operationsTotal.Collect(ch)
		close(ch)
	}()
	seen := map[string]bool{}
	for m := range ch {
		var pb dto.Metric
		if err := m.Write(&pb); err != nil {
			continue
		}
		for _, lp := range pb.GetLabel() {
			if lp.GetName() == "type" {
				seen[lp.GetValue()] = true
			}
		}
	}
	return seen
}

func TestMetricTypeLabelIsBounded(t *testing.T) {
	is := is.New(t)
	w := &widgets{}
	d, _ := newDispatcher(t, nil, handlers.Typed[Widget](w), handlers.Generic(generic{}))
	bare, _ := newDispatcher(t, nil)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		typ := fmt.Sprintf("Arbitrary%d", i)
		d.CreateOrUpdate(ctx, &wire.ResourceSpecification{Type: typ, Properties: "{}"})
		bare.CreateOrUpdate(ctx, &wire.ResourceSpecification{Type: typ, Properties: "{}"})
	}
	d.CreateOrUpdate(ctx, &wire.ResourceSpecification{Type: "Widget", Properties: `{"name":"a"}`})

	seen := typeLabels()
	is.True(seen[labelGeneric])
	is.True(seen[labelUnresolved])
	is.True(seen["Widget"])
	for i := 0; i < 20; i++ {
		is.True(!seen[fmt.Sprintf("Arbitrary%d", i)])
	}
}
