package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"
	"go.uber.org/zap/zaptest"

	"github.com/joeydtaylor/steeze-exthost/pkg/config"
	"github.com/joeydtaylor/steeze-exthost/pkg/dispatch"
	"github.com/joeydtaylor/steeze-exthost/pkg/handlers"
	"github.com/joeydtaylor/steeze-exthost/pkg/resource"
	"github.com/joeydtaylor/steeze-exthost/pkg/typespec"
	"github.com/joeydtaylor/steeze-exthost/pkg/wire"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want *Options
		code int
	}{
		{"long flags", []string{"--socket", "/tmp/x.sock", "--protocol", "HTTP"}, &Options{Socket: "/tmp/x.sock", Protocol: "http"}, 0},
		{"short flags", []string{"-t", "5001"}, &Options{HTTPPort: 5001}, 0},
		{"describe", []string{"--describe", "out"}, &Options{DescribeDir: "out"}, 0},
		{"socket and pipe", []string{"-s", "a", "-p", "b"}, nil, 2},
		{"bad port", []string{"--http", "70000"}, nil, 2},
		{"bad protocol", []string{"--protocol", "smtp"}, nil, 2},
		{"stray argument", []string{"extra"}, nil, 2},
		{"unknown flag", []string{"--wait-for-debugger"}, nil, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			got, exit, err := Parse(tc.args, &bytes.Buffer{})
			is.True(!exit)
			if tc.code != 0 {
				var ee *ExitError
				is.True(errors.As(err, &ee))
				is.Equal(ee.Code, tc.code)
				return
			}
			is.NoErr(err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("options mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseHelp(t *testing.T) {
	is := is.New(t)
	var out bytes.Buffer
	o, exit, err := Parse([]string{"-h"}, &out)
	is.NoErr(err)
	is.True(exit)
	is.True(o == nil)
	is.True(bytes.Contains(out.Bytes(), []byte("--describe")) || bytes.Contains(out.Bytes(), []byte("-describe")))
}

func TestApplyOverridesListen(t *testing.T) {
	is := is.New(t)
	cfg := config.Default()
	(&Options{Pipe: "ext", HTTPPort: 7000, Protocol: "http"}).apply(&cfg)
	is.Equal(cfg.Listen.Pipe, "ext")
	is.Equal(cfg.Listen.HTTPPort, 7000)
	is.Equal(cfg.Listen.Protocol, "http")
}

func TestDescribeWritesArtifacts(t *testing.T) {
	is := is.New(t)
	dir := filepath.Join(t.TempDir(), "schema")

	is.NoErr(run(&bytes.Buffer{}, []string{"--describe", dir}))

	raw, err := os.ReadFile(filepath.Join(dir, typespec.IndexFile))
	is.NoErr(err)
	var index struct {
		Resources map[string]json.RawMessage `json:"resources"`
		Settings  struct {
			Name              string          `json:"name"`
			ConfigurationType json.RawMessage `json:"configurationType"`
		} `json:"settings"`
	}
	is.NoErr(json.Unmarshal(raw, &index))
	is.Equal(len(index.Resources), 3) // Gadget, Widget, Tag
	is.Equal(index.Settings.Name, config.Default().Types.Name)
	is.True(len(index.Settings.ConfigurationType) > 0)

	raw, err = os.ReadFile(filepath.Join(dir, typespec.TypesFile))
	is.NoErr(err)
	var nodes []map[string]any
	is.NoErr(json.Unmarshal(raw, &nodes))
	is.True(len(nodes) > 0)
}

func newDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	reg, err := handlers.New(bindings()...)
	if err != nil {
		t.Fatal(err)
	}
	return dispatch.New(reg, nil, zaptest.NewLogger(t))
}

func TestWidgetLifecycle(t *testing.T) {
	is := is.New(t)
	d := newDispatcher(t)
	ctx := context.Background()

	spec := &wire.ResourceSpecification{Type: "Widget", APIVersion: "1.0.0", Properties: `{"name":"w1","count":2}`}
	resp := d.CreateOrUpdate(ctx, spec)
	is.Equal(resp.Status, string(resource.StatusSucceeded))
	resp = d.CreateOrUpdate(ctx, spec)
	is.Equal(resp.Properties, `{"count":2,"labels":null,"name":"w1","revision":2}`)

	ref := &wire.ResourceReference{Type: "Widget", APIVersion: "1.0.0", Identifiers: `{"name":"w1"}`}
	is.Equal(d.Get(ctx, ref).Status, string(resource.StatusSucceeded))
	is.Equal(d.Delete(ctx, ref).Status, string(resource.StatusSucceeded))

	resp = d.Get(ctx, ref)
	is.Equal(resp.Status, string(resource.StatusFailed))
	is.Equal(resp.Error.Code, "NotFound")
}

func TestGadgetEnumAndFallback(t *testing.T) {
	is := is.New(t)
	d := newDispatcher(t)
	ctx := context.Background()

	resp := d.Preview(ctx, &wire.ResourceSpecification{Type: "Gadget", Properties: `{"id":"g","color":"Purple"}`})
	is.Equal(resp.Status, string(resource.StatusFailed))
	is.Equal(resp.Error.Code, resource.CodeArgumentError)

	resp = d.Get(ctx, &wire.ResourceReference{Type: "Gadget", Identifiers: `{"id":"g"}`})
	is.Equal(resp.Error.Code, resource.CodeHandlerFault)

	resp = d.CreateOrUpdate(ctx, &wire.ResourceSpecification{Type: "Anything", Properties: `{"x":1}`})
	is.Equal(resp.Status, string(resource.StatusSucceeded))
	is.Equal(resp.Properties, `{"x":1}`)
}
