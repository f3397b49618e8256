// Command exthost-sample is a runnable extension exposing Widget and Gadget
// resources plus a generic echo fallback.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"

	"go.uber.org/fx"

	"github.com/joeydtaylor/steeze-exthost/pkg/config"
	"github.com/joeydtaylor/steeze-exthost/pkg/handlers"
	"github.com/joeydtaylor/steeze-exthost/pkg/serverfx"
	"github.com/joeydtaylor/steeze-exthost/pkg/typespec"
)

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(out io.Writer, args []string) error {
	opts, shouldExit, err := Parse(args, out)
	if err != nil || shouldExit {
		return err
	}
	if opts.DescribeDir != "" {
		return describe(out, opts)
	}

	fxOpts := []fx.Option{
		serverfx.Module(serverfx.Options{
			ConfigPath:    opts.ConfigPath,
			Override:      opts.apply,
			Configuration: reflect.TypeFor[Settings](),
		}),
		serverfx.AsShape(typespec.Standalone[Tag]()),
	}
	for _, b := range bindings() {
		fxOpts = append(fxOpts, serverfx.AsBinding(b))
	}
	fx.New(fxOpts...).Run()
	return nil
}

// Settings is the extension configuration block the orchestrator may send.
type Settings struct {
	Region string `json:"region" description:"Deployment region for widgets"`
}

func bindings() []handlers.Binding {
	return []handlers.Binding{
		handlers.Typed[Widget](newWidgetStore()),
		handlers.Typed[Gadget](gadgets{}),
		handlers.Generic(echo{}),
	}
}

// describe writes types.json and index.json without starting a server.
func describe(out io.Writer, opts *Options) error {
	cfg := config.Default()
	if path := config.PathOr(opts.ConfigPath); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	reg, err := handlers.New(bindings()...)
	if err != nil {
		return err
	}
	settings := typespec.WithConfiguration[Settings](typespec.Settings{
		Name:        cfg.Types.Name,
		Version:     cfg.Types.Version,
		IsSingleton: cfg.Types.IsSingleton,
	})
	art, err := typespec.Compile(reg, settings, typespec.Standalone[Tag]())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.DescribeDir, 0o755); err != nil {
		return err
	}
	for name, b := range map[string][]byte{typespec.TypesFile: art.Types, typespec.IndexFile: art.Index} {
		p := filepath.Join(opts.DescribeDir, name)
		if err := os.WriteFile(p, b, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(out, p)
	}
	return nil
}
