package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/joeydtaylor/steeze-exthost/pkg/config"
)

// ExitError carries a process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

type Options struct {
	ConfigPath  string
	DescribeDir string
	Socket      string
	Pipe        string
	HTTPPort    int
	Protocol    string
}

// apply overlays explicit flags onto the loaded config.
func (o *Options) apply(c *config.Config) {
	if o.Socket != "" {
		c.Listen.Socket = o.Socket
	}
	if o.Pipe != "" {
		c.Listen.Pipe = o.Pipe
	}
	if o.HTTPPort != 0 {
		c.Listen.HTTPPort = o.HTTPPort
	}
	if o.Protocol != "" {
		c.Listen.Protocol = o.Protocol
	}
}

// Parse processes command-line arguments. It returns the options, whether the
// program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Options, bool, error) {
	fs := flag.NewFlagSet("exthost-sample", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, `
exthost-sample - sample extension host.

Usage:
  exthost-sample [options]

Options:
`)
		fs.PrintDefaults()
	}

	var o Options
	fs.StringVar(&o.Socket, "socket", "", "Unix domain socket path to listen on.")
	fs.StringVar(&o.Socket, "s", "", "Unix domain socket path (shorthand).")
	fs.StringVar(&o.Pipe, "pipe", "", "Named pipe to listen on (windows).")
	fs.StringVar(&o.Pipe, "p", "", "Named pipe (shorthand).")
	fs.IntVar(&o.HTTPPort, "http", 0, "Loopback TCP port to listen on.")
	fs.IntVar(&o.HTTPPort, "t", 0, "Loopback TCP port (shorthand).")
	fs.StringVar(&o.Protocol, "protocol", "", "Transport protocol: 'grpc' or 'http'.")
	fs.StringVar(&o.ConfigPath, "config", "", "Path to a TOML or YAML config file.")
	fs.StringVar(&o.DescribeDir, "describe", "", "Write types.json and index.json to this directory and exit.")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if fs.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: "unexpected arguments: " + strings.Join(fs.Args(), " ")}
	}
	if o.Socket != "" && o.Pipe != "" {
		return nil, false, &ExitError{Code: 2, Message: "--socket and --pipe are mutually exclusive"}
	}
	if o.HTTPPort < 0 || o.HTTPPort > 65535 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid --http port %d", o.HTTPPort)}
	}
	o.Protocol = strings.ToLower(o.Protocol)
	switch o.Protocol {
	case "", config.ProtocolGRPC, config.ProtocolHTTP:
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid --protocol: must be 'grpc' or 'http'"}
	}
	return &o, false, nil
}
