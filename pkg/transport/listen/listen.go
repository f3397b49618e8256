// Package listen opens the local endpoint the orchestrator connects to.
package listen

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"

	"github.com/joeydtaylor/steeze-exthost/pkg/config"
)

// Endpoint describes what Open bound, for logging.
type Endpoint struct {
	Network string
	Address string
}

// Open binds a unix socket, a named pipe or 127.0.0.1:<port>, in that order
// of preference.
func Open(cfg config.Listen) (net.Listener, Endpoint, error) {
	switch {
	case cfg.Socket != "":
		if err := removeStaleSocket(cfg.Socket); err != nil {
			return nil, Endpoint{}, err
		}
		ln, err := net.Listen("unix", cfg.Socket)
		if err != nil {
			return nil, Endpoint{}, fmt.Errorf("listen unix %s: %w", cfg.Socket, err)
		}
		return ln, Endpoint{Network: "unix", Address: cfg.Socket}, nil
	case cfg.Pipe != "":
		ln, addr, err := listenPipe(cfg.Pipe)
		if err != nil {
			return nil, Endpoint{}, err
		}
		return ln, Endpoint{Network: "pipe", Address: addr}, nil
	default:
		addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.HTTPPort))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, Endpoint{}, fmt.Errorf("listen tcp %s: %w", addr, err)
		}
		return ln, Endpoint{Network: "tcp", Address: ln.Addr().String()}, nil
	}
}

func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("listen unix %s: path exists and is not a socket", path)
	}
	return os.Remove(path)
}
