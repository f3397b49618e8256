//go:build windows

package listen

import (
	"fmt"
	"net"
	"strings"

	"github.com/Microsoft/go-winio"
)

func listenPipe(name string) (net.Listener, string, error) {
	path := name
	if !strings.HasPrefix(path, `\\.\pipe\`) {
		path = `\\.\pipe\` + name
	}
	ln, err := winio.ListenPipe(path, &winio.PipeConfig{MessageMode: false})
	if err != nil {
		return nil, "", fmt.Errorf("listen pipe %s: %w", path, err)
	}
	return ln, path, nil
}
