//go:build !windows

package listen

import (
	"fmt"
	"net"
)

func listenPipe(name string) (net.Listener, string, error) {
	return nil, "", fmt.Errorf("listen pipe %s: named pipes are only available on windows", name)
}
