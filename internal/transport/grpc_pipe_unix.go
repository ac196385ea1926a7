//go:build !windows

package transport

import (
	"fmt"
	"net"
)

func listenPipe(addr string) (net.Listener, error) {
	return nil, fmt.Errorf("transport: named pipes are only supported on windows (addr=%s)", addr)
}
