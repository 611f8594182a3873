//go:build !windows

package api

import (
	"fmt"
	"net"
)

// listenPipe named pipes есть только на Windows, используйте unix: или TCP адрес
func listenPipe(addr string) (net.Listener, error) {
	return nil, fmt.Errorf("named pipes are supported only on Windows (requested %s)", addr)
}
