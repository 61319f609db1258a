//go:build !unix

package transport

import (
	"errors"
	"net"
)

var errUnsupported = errors.New("socket option is not supported on this platform")

func setReuseAddr(fd uintptr) error {
	return errUnsupported
}

//enableBroadcast is a no-op, the runtime already enables broadcast on UDP sockets here
func enableBroadcast(conn *net.UDPConn) error {
	return nil
}
