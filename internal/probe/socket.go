package probe

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenReusePort binds a UDP socket with SO_REUSEADDR and SO_REUSEPORT so
// every worker can co-bind the capture port and the kernel load-balances
// incoming datagrams across them by flow hash. The receive buffer is raised
// to rcvbuf; the kernel may cap the value, which is non-fatal.
func listenReusePort(addr string, rcvbuf int) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var opErr error
			err := c.Control(func(fd uintptr) {
				if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); opErr != nil {
					return
				}
				if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); opErr != nil {
					return
				}
				// Best effort; rely on net.core.rmem_max being tuned.
				unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, rcvbuf)
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind capture socket on %s: %w", addr, err)
	}
	return pc.(*net.UDPConn), nil
}
