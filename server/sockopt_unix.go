//go:build unix

package server

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// socketControl marks IPv6 sockets as IPv6-only so the IPv4 wildcard can
// be bound separately on the same port.
func socketControl(network, _ string, c syscall.RawConn) error {
	if network != "tcp6" {
		return nil
	}
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1)
	})
	if err != nil {
		return err
	}
	if sockErr != nil {
		return fmt.Errorf("set IPV6_V6ONLY: %w", sockErr)
	}
	return nil
}
