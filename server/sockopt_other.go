//go:build !unix

package server

import "syscall"

// socketControl is a no-op; the runtime already binds tcp6 wildcards as
// IPv6-only on these platforms.
func socketControl(string, string, syscall.RawConn) error {
	return nil
}
