//go:build !linux

package listen

import "syscall"

// controlConn is a no-op off Linux; the x/sys/unix socket options this
// project tunes (SO_REUSEADDR, TCP_NODELAY via setsockopt) aren't worth
// a second platform-specific implementation for an exercise server.
func controlConn(_, _ string, _ syscall.RawConn) error {
	return nil
}
