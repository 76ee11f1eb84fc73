//go:build linux

// Package listen's Linux build tunes the listening socket (through
// net.ListenConfig.Control) with golang.org/x/sys/unix, grounded on pkg/shockwave/socket/tuning_linux.go's
// setsockopt shape but trimmed to the two options spec.md's concurrency
// model actually benefits from: SO_REUSEADDR (so a restarted listener
// doesn't fail to bind on a lingering TIME_WAIT socket) and TCP_NODELAY
// (small HTTP/1.1 responses shouldn't wait on Nagle's algorithm).
package listen

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func controlConn(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
