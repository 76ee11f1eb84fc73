// Package listen binds one socket per configured port and accepts
// connections on it, per spec.md §4.9: a tight accept loop spawning one
// task per accepted connection, observing a shared cancellation flag
// between accepts.
//
// Grounded on pkg/shockwave/server/server_shockwave.go's accept loop
// shape (bind-then-loop, one goroutine per connection), generalized to
// the virtual-host-aware conn.Serve dispatcher instead of the teacher's
// single static-file handler.
package listen

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/originserver/internal/config"
	"github.com/yourusername/originserver/internal/httpserve/conn"
	"github.com/yourusername/originserver/pkg/shockwave/socket"
)

// Open binds a TCP listener for ln's port, tuned via controlConn. It is
// split from Serve so a bind failure surfaces to the caller
// synchronously at startup, before any accept loop goroutines spawn.
func Open(ln *config.Listener) (net.Listener, error) {
	lc := net.ListenConfig{Control: controlConn}
	netListener, err := lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", ln.Port))
	if err != nil {
		return nil, err
	}
	// Best-effort: TCP_DEFER_ACCEPT/TCP_FASTOPEN aren't available on every
	// platform or kernel, and a listener that doesn't get them still works.
	_ = socket.ApplyListener(netListener, socket.DefaultConfig())
	return netListener, nil
}

// Serve accepts connections on netListener in a tight loop, spawning an
// independent goroutine per accepted connection, until stop reports
// true. It periodically re-arms netListener's deadline so the stop flag
// is actually observed between accepts rather than blocking forever.
func Serve(netListener net.Listener, ln *config.Listener, stop func() bool, log *logrus.Entry) {
	defer netListener.Close()

	entry := log.WithField("port", ln.Port)
	entry.Info("listening")

	for {
		if stop() {
			entry.Info("listener stopping")
			return
		}

		if tl, ok := netListener.(*net.TCPListener); ok {
			tl.SetDeadline(time.Now().Add(time.Second))
		}

		c, err := netListener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if stop() {
				return
			}
			entry.WithError(err).Warn("accept failed")
			continue
		}

		if err := socket.Apply(c, socket.DefaultConfig()); err != nil {
			entry.WithError(err).Debug("socket tuning failed")
		}
		go conn.Serve(c, ln, entry)
	}
}
