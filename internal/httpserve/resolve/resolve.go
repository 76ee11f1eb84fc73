// Package resolve implements spec.md §4.2: picking a virtual server by
// Host header (falling back to the listener's default, then its first
// server), then picking the best-matching location inside it.
//
// The teacher has no virtual-host or location concept at all — fasthttp-
// style engines route at a higher layer — so this package is new,
// written in the teacher's plain-function, no-interface style rather
// than grounded on a specific file.
package resolve

import (
	"strings"

	"github.com/yourusername/originserver/internal/config"
)

// Server picks the virtual server that should handle a request arriving
// on ln, given the (possibly empty) Host header value and whether the
// request carried one at all.
func Server(ln *config.Listener, host string, hasHost bool) *config.VirtualServer {
	if hasHost {
		for _, vs := range ln.Servers {
			if vs.HasName(host) {
				return vs
			}
		}
	}
	for _, vs := range ln.Servers {
		if vs.IsDefault {
			return vs
		}
	}
	if len(ln.Servers) > 0 {
		return ln.Servers[0]
	}
	return nil
}

// Location picks the best-matching location for path within vs, per
// spec.md §4.2:
//  1. among locations whose path is a prefix of path, an exact-path
//     location wins outright if its path equals path exactly;
//  2. otherwise the longest matching prefix wins;
//  3. ties break on declaration order (first declared wins) — spec.md
//     §9 leaves the tie-break unspecified beyond "a stable total
//     order," and declaration order is already the order everything
//     else in this package uses for first-match semantics.
//
// Returns nil if no location matches — the virtual server itself
// handles the request in that case.
func Location(vs *config.VirtualServer, path string) *config.Location {
	for _, loc := range vs.Locations {
		if loc.ExactPath && loc.Path == path {
			return loc
		}
	}

	var best *config.Location
	for _, loc := range vs.Locations {
		if loc.ExactPath {
			continue
		}
		if !strings.HasPrefix(path, loc.Path) {
			continue
		}
		if best == nil || len(loc.Path) > len(best.Path) {
			best = loc
		}
	}
	return best
}
