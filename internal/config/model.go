// Package config holds the in-memory representation of a parsed
// configuration file: one or more virtual servers, each with its
// locations. Values are read-only once Load returns.
package config

// Return models the `return <code> [url];` directive. URL is empty for
// the bare `return <code>;` form, which produces an empty-body response
// of Code with no redirect Location header.
type Return struct {
	Code int
	URL  string
}

// ErrorRedirect models the `error_page <code> =<status?> <url>;` form:
// replace the response for Code with a redirect to URL, optionally
// overriding the status with Status (0 means keep Code).
type ErrorRedirect struct {
	Status int
	URL    string
}

// Common holds every field a server or location block may declare.
// Location inherits any zero-valued field from its server at load time
// (see inheritFromServer), so neither the resolver nor the validator
// ever needs to walk back up to a parent at request time.
type Common struct {
	Root          string
	UploadDir     string
	Index         string
	AutoIndex     bool
	AutoIndexSet  bool // true once, set explicitly so "off" doesn't get overridden by inheritance
	MaxBodySize   *uint64
	Methods       map[string]bool
	Return        *Return
	ErrorPages    map[int]string
	ErrorRedirect map[int]ErrorRedirect
	CGI           map[string]string // extension -> interpreter path
}

// Location is a path-prefix or exact-path block nested in a server.
type Location struct {
	Common

	Path      string
	ExactPath bool // declared with "location = <path>"
	Alias     string
	Internal  bool
}

// VirtualServer is one `server { ... }` block.
type VirtualServer struct {
	Common

	Port      int
	Names     []string
	IsDefault bool
	Locations []*Location // declaration order, matched by path below
}

// LocationByPath returns the location declared for an exact path, if any.
func (vs *VirtualServer) LocationByPath(path string) *Location {
	for _, loc := range vs.Locations {
		if loc.Path == path {
			return loc
		}
	}
	return nil
}

// HasName reports whether host is one of the server's declared names.
func (vs *VirtualServer) HasName(host string) bool {
	for _, n := range vs.Names {
		if n == host {
			return true
		}
	}
	return false
}

// Listener groups every virtual server bound to the same port, in
// declaration order — the order resolve.Server relies on for
// first-match-wins semantics.
type Listener struct {
	Port    int
	Servers []*VirtualServer
}
