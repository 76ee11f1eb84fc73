package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// rawDirective is one `name value value ...;` line, kept in declaration
// order so repeatable directives (cgi, error_page) aren't lost to a map.
type rawDirective struct {
	name   string
	values []string
	line   int
}

type rawLocation struct {
	modifier   string // "=", "~", or ""
	path       string
	directives []rawDirective
	line       int
}

type rawServer struct {
	directives []rawDirective
	locations  []rawLocation
}

// parseSource parses a whole configuration file into raw server blocks.
// Grounded on original_source/src/parsing/config_parsing.rs's
// block/location_block/directive grammar, translated from nom
// combinators to a token-slice recursive descent parser.
func parseSource(src string) ([]rawServer, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &tokenParser{toks: toks}

	var servers []rawServer
	for !p.atEOF() {
		srv, err := p.parseServerBlock()
		if err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("config: no server blocks found")
	}
	return servers, nil
}

type tokenParser struct {
	toks []token
	pos  int
}

func (p *tokenParser) atEOF() bool {
	return p.toks[p.pos].kind == tokEOF
}

func (p *tokenParser) peek() token {
	return p.toks[p.pos]
}

func (p *tokenParser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *tokenParser) expectWord(text string) error {
	t := p.advance()
	if t.kind != tokWord || t.text != text {
		return fmt.Errorf("config: line %d: expected %q, got %q", t.line, text, t.text)
	}
	return nil
}

func (p *tokenParser) expectKind(k tokenKind, what string) (token, error) {
	t := p.advance()
	if t.kind != k {
		return t, fmt.Errorf("config: line %d: expected %s, got %q", t.line, what, t.text)
	}
	return t, nil
}

func (p *tokenParser) parseServerBlock() (rawServer, error) {
	var srv rawServer
	if err := p.expectWord("server"); err != nil {
		return srv, err
	}
	if _, err := p.expectKind(tokLBrace, "'{'"); err != nil {
		return srv, err
	}

	for {
		t := p.peek()
		switch {
		case t.kind == tokRBrace:
			p.advance()
			return srv, nil
		case t.kind == tokWord && t.text == "location":
			loc, err := p.parseLocationBlock()
			if err != nil {
				return srv, err
			}
			srv.locations = append(srv.locations, loc)
		case t.kind == tokWord:
			d, err := p.parseDirective()
			if err != nil {
				return srv, err
			}
			srv.directives = append(srv.directives, d)
		default:
			return srv, fmt.Errorf("config: line %d: unexpected token %q inside server block", t.line, t.text)
		}
	}
}

func (p *tokenParser) parseLocationBlock() (rawLocation, error) {
	var loc rawLocation
	if err := p.expectWord("location"); err != nil {
		return loc, err
	}
	loc.line = p.peek().line

	// Optional modifier: "=" (exact) or "~" (accepted for config-surface
	// compatibility and otherwise ignored: such a location matches as a
	// plain prefix, since resolve only distinguishes exact vs. prefix).
	if t := p.peek(); t.kind == tokWord && (t.text == "=" || t.text == "~") {
		loc.modifier = t.text
		p.advance()
	}

	pathTok, err := p.expectKind(tokWord, "location path")
	if err != nil {
		return loc, err
	}
	loc.path = pathTok.text

	if _, err := p.expectKind(tokLBrace, "'{'"); err != nil {
		return loc, err
	}

	for {
		t := p.peek()
		if t.kind == tokRBrace {
			p.advance()
			return loc, nil
		}
		if t.kind != tokWord {
			return loc, fmt.Errorf("config: line %d: unexpected token %q inside location block", t.line, t.text)
		}
		if t.text == "location" {
			return loc, fmt.Errorf("config: line %d: nested location blocks are not supported", t.line)
		}
		d, err := p.parseDirective()
		if err != nil {
			return loc, err
		}
		loc.directives = append(loc.directives, d)
	}
}

// parseDirective reads "name value value... ;". "internal" takes no
// values, matching config_parsing.rs's has_values special case.
func (p *tokenParser) parseDirective() (rawDirective, error) {
	nameTok, err := p.expectKind(tokWord, "directive name")
	if err != nil {
		return rawDirective{}, err
	}
	d := rawDirective{name: nameTok.text, line: nameTok.line}

	if nameTok.text != "internal" {
		for p.peek().kind == tokWord {
			d.values = append(d.values, p.advance().text)
		}
	}

	if _, err := p.expectKind(tokSemi, "';'"); err != nil {
		return d, err
	}
	return d, nil
}

// Load reads and parses a configuration file into Listeners, one per
// distinct `listen` port, applying the semantic rules in spec.md §3/§6:
// at most one default server per listener, unique server names
// (first-declaration wins), at most one location per path per server,
// root/alias mutual exclusion, and field inheritance from server to
// location.
func Load(path string) ([]*Listener, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	rawServers, err := parseSource(string(data))
	if err != nil {
		return nil, err
	}

	listeners := map[int]*Listener{}
	var order []int

	for _, rs := range rawServers {
		vs, err := buildServer(rs)
		if err != nil {
			return nil, err
		}

		ln, ok := listeners[vs.Port]
		if !ok {
			ln = &Listener{Port: vs.Port}
			listeners[vs.Port] = ln
			order = append(order, vs.Port)
		}
		if vs.IsDefault {
			for _, existing := range ln.Servers {
				if existing.IsDefault {
					return nil, fmt.Errorf("config: port %d has more than one default server", vs.Port)
				}
			}
		}
		for _, existing := range ln.Servers {
			for _, name := range vs.Names {
				if existing.HasName(name) {
					// First declaration wins; later duplicate names are
					// simply shadowed, matching spec.md §3's invariant.
					goto nextServer
				}
			}
		}
	nextServer:
		ln.Servers = append(ln.Servers, vs)
	}

	result := make([]*Listener, 0, len(order))
	for _, port := range order {
		result = append(result, listeners[port])
	}
	return result, nil
}

func buildServer(rs rawServer) (*VirtualServer, error) {
	vs := &VirtualServer{}
	common := &vs.Common

	var sawListen bool
	for _, d := range rs.directives {
		switch d.name {
		case "listen":
			if len(d.values) == 0 {
				return nil, fmt.Errorf("config: line %d: listen requires a port", d.line)
			}
			port, err := strconv.Atoi(d.values[0])
			if err != nil {
				return nil, fmt.Errorf("config: line %d: invalid listen port %q", d.line, d.values[0])
			}
			vs.Port = port
			sawListen = true
			if len(d.values) > 1 && d.values[1] == "default" {
				vs.IsDefault = true
			}
		case "server_name":
			vs.Names = append(vs.Names, d.values...)
		case "upload_folder":
			if len(d.values) != 1 {
				return nil, fmt.Errorf("config: line %d: upload_folder requires exactly one path", d.line)
			}
			vs.UploadDir = d.values[0]
		default:
			if err := applyCommonDirective(common, d); err != nil {
				return nil, err
			}
		}
	}
	if !sawListen {
		return nil, fmt.Errorf("config: server block missing 'listen' directive")
	}

	seenPaths := map[string]bool{}
	for _, rl := range rs.locations {
		loc, err := buildLocation(rl)
		if err != nil {
			return nil, err
		}
		if seenPaths[loc.Path] {
			return nil, fmt.Errorf("config: line %d: duplicate location %q", rl.line, loc.Path)
		}
		seenPaths[loc.Path] = true
		vs.Locations = append(vs.Locations, loc)
	}

	for _, loc := range vs.Locations {
		inheritFromServer(loc, vs)
	}

	return vs, nil
}

func buildLocation(rl rawLocation) (*Location, error) {
	loc := &Location{Path: rl.path, ExactPath: rl.modifier == "="}
	common := &loc.Common

	for _, d := range rl.directives {
		switch d.name {
		case "alias":
			if len(d.values) != 1 {
				return nil, fmt.Errorf("config: line %d: alias requires exactly one path", d.line)
			}
			if !strings.HasSuffix(d.values[0], "/") {
				return nil, fmt.Errorf("config: line %d: alias path %q must end with '/'", d.line, d.values[0])
			}
			loc.Alias = d.values[0]
		case "internal":
			loc.Internal = true
		default:
			if err := applyCommonDirective(common, d); err != nil {
				return nil, err
			}
		}
	}

	if loc.Alias != "" && common.Root != "" {
		return nil, fmt.Errorf("config: location %q sets both root and alias", loc.Path)
	}
	return loc, nil
}

func applyCommonDirective(c *Common, d rawDirective) error {
	switch d.name {
	case "root":
		if len(d.values) != 1 {
			return fmt.Errorf("config: line %d: root requires exactly one path", d.line)
		}
		c.Root = d.values[0]
	case "index":
		if len(d.values) != 1 {
			return fmt.Errorf("config: line %d: index requires exactly one filename", d.line)
		}
		c.Index = d.values[0]
	case "auto_index":
		if len(d.values) != 1 {
			return fmt.Errorf("config: line %d: auto_index requires on|off", d.line)
		}
		switch d.values[0] {
		case "on":
			c.AutoIndex = true
		case "off":
			c.AutoIndex = false
		default:
			return fmt.Errorf("config: line %d: auto_index must be on|off, got %q", d.line, d.values[0])
		}
		c.AutoIndexSet = true
	case "client_max_body_size":
		if len(d.values) != 1 {
			return fmt.Errorf("config: line %d: client_max_body_size requires exactly one value", d.line)
		}
		n, err := strconv.ParseUint(d.values[0], 10, 64)
		if err != nil {
			return fmt.Errorf("config: line %d: invalid client_max_body_size %q", d.line, d.values[0])
		}
		c.MaxBodySize = &n
	case "allowed_methods":
		if len(d.values) == 0 {
			return fmt.Errorf("config: line %d: allowed_methods requires at least one method", d.line)
		}
		if c.Methods == nil {
			c.Methods = map[string]bool{}
		}
		for _, m := range d.values {
			c.Methods[strings.ToUpper(m)] = true
		}
	case "cgi":
		if len(d.values) != 2 {
			return fmt.Errorf("config: line %d: cgi requires exactly an extension and an interpreter path", d.line)
		}
		if c.CGI == nil {
			c.CGI = map[string]string{}
		}
		c.CGI[d.values[0]] = d.values[1]
	case "return":
		ret, err := parseReturn(d)
		if err != nil {
			return err
		}
		c.Return = ret
	case "error_page":
		if err := parseErrorPage(c, d); err != nil {
			return err
		}
	case "internal":
		return fmt.Errorf("config: line %d: 'internal' is only valid inside a location block", d.line)
	default:
		return fmt.Errorf("config: line %d: unknown directive %q", d.line, d.name)
	}
	return nil
}

func parseReturn(d rawDirective) (*Return, error) {
	if len(d.values) != 1 && len(d.values) != 2 {
		return nil, fmt.Errorf("config: line %d: return requires a status and optional URL", d.line)
	}
	code, err := strconv.Atoi(d.values[0])
	if err != nil {
		return nil, fmt.Errorf("config: line %d: invalid return status %q", d.line, d.values[0])
	}
	ret := &Return{Code: code}
	if len(d.values) == 2 {
		ret.URL = d.values[1]
	}
	return ret, nil
}

// parseErrorPage accepts both forms spec.md §3/§6 name:
//   error_page 404 500 /errors/50x.html;       (codes..., file)
//   error_page 404 =403 /errors/403.html;       (code, redirect with override)
//   error_page 404 = /errors/404.html;          (code, redirect, same status)
func parseErrorPage(c *Common, d rawDirective) error {
	if len(d.values) < 2 {
		return fmt.Errorf("config: line %d: error_page requires at least one code and a target", d.line)
	}
	last := d.values[len(d.values)-1]

	if strings.HasPrefix(last, "=") {
		return fmt.Errorf("config: line %d: error_page redirect target must follow '='", d.line)
	}

	// Find where the run of numeric codes ends.
	var codes []int
	i := 0
	for ; i < len(d.values)-1; i++ {
		tok := d.values[i]
		if strings.HasPrefix(tok, "=") {
			break
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return fmt.Errorf("config: line %d: invalid error_page status %q", d.line, tok)
		}
		codes = append(codes, n)
	}
	if len(codes) == 0 {
		return fmt.Errorf("config: line %d: error_page requires at least one status code", d.line)
	}

	if i < len(d.values) && strings.HasPrefix(d.values[i], "=") {
		overrideTok := d.values[i]
		override := 0
		if len(overrideTok) > 1 {
			n, err := strconv.Atoi(overrideTok[1:])
			if err != nil {
				return fmt.Errorf("config: line %d: invalid error_page override status %q", d.line, overrideTok)
			}
			override = n
		}
		url := last
		if c.ErrorRedirect == nil {
			c.ErrorRedirect = map[int]ErrorRedirect{}
		}
		for _, code := range codes {
			c.ErrorRedirect[code] = ErrorRedirect{Status: override, URL: url}
		}
		return nil
	}

	// Plain file form: every listed code before the final token maps to
	// that file; the final token is always the file, never a code (the
	// "codes..., file" shape above).
	file := last
	if c.ErrorPages == nil {
		c.ErrorPages = map[int]string{}
	}
	for _, code := range codes {
		c.ErrorPages[code] = file
	}
	return nil
}

func inheritFromServer(loc *Location, vs *VirtualServer) {
	if loc.Root == "" && loc.Alias == "" {
		loc.Root = vs.Root
	}
	if loc.UploadDir == "" {
		loc.UploadDir = vs.UploadDir
	}
	if loc.Index == "" {
		loc.Index = vs.Index
	}
	if !loc.AutoIndexSet {
		loc.AutoIndex = vs.AutoIndex
	}
	if loc.MaxBodySize == nil {
		loc.MaxBodySize = vs.MaxBodySize
	}
	if loc.Methods == nil {
		loc.Methods = vs.Methods
	}
	if loc.Return == nil {
		loc.Return = vs.Return
	}
	if loc.ErrorPages == nil {
		loc.ErrorPages = vs.ErrorPages
	}
	if loc.ErrorRedirect == nil {
		loc.ErrorRedirect = vs.ErrorRedirect
	}
	if loc.CGI == nil {
		loc.CGI = vs.CGI
	}
}
