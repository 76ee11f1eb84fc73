package config

import (
	"fmt"
	"strings"
)

// token kinds. The grammar has no quoting and no escape sequences —
// grounded on original_source/src/parsing/config_parsing.rs, whose
// `identifier` combinator is "any run of non-whitespace, non-semicolon
// bytes."
type tokenKind int

const (
	tokWord tokenKind = iota
	tokLBrace
	tokRBrace
	tokSemi
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	line int
}

// lexer splits the config source into words, braces and semicolons,
// skipping whitespace and `#`-prefixed line comments (a convenience the
// Rust grammar lacked but every sibling config DSL in the retrieval
// pack — Caddyfile included — supports).
type lexer struct {
	src  string
	pos  int
	line int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1}
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func isBoundary(c byte) bool {
	return c == '{' || c == '}' || c == ';' || c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line}, nil
	}

	line := l.line
	switch l.src[l.pos] {
	case '{':
		l.pos++
		return token{kind: tokLBrace, text: "{", line: line}, nil
	case '}':
		l.pos++
		return token{kind: tokRBrace, text: "}", line: line}, nil
	case ';':
		l.pos++
		return token{kind: tokSemi, text: ";", line: line}, nil
	}

	start := l.pos
	for l.pos < len(l.src) && !isBoundary(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		return token{}, fmt.Errorf("config: unexpected byte %q at line %d", l.src[l.pos], line)
	}
	return token{kind: tokWord, text: l.src[start:l.pos], line: line}, nil
}

// tokenize runs the lexer to completion; callers then walk the slice
// with a small recursive-descent parser (see parser.go).
func tokenize(src string) ([]token, error) {
	l := newLexer(src)
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

func trimmed(s string) string { return strings.TrimSpace(s) }
