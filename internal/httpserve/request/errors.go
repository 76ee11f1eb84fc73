package request

import "errors"

// Framing errors — every one of these corresponds to the 400 responses
// spec.md §4.1/§7 describes. The connection loop maps any of them to a
// 400 response and keeps the connection, since a malformed request
// doesn't poison the stream the way a body-length violation does.
var (
	// ErrInvalidRequestLine indicates the start line didn't yield
	// exactly three whitespace-separated tokens.
	ErrInvalidRequestLine = errors.New("request: invalid request line")

	// ErrInvalidHeader indicates a header line had no colon separator.
	ErrInvalidHeader = errors.New("request: invalid header line")

	// ErrDuplicateHost indicates a second Host header was seen.
	ErrDuplicateHost = errors.New("request: duplicate Host header")

	// ErrDuplicateContentLength indicates a second Content-Length header
	// was seen.
	ErrDuplicateContentLength = errors.New("request: duplicate Content-Length header")

	// ErrDuplicateContentType indicates a second Content-Type header was
	// seen.
	ErrDuplicateContentType = errors.New("request: duplicate Content-Type header")

	// ErrInvalidContentLength indicates Content-Length didn't parse as
	// an unsigned integer.
	ErrInvalidContentLength = errors.New("request: invalid Content-Length")

	// ErrEmptyHeaderSection indicates the framer found the CRLFCRLF
	// terminator immediately, with no request line before it.
	ErrEmptyHeaderSection = errors.New("request: empty header section")
)

// ErrUnexpectedEOF indicates the peer closed the connection mid-frame.
// Per spec.md §7 this is transport-fatal: no response is sent and the
// connection is simply closed.
var ErrUnexpectedEOF = errors.New("request: unexpected EOF")
