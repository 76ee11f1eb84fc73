package request

import (
	"bytes"
	"strconv"
)

const crlfcrlf = "\r\n\r\n"

// Frame looks for a CRLFCRLF header terminator in buf. If none is found
// yet, it returns (nil, false, nil) so the connection loop can read more
// bytes and try again — grounded on http11.Parser.readUntilHeadersEnd's
// incremental-append loop, but split so the accumulation itself stays
// in the connection loop (spec.md §4.1: "the framer does not read from
// the socket").
//
// On success it returns a fully parsed Request whose RawHeaderTail is
// every byte of buf after the terminator — the start of the request
// body, or of the next pipelined request if this one has no body.
// Frame never consumes more than one request per call, even if buf
// holds several pipelined requests back to back.
func Frame(buf []byte) (*Request, bool, error) {
	idx := bytes.Index(buf, []byte(crlfcrlf))
	if idx == -1 {
		return nil, false, nil
	}
	head := buf[:idx+2] // keep the header section's own trailing CRLF
	tail := buf[idx+4:]

	req := &Request{KeepAlive: true}

	lineEnd := bytes.Index(head, []byte("\r\n"))
	if lineEnd == -1 {
		return nil, true, ErrInvalidRequestLine
	}
	if lineEnd == 0 {
		return nil, true, ErrEmptyHeaderSection
	}
	if err := parseRequestLine(req, head[:lineEnd]); err != nil {
		return nil, true, err
	}

	if err := parseHeaders(req, head[lineEnd+2:]); err != nil {
		return nil, true, err
	}

	req.RawHeaderTail = append([]byte(nil), tail...)
	return req, true, nil
}

func parseRequestLine(req *Request, line []byte) error {
	fields := bytes.Fields(line)
	if len(fields) != 3 {
		return ErrInvalidRequestLine
	}

	req.Method = ParseMethod(fields[0])
	req.Version = string(fields[2])

	target := fields[1]
	if q := bytes.IndexByte(target, '?'); q != -1 {
		req.Path = string(target[:q])
		req.Query = string(target[q+1:])
	} else {
		req.Path = string(target)
	}
	return nil
}

// parseHeaders walks "Name: Value\r\n" lines up to (but not including)
// the blank line the caller already stripped off. Duplicate handling
// follows spec.md §4.1 exactly: Host/Content-Length/Content-Type may
// appear at most once, Accept and Connection get dedicated merge
// rules, everything else concatenates with "  ".
func parseHeaders(req *Request, buf []byte) error {
	req.Headers = map[string]string{}

	for len(buf) > 0 {
		lineEnd := bytes.Index(buf, []byte("\r\n"))
		if lineEnd == -1 {
			lineEnd = len(buf)
		}
		line := buf[:lineEnd]
		if lineEnd == len(buf) {
			buf = nil
		} else {
			buf = buf[lineEnd+2:]
		}
		if len(line) == 0 {
			continue
		}

		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			return ErrInvalidHeader
		}
		name := string(bytes.TrimSpace(line[:colon]))
		value := string(bytes.TrimLeft(line[colon+1:], " \t"))
		value = string(bytes.TrimRight([]byte(value), " \t"))
		if name == "" {
			return ErrInvalidHeader
		}

		if err := applyHeader(req, name, value); err != nil {
			return err
		}
	}
	return nil
}

func applyHeader(req *Request, name, value string) error {
	switch canonicalHeaderKey(name) {
	case "host":
		if req.HasHost {
			return ErrDuplicateHost
		}
		req.HasHost = true
		req.Host = value

	case "content-length":
		if req.HasContentLength {
			return ErrDuplicateContentLength
		}
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return ErrInvalidContentLength
		}
		req.HasContentLength = true
		req.ContentLength = n

	case "content-type":
		if req.HasContentType {
			return ErrDuplicateContentType
		}
		req.HasContentType = true
		req.ContentType = value

	case "connection":
		if canonicalHeaderKey(value) == "close" {
			req.KeepAlive = false
		}

	case "accept":
		if req.Accept == "" {
			req.Accept = value
		} else {
			req.Accept = req.Accept + " " + value
		}

	default:
		key := canonicalHeaderKey(name)
		if existing, ok := req.Headers[key]; ok {
			req.Headers[key] = existing + "  " + value
		} else {
			req.Headers[key] = value
		}
	}
	return nil
}
