// Package multipart streams a multipart/form-data request body straight
// to disk, one part at a time, without ever buffering a part in full.
//
// Grounded on spec.md §4.5's state machine (AtBoundary/PartHeader/
// PartBody); the teacher has no multipart support at all (it serves
// static files and benchmarks wire framing), so this is new code
// written in the teacher's plain-function style over its buffer-pooling
// concern (bufpool, itself grounded on http11/pool.go).
package multipart

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/yourusername/originserver/internal/httpserve/bufpool"
	"github.com/yourusername/originserver/internal/httpserve/request"
)

// ErrInvalidBoundary indicates the body didn't follow the boundary
// framing the Content-Type header promised.
var ErrInvalidBoundary = errors.New("multipart: invalid boundary")

// scanner accumulates bytes drawn from (tail || conn), bounded by
// remaining, and lets callers search for delimiters while flushing
// already-scanned prefixes off the front to keep the buffer small.
type scanner struct {
	conn      io.Reader
	buf       []byte
	remaining uint64
}

// fill reads from conn until buf holds at least min bytes or the body's
// declared length is exhausted.
func (s *scanner) fill(min int) error {
	for len(s.buf) < min && s.remaining > 0 {
		chunk, scratch := bufpool.Scratch(4096)
		want := uint64(len(scratch))
		if want > s.remaining {
			want = s.remaining
		}
		n, err := s.conn.Read(scratch[:want])
		if n > 0 {
			s.buf = append(s.buf, scratch[:n]...)
			s.remaining -= uint64(n)
		}
		bufpool.Put(chunk)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return request.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}

func (s *scanner) consumeFront(n int) {
	s.buf = s.buf[n:]
}

// Parse streams a multipart/form-data body of exactly contentLength
// bytes (drawn from tail, then conn) and writes each part's content to
// <uploadDir>/<filename>. It returns whatever bytes in tail followed the
// body — the start of the next pipelined request.
func Parse(conn io.Reader, tail []byte, contentLength uint64, boundary, uploadDir string) ([]byte, error) {
	delim := []byte("--" + boundary)

	var rest []byte
	if uint64(len(tail)) > contentLength {
		rest = tail[contentLength:]
		tail = tail[:contentLength]
	}

	sc := &scanner{
		conn:      conn,
		buf:       append([]byte(nil), tail...),
		remaining: contentLength - uint64(len(tail)),
	}

	for {
		terminal, err := atBoundary(sc, delim)
		if err != nil {
			return nil, err
		}
		if terminal {
			// The closing delimiter's CRLF (and any epilogue) still count
			// toward contentLength; read them off conn as well.
			if err := sc.fill(len(sc.buf) + int(sc.remaining)); err != nil {
				return nil, err
			}
			return rest, nil
		}

		filename, err := partHeader(sc)
		if err != nil {
			return nil, err
		}

		f, err := os.Create(filepath.Join(uploadDir, filename))
		if err != nil {
			return nil, err
		}
		if err := partBody(sc, delim, f); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	}
}

// atBoundary expects the next bytes in sc to be the wire boundary,
// followed either by "--" (terminal) or CRLF (another part follows).
func atBoundary(sc *scanner, delim []byte) (terminal bool, err error) {
	for {
		if idx := bytes.Index(sc.buf, delim); idx >= 0 {
			sc.consumeFront(idx)
			after := len(delim)
			if err := sc.fill(after + 2); err != nil {
				return false, err
			}
			switch {
			case len(sc.buf) >= after+2 && sc.buf[after] == '-' && sc.buf[after+1] == '-':
				return true, nil
			case len(sc.buf) >= after+2 && sc.buf[after] == '\r' && sc.buf[after+1] == '\n':
				sc.consumeFront(after + 2)
				return false, nil
			default:
				return false, ErrInvalidBoundary
			}
		}
		if sc.remaining == 0 {
			return false, ErrInvalidBoundary
		}
		if err := sc.fill(len(sc.buf) + 1); err != nil {
			return false, err
		}
	}
}

// partHeader accumulates header lines up to the blank-line terminator
// and extracts the part's filename.
func partHeader(sc *scanner) (filename string, err error) {
	for {
		if idx := bytes.Index(sc.buf, []byte("\r\n\r\n")); idx >= 0 {
			filename = parseFilename(sc.buf[:idx])
			sc.consumeFront(idx + 4)
			return filename, nil
		}
		if sc.remaining == 0 {
			return "", ErrInvalidBoundary
		}
		if err := sc.fill(len(sc.buf) + 1); err != nil {
			return "", err
		}
	}
}

// partBody writes everything up to (but not including) the CRLF that
// precedes the next boundary, flushing scanned-and-safe prefixes to f as
// it goes so the buffer never grows past one boundary (plus the CRLF
// before it) and a read chunk.
func partBody(sc *scanner, delim []byte, f *os.File) error {
	for {
		if idx := bytes.Index(sc.buf, delim); idx >= 0 {
			end := idx
			if end >= 2 && sc.buf[end-2] == '\r' && sc.buf[end-1] == '\n' {
				end -= 2
			}
			if end > 0 {
				if _, err := f.Write(sc.buf[:end]); err != nil {
					return err
				}
			}
			sc.consumeFront(idx)
			return nil
		}
		if len(sc.buf) > len(delim)+2 {
			safe := len(sc.buf) - len(delim) - 2
			if _, err := f.Write(sc.buf[:safe]); err != nil {
				return err
			}
			sc.consumeFront(safe)
		}
		if sc.remaining == 0 {
			return ErrInvalidBoundary
		}
		if err := sc.fill(len(sc.buf) + 1); err != nil {
			return err
		}
	}
}

// parseFilename extracts the double-quoted filename="..." value from a
// part's Content-Disposition header, defaulting to "temp" per spec.md
// §4.5 when absent. filepath.Base guards against a part smuggling a
// path (e.g. "../../etc/passwd") into the upload directory.
func parseFilename(header []byte) string {
	const key = `filename="`
	idx := bytes.Index(header, []byte(key))
	if idx < 0 {
		return "temp"
	}
	rest := header[idx+len(key):]
	end := bytes.IndexByte(rest, '"')
	if end < 0 {
		return "temp"
	}
	name := string(rest[:end])
	if name == "" {
		return "temp"
	}
	return filepath.Base(name)
}
