// Package conn drives one accepted connection end to end per
// spec.md §4.8: accumulate bytes, frame one request, resolve its
// virtual server and location, validate it, handle its body, dispatch
// to CGI or the static file path, and send a response — repeating until
// the connection should close.
//
// Grounded on pkg/shockwave/http11/connection.go's Serve() loop shape
// (read/parse/handle/flush/decide-to-close), rewritten around this
// project's own framer/resolve/validate/body/response packages instead
// of the teacher's pooled Request/ResponseWriter types.
package conn

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/originserver/internal/config"
	"github.com/yourusername/originserver/internal/httpserve/body"
	"github.com/yourusername/originserver/internal/httpserve/bufpool"
	"github.com/yourusername/originserver/internal/httpserve/cgi"
	"github.com/yourusername/originserver/internal/httpserve/request"
	"github.com/yourusername/originserver/internal/httpserve/resolve"
	"github.com/yourusername/originserver/internal/httpserve/response"
	"github.com/yourusername/originserver/internal/httpserve/validate"
)

const readChunkSize = 8 * 1024

// Serve owns c until the connection closes. It never returns an error —
// every failure is either a response sent over c or a reason to stop
// serving it, logged through log.
func Serve(c net.Conn, ln *config.Listener, log *logrus.Entry) {
	defer c.Close()

	var acc []byte
	for {
		req, errTail, err := frameNext(c, &acc)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, request.ErrUnexpectedEOF) {
				return
			}
			writeErrorResponse(c, nil, nil, 400, nil)
			acc = errTail
			continue
		}

		vs := resolve.Server(ln, req.Host, req.HasHost)
		if vs == nil {
			return
		}
		loc := resolve.Location(vs, req.Path)
		outcome := validate.Validate(vs, loc, req)

		if outcome.Respond {
			headers := map[string]string{}
			if outcome.Redirect != "" {
				headers["Location"] = outcome.Redirect
			}
			writeErrorResponse(c, vs, loc, outcome.Code, headers)
			acc = req.RawHeaderTail
			if !req.KeepAlive {
				return
			}
			continue
		}

		if outcome.CGIInterpreter != "" {
			acc = req.RawHeaderTail
			if !serveCGI(c, &acc, outcome, req, log) {
				return
			}
			if !req.KeepAlive {
				return
			}
			continue
		}

		plan, planErr := body.DeterminePlan(req, outcome.UploadDir)
		if planErr != nil {
			writeErrorResponse(c, vs, loc, 404, nil)
			acc = req.RawHeaderTail
			if !req.KeepAlive {
				return
			}
			continue
		}

		tail, bodyErr := body.Handle(c, req.RawHeaderTail, plan)
		if bodyErr != nil {
			if errors.Is(bodyErr, request.ErrUnexpectedEOF) {
				return
			}
			log.WithError(bodyErr).Warn("body handling failed")
			writeErrorResponse(c, vs, loc, 500, nil)
			if !req.KeepAlive {
				return
			}
			acc = nil
			continue
		}
		acc = tail

		if outcome.IsDirectory {
			if !serveDirectory(c, vs, loc, outcome, req) {
				return
			}
			if !req.KeepAlive {
				return
			}
			continue
		}

		if !serveFile(c, vs, loc, outcome, req) {
			return
		}
		if !req.KeepAlive {
			return
		}
	}
}

// frameNext reads from c into acc until a full request frames, returning
// it along with whatever tail preceded a framing error (spec.md §7:
// framing errors produce a 400 and the connection continues with the
// tail preserved).
func frameNext(c net.Conn, acc *[]byte) (*request.Request, []byte, error) {
	for {
		idx := bytes.Index(*acc, []byte("\r\n\r\n"))
		if idx == -1 {
			n, err := readMore(c, acc)
			if n == 0 {
				if err == nil {
					err = io.EOF
				}
				return nil, nil, err
			}
			continue
		}

		tail := append([]byte(nil), (*acc)[idx+4:]...)
		req, ok, err := request.Frame(*acc)
		if !ok {
			continue
		}
		if err != nil {
			return nil, tail, err
		}
		return req, nil, nil
	}
}

func readMore(c net.Conn, acc *[]byte) (int, error) {
	buf, scratch := bufpool.Scratch(readChunkSize)
	defer bufpool.Put(buf)
	n, err := c.Read(scratch)
	if n > 0 {
		*acc = append(*acc, scratch[:n]...)
	}
	return n, err
}

func serveCGI(c net.Conn, acc *[]byte, outcome validate.Outcome, req *request.Request, log *logrus.Entry) bool {
	resp, rest, err := cgi.Run(outcome.CGIInterpreter, outcome.FilePath, req, c, *acc)
	if err != nil {
		log.WithError(err).Warn("cgi invocation failed")
		writeErrorResponse(c, nil, nil, 500, nil)
		return true
	}
	*acc = rest

	out, err := io.ReadAll(resp.Body)
	if waitErr := resp.Wait(); waitErr != nil {
		err = waitErr
	}
	if err != nil {
		log.WithError(err).Warn("cgi interpreter failed")
		writeErrorResponse(c, nil, nil, 500, nil)
		return true
	}

	if _, err := io.WriteString(c, resp.StatusLine+"\r\n"); err != nil {
		return false
	}
	if _, err := c.Write(out); err != nil {
		return false
	}
	return true
}

func serveDirectory(c net.Conn, vs *config.VirtualServer, loc *config.Location, outcome validate.Outcome, req *request.Request) bool {
	entries, err := os.ReadDir(outcome.FilePath)
	if err != nil {
		writeErrorResponse(c, vs, loc, response.StatusForIOError(err), nil)
		return true
	}
	html := response.DirectoryListing(req.Path, entries)
	_, err = response.Write(c, response.Send{
		Code:          200,
		ExtraHeaders:  map[string]string{"Content-Type": "text/html"},
		Body:          bytes.NewReader(html),
		ContentLength: int64(len(html)),
		SuppressBody:  req.Method == request.HEAD,
	})
	return sendOK(err, req.KeepAlive)
}

func serveFile(c net.Conn, vs *config.VirtualServer, loc *config.Location, outcome validate.Outcome, req *request.Request) bool {
	f, size, err := response.FileBody(outcome.FilePath)
	if err != nil {
		writeErrorResponse(c, vs, loc, response.StatusForIOError(err), nil)
		return true
	}
	defer f.Close()

	headers := map[string]string{}
	if ct := mimeType(outcome.FilePath); ct != "" {
		headers["Content-Type"] = ct
	}
	_, err = response.Write(c, response.Send{
		Code:          200,
		ExtraHeaders:  headers,
		Body:          f,
		ContentLength: size,
		SuppressBody:  req.Method == request.HEAD,
	})
	return sendOK(err, req.KeepAlive)
}

// sendOK decides whether the connection survives a response-send error,
// per spec.md §7: close unless keep-alive was requested and the error
// wasn't an EOF.
func sendOK(err error, keepAlive bool) bool {
	if err == nil {
		return true
	}
	if keepAlive && !errors.Is(err, io.EOF) {
		return true
	}
	return false
}

// writeErrorResponse honors configured error_page/error_page-redirect
// overrides (spec.md §7) before falling back to the short reason-phrase
// body. vs/loc may both be nil (a framing error, before resolution).
func writeErrorResponse(w io.Writer, vs *config.VirtualServer, loc *config.Location, code int, extra map[string]string) {
	if extra == nil {
		extra = map[string]string{}
	}

	if vs != nil {
		eff := effectiveCommon(vs, loc)
		if redir, ok := eff.ErrorRedirect[code]; ok {
			status := redir.Status
			if status == 0 {
				status = code
			}
			headers := map[string]string{"Location": redir.URL}
			response.Write(w, response.Send{Code: status, ExtraHeaders: headers})
			return
		}
		if path, ok := eff.ErrorPages[code]; ok {
			if f, size, err := response.FileBody(path); err == nil {
				defer f.Close()
				response.Write(w, response.Send{Code: code, ExtraHeaders: extra, Body: f, ContentLength: size})
				return
			}
		}
	}

	body := response.ErrorBody(code)
	response.Write(w, response.Send{Code: code, ExtraHeaders: extra, Body: bytes.NewReader(body), ContentLength: int64(len(body))})
}

func effectiveCommon(vs *config.VirtualServer, loc *config.Location) *config.Common {
	if loc != nil {
		return &loc.Common
	}
	return &vs.Common
}

func mimeType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	switch strings.TrimPrefix(ext, ".") {
	case "html", "htm":
		return "text/html"
	case "txt":
		return "text/plain"
	case "css":
		return "text/css"
	case "js":
		return "application/javascript"
	case "json":
		return "application/json"
	default:
		return ""
	}
}
