// Package validate applies spec.md §4.3 to a resolved (virtual server,
// location, request) triple: method allow-list, body-size limit,
// root/alias rewriting, and index/autoindex resolution.
//
// Grounded on spec.md §9's redesign note: the source smuggled a 301 out
// through its error channel. Here validation returns an Outcome that is
// either Proceed (with the rewritten filesystem path and any matched
// CGI interpreter) or Respond (a status to send outright, covering
// every one of 301/403/404/405/413/501 plus a configured `return`).
package validate

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yourusername/originserver/internal/config"
	"github.com/yourusername/originserver/internal/httpserve/request"
)

// Outcome is the result of validating one request against one location
// (or, lacking a location match, the virtual server itself).
type Outcome struct {
	// Respond is true when validation already decided the whole
	// response: a redirect, a configured `return`, or an error status.
	// FilePath/IsDirectory/CGIInterpreter are meaningless in that case.
	Respond  bool
	Code     int
	Redirect string // Location header value, set for 3xx outcomes

	// FilePath is the rewritten filesystem path to serve when Respond
	// is false.
	FilePath string
	// IsDirectory is true when FilePath names a directory the response
	// builder should auto-index (autoindex is known to be on whenever
	// this is true and Respond is false).
	IsDirectory bool
	// CGIInterpreter is the configured interpreter path when FilePath's
	// extension is a key in the effective cgi map; empty otherwise.
	CGIInterpreter string

	UploadDir string
}

func respond(code int) Outcome { return Outcome{Respond: true, Code: code} }

func redirect(code int, location string) Outcome {
	return Outcome{Respond: true, Code: code, Redirect: location}
}

// effective returns the Common fields in force for this request: the
// location's if one matched (already populated with inherited fields at
// config-load time), otherwise the virtual server's own.
func effective(vs *config.VirtualServer, loc *config.Location) *config.Common {
	if loc != nil {
		return &loc.Common
	}
	return &vs.Common
}

// Validate runs every check in spec.md §4.3, in order, short-circuiting
// on the first one that produces a response.
func Validate(vs *config.VirtualServer, loc *config.Location, req *request.Request) Outcome {
	eff := effective(vs, loc)

	// 1. Method gate.
	if req.Method == request.Unknown {
		return respond(501)
	}
	if len(eff.Methods) == 0 || !eff.Methods[req.Method.String()] {
		return respond(405)
	}

	// 2. Size gate. Absent max body size means unbounded (spec.md §9).
	if eff.MaxBodySize != nil && req.HasContentLength && req.ContentLength > *eff.MaxBodySize {
		return respond(413)
	}

	// Configured `return` short-circuits the rest of validation.
	if eff.Return != nil {
		if eff.Return.URL == "" {
			return respond(eff.Return.Code)
		}
		return redirect(eff.Return.Code, eff.Return.URL)
	}

	// 3. Path rewrite.
	locPath, alias := "", ""
	if loc != nil {
		locPath = loc.Path
		alias = loc.Alias
	}
	fsPath, err := rewritePath(eff, alias, locPath, req.Path)
	if err != nil {
		return respond(404)
	}

	info, statErr := os.Stat(fsPath)
	if statErr == nil && info.IsDir() && !strings.HasSuffix(req.Path, "/") {
		return redirect(301, req.Path+"/")
	}

	// 4. Index/autoindex.
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return respond(404)
		}
		return respond(statusForStatErr(statErr))
	}

	out := Outcome{FilePath: fsPath, UploadDir: eff.UploadDir}

	if info.IsDir() {
		if eff.Index != "" {
			indexPath := filepath.Join(fsPath, eff.Index)
			if idxInfo, err := os.Stat(indexPath); err == nil && !idxInfo.IsDir() {
				out.FilePath = indexPath
				return out
			}
		}
		if !eff.AutoIndex {
			return respond(403)
		}
		out.IsDirectory = true
		return out
	}

	if ext := fileExtension(fsPath); ext != "" {
		if interp, ok := eff.CGI[ext]; ok {
			out.CGIInterpreter = interp
		}
	}
	return out
}

// rewritePath implements spec.md §4.3 step 3: alias replaces the
// location's own path prefix, root prepends, and a location with
// neither configured is a 404 before the filesystem is even touched.
func rewritePath(eff *config.Common, alias, locPath, reqPath string) (string, error) {
	if alias != "" {
		rest := strings.TrimPrefix(reqPath, locPath)
		return path.Join(alias, rest), nil
	}
	if eff.Root != "" {
		return path.Join(eff.Root, reqPath), nil
	}
	return "", errNoRootOrAlias
}

func fileExtension(p string) string {
	ext := filepath.Ext(p)
	return strings.TrimPrefix(ext, ".")
}

func statusForStatErr(err error) int {
	if os.IsPermission(err) {
		return 403
	}
	return 500
}
