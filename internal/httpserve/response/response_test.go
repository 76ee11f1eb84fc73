package response

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteInlineBody(t *testing.T) {
	var buf bytes.Buffer
	body := bytes.NewReader([]byte("hi"))
	n, err := Write(&buf, Send{Code: 200, Body: body, ContentLength: 2})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 bytes written, got %d", n)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", got)
	}
	if !strings.Contains(got, "Content-Length: 2\r\n") {
		t.Fatalf("missing content-length: %q", got)
	}
	if !strings.HasSuffix(got, "hi\r\n") {
		t.Fatalf("expected trailing CRLF after body: %q", got)
	}
}

func TestWriteSuppressesBodyOn204(t *testing.T) {
	var buf bytes.Buffer
	body := bytes.NewReader([]byte("hi"))
	if _, err := Write(&buf, Send{Code: 204, Body: body, ContentLength: 2}); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if strings.Contains(got, "Content-Length") {
		t.Fatalf("204 must omit Content-Length: %q", got)
	}
	if strings.Contains(got, "hi") {
		t.Fatalf("204 must omit body: %q", got)
	}
}

func TestWriteSuppressesBodyOnHead(t *testing.T) {
	var buf bytes.Buffer
	body := bytes.NewReader([]byte("hi"))
	if _, err := Write(&buf, Send{Code: 200, Body: body, ContentLength: 2, SuppressBody: true}); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if strings.Contains(got, "Content-Length") || strings.Contains(got, "hi") {
		t.Fatalf("HEAD must omit body and Content-Length: %q", got)
	}
}

func TestWriteNoBodyOmitsContentLength(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Write(&buf, Send{Code: 301, ExtraHeaders: map[string]string{"Location": "/x/"}}); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if !strings.Contains(got, "Location: /x/\r\n") {
		t.Fatalf("missing Location header: %q", got)
	}
	if strings.Contains(got, "Content-Length") {
		t.Fatalf("bodyless response must omit Content-Length: %q", got)
	}
}

func TestDirectoryListingExcludesDotfilesAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", ".hidden"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	html := string(DirectoryListing("/files", entries))
	if strings.Contains(html, ".hidden") {
		t.Fatalf("dotfile leaked into listing: %s", html)
	}
	if strings.Index(html, "a.txt") > strings.Index(html, "b.txt") {
		t.Fatalf("entries not sorted ascending: %s", html)
	}
}

func TestStatusForIOErrorNotExist(t *testing.T) {
	_, err := os.Open(filepath.Join(t.TempDir(), "missing"))
	if got := StatusForIOError(err); got != 404 {
		t.Fatalf("expected 404, got %d", got)
	}
}
