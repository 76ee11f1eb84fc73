package multipart

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestParseSinglePart(t *testing.T) {
	dir := t.TempDir()
	body := "--XYZ\r\n" +
		"Content-Disposition: form-data; filename=\"f.txt\"\r\n" +
		"\r\n" +
		"hello\r\n" +
		"--XYZ--\r\n"

	rest, err := Parse(bytes.NewReader(nil), []byte(body), uint64(len(body)), "XYZ", dir)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no tail, got %q", rest)
	}
	got, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestParseDefaultFilename(t *testing.T) {
	dir := t.TempDir()
	body := "--XYZ\r\n" +
		"Content-Disposition: form-data\r\n" +
		"\r\n" +
		"data\r\n" +
		"--XYZ--\r\n"

	if _, err := Parse(bytes.NewReader(nil), []byte(body), uint64(len(body)), "XYZ", dir); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "temp")); err != nil {
		t.Fatalf("expected default filename temp: %v", err)
	}
}

func TestParseSplitAcrossReads(t *testing.T) {
	dir := t.TempDir()
	full := "--XYZ\r\n" +
		"Content-Disposition: form-data; filename=\"big.bin\"\r\n" +
		"\r\n" +
		"0123456789abcdefghij\r\n" +
		"--XYZ--\r\n"

	// Feed the framer only a few bytes of tail; the rest arrives through
	// conn in small chunks, exercising boundary-straddling reads.
	tail := []byte(full[:10])
	reader := bytes.NewReader([]byte(full[10:]))

	rest, err := Parse(&smallReads{r: reader, chunk: 3}, tail, uint64(len(full)), "XYZ", dir)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no tail, got %q", rest)
	}
	got, err := os.ReadFile(filepath.Join(dir, "big.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "0123456789abcdefghij" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestParseRejectsMalformedBoundary(t *testing.T) {
	dir := t.TempDir()
	body := "not-a-boundary-at-all"
	if _, err := Parse(bytes.NewReader(nil), []byte(body), uint64(len(body)), "XYZ", dir); err != ErrInvalidBoundary {
		t.Fatalf("expected ErrInvalidBoundary, got %v", err)
	}
}

// smallReads wraps a reader and caps every Read to at most chunk bytes,
// forcing the scanner through multiple fill() calls per part.
type smallReads struct {
	r     *bytes.Reader
	chunk int
}

func (s *smallReads) Read(p []byte) (int, error) {
	if len(p) > s.chunk {
		p = p[:s.chunk]
	}
	return s.r.Read(p)
}
