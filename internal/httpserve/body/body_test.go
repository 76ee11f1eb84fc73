package body

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/yourusername/originserver/internal/httpserve/request"
)

func TestDeterminePlanNoContentLength(t *testing.T) {
	req := &request.Request{Method: request.GET}
	plan, err := DeterminePlan(req, "")
	if err != nil {
		t.Fatal(err)
	}
	if plan.Mode != ModeNone {
		t.Fatalf("expected ModeNone, got %v", plan.Mode)
	}
}

func TestDeterminePlanDrainForNonPost(t *testing.T) {
	req := &request.Request{Method: request.PUT, HasContentLength: true, ContentLength: 5}
	plan, err := DeterminePlan(req, "")
	if err != nil {
		t.Fatal(err)
	}
	if plan.Mode != ModeDrain || plan.ContentLength != 5 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestDeterminePlanSingleFileRequiresUploadDir(t *testing.T) {
	req := &request.Request{Method: request.POST, HasContentLength: true, ContentLength: 5}
	if _, err := DeterminePlan(req, ""); err != ErrUploadDirMissing {
		t.Fatalf("expected ErrUploadDirMissing, got %v", err)
	}
	if _, err := DeterminePlan(req, "/does/not/exist"); err != ErrUploadDirMissing {
		t.Fatalf("expected ErrUploadDirMissing, got %v", err)
	}
}

func TestDeterminePlanMultipartDetection(t *testing.T) {
	dir := t.TempDir()
	req := &request.Request{
		Method:           request.POST,
		HasContentLength: true,
		ContentLength:    5,
		HasContentType:   true,
		ContentType:      "multipart/form-data; boundary=XYZ",
	}
	plan, err := DeterminePlan(req, dir)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Mode != ModeMultipart || plan.Boundary != "XYZ" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestHandleDrainConsumesExactLength(t *testing.T) {
	tail := []byte("hello")
	plan := Plan{Mode: ModeDrain, ContentLength: 5}
	rest, err := Handle(bytes.NewReader(nil), tail, plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected empty rest, got %q", rest)
	}
}

func TestHandleDrainLeavesTrailingTail(t *testing.T) {
	tail := []byte("helloGET /next")
	plan := Plan{Mode: ModeDrain, ContentLength: 5}
	rest, err := Handle(bytes.NewReader(nil), tail, plan)
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "GET /next" {
		t.Fatalf("unexpected rest: %q", rest)
	}
}

func TestHandleDrainReadsFromConnWhenTailShort(t *testing.T) {
	tail := []byte("he")
	conn := bytes.NewReader([]byte("llo"))
	plan := Plan{Mode: ModeDrain, ContentLength: 5}
	rest, err := Handle(conn, tail, plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected empty rest, got %q", rest)
	}
}

func TestHandleDrainUnexpectedEOF(t *testing.T) {
	tail := []byte("he")
	conn := bytes.NewReader(nil)
	plan := Plan{Mode: ModeDrain, ContentLength: 5}
	_, err := Handle(conn, tail, plan)
	if err != request.ErrUnexpectedEOF {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestHandleSingleFileWritesUpload(t *testing.T) {
	dir := t.TempDir()
	plan := Plan{Mode: ModeSingleFile, ContentLength: 5, UploadDir: dir}
	if _, err := Handle(bytes.NewReader(nil), []byte("hello"), plan); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one uploaded file, got %d", len(entries))
	}
	got, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestHandleNoneReturnsTailUnchanged(t *testing.T) {
	tail := []byte("GET /a HTTP/1.1\r\n\r\n")
	rest, err := Handle(bytes.NewReader(nil), tail, Plan{Mode: ModeNone})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rest, tail) {
		t.Fatalf("expected tail unchanged, got %q", rest)
	}
}

var _ io.Reader = bytes.NewReader(nil)
