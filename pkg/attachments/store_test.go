package attachments

import (
	"errors"
	"strings"
	"testing"
)

func TestPreviewSaveOpenRelease(t *testing.T) {
	s := NewPreviewStore()
	rec := s.Save("../../etc/demo.txt", "text/plain", []byte("hello"))
	if rec.ID == "" || rec.SHA256 == "" {
		t.Fatalf("unexpected empty record: %+v", rec)
	}
	if rec.Name != "demo.txt" {
		t.Fatalf("name = %q, want sanitized demo.txt", rec.Name)
	}
	if !strings.HasPrefix(rec.Handle(), PreviewScheme) {
		t.Fatalf("handle %q lacks scheme", rec.Handle())
	}

	got, data, err := s.Open(rec.Handle())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(data) != "hello" || got.SizeBytes != 5 {
		t.Fatalf("open returned %q (%d bytes)", data, got.SizeBytes)
	}

	if !s.Release(rec.Handle()) {
		t.Fatal("first release should report true")
	}
	if s.Release(rec.Handle()) {
		t.Fatal("second release should report false")
	}
	if _, _, err := s.Open(rec.Handle()); !errors.Is(err, ErrPreviewNotFound) {
		t.Fatalf("Open after release err = %v, want ErrPreviewNotFound", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestPreviewOpenCopiesBytes(t *testing.T) {
	s := NewPreviewStore()
	src := []byte("abc")
	rec := s.Save("a.bin", "application/octet-stream", src)
	src[0] = 'z'

	_, data, err := s.Open(rec.Handle())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(data) != "abc" {
		t.Fatalf("stored bytes mutated through caller slice: %q", data)
	}
}

func TestIsPreview(t *testing.T) {
	if IsPreview("https://example.com/a.png") {
		t.Fatal("remote URL must not be a preview")
	}
	if IsPreview(PreviewScheme) {
		t.Fatal("bare scheme must not be a preview")
	}
	if !IsPreview(PreviewScheme + "prv_1") {
		t.Fatal("scheme+id should be a preview")
	}
}
