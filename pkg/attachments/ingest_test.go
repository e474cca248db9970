package attachments

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		mime string
		want Type
	}{
		{"video/mp4", TypeVideo},
		{"audio/mpeg", TypeAudio},
		{"application/pdf", TypePDF},
		{"text/csv", TypeSpreadsheet},
		{"application/vnd.ms-excel", TypeSpreadsheet},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", TypeSpreadsheet},
		{"text/plain", TypeCode},
		{"application/json", TypeCode},
		{"text/javascript", TypeCode},
		{"application/typescript", TypeCode},
		{"application/vnd.ms-powerpoint", TypePresentation},
		{"application/vnd.openxmlformats-officedocument.presentationml.presentation", TypePresentation},
		{"application/octet-stream", TypeDocument},
		{"application/zip", TypeDocument},
		{"image/jpeg", TypeImage},
		{"IMAGE/PNG", TypeImage},
	}
	for _, tc := range cases {
		if got := Classify(tc.mime); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.mime, got, tc.want)
		}
	}
}

func TestParseDataURL(t *testing.T) {
	cases := []struct {
		in      string
		mime    string
		payload string
		ok      bool
	}{
		{"data:video/mp4;base64,AAAA", "video/mp4", "AAAA", true},
		{"data:text/plain;charset=utf-8;base64,aGk=", "text/plain", "aGk=", true},
		{"data:;base64,AAAA", DefaultMIMEType, "AAAA", false},
		{"garbage,AAAA", DefaultMIMEType, "AAAA", false},
		{"data:text/plain,foo;base64,aGVsbG8=", DefaultMIMEType, "aGVsbG8=", false},
		{"data:Text/HTML; charset=utf-8;base64,PGI+", "text/html", "PGI+", true},
		{"AAAA", DefaultMIMEType, "AAAA", false},
	}
	for _, tc := range cases {
		mt, payload, ok := ParseDataURL(tc.in)
		if mt != tc.mime || payload != tc.payload || ok != tc.ok {
			t.Errorf("ParseDataURL(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.in, mt, payload, ok, tc.mime, tc.payload, tc.ok)
		}
	}
}

func TestIngestLocalFile(t *testing.T) {
	in := NewIngestor(NewPreviewStore())
	att, err := in.Ingest(context.Background(), &File{
		Name:     "clip.mp4",
		MIMEType: "video/mp4",
		Reader:   strings.NewReader("frames"),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if att.Type != TypeVideo || att.MIMEType != "video/mp4" {
		t.Fatalf("unexpected attachment: %+v", att)
	}
	if !IsPreview(att.URL) {
		t.Fatalf("url %q is not a preview handle", att.URL)
	}
	raw, err := DecodePayload(att)
	if err != nil || string(raw) != "frames" {
		t.Fatalf("payload = %q, %v", raw, err)
	}
	if in.Previews().Len() != 1 {
		t.Fatalf("previews = %d, want 1", in.Previews().Len())
	}
}

func TestIngestMissingMIMEDefaultsToImage(t *testing.T) {
	in := NewIngestor(NewPreviewStore())
	att, err := in.Ingest(context.Background(), &File{Name: "blob", Reader: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if att.Type != TypeImage || att.MIMEType != DefaultMIMEType {
		t.Fatalf("got %s/%s, want image/%s", att.Type, att.MIMEType, DefaultMIMEType)
	}
}

func TestIngestMalformedMIMEKeepsPayload(t *testing.T) {
	in := NewIngestor(NewPreviewStore())
	att, err := in.Ingest(context.Background(), &File{
		Name:     "notes",
		MIMEType: "text/plain,foo",
		Reader:   strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if att.MIMEType != DefaultMIMEType {
		t.Fatalf("mime = %q, want %q", att.MIMEType, DefaultMIMEType)
	}
	raw, err := DecodePayload(att)
	if err != nil || string(raw) != "hello" {
		t.Fatalf("payload = %q, %v", raw, err)
	}
}

func TestIngestNoFile(t *testing.T) {
	in := NewIngestor(NewPreviewStore())
	if _, err := in.Ingest(context.Background(), nil); !errors.Is(err, ErrNoFile) {
		t.Fatalf("err = %v, want ErrNoFile", err)
	}
}

type blockingReader struct{ release chan struct{} }

func (r *blockingReader) Read(p []byte) (int, error) {
	<-r.release
	return 0, errors.New("closed")
}

func TestDecodeWaitHonorsContext(t *testing.T) {
	in := NewIngestor(NewPreviewStore())
	br := &blockingReader{release: make(chan struct{})}
	d := in.Begin(&File{Name: "slow", MIMEType: "text/plain", Reader: br})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := d.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	close(br.release)
	<-d.Done()
	if _, err := d.Wait(context.Background()); err == nil {
		t.Fatal("expected read error after release")
	}
}

func TestOpenFileDetectsMime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if f.MIMEType != "application/pdf" || f.Name != "report.pdf" {
		t.Fatalf("got %q / %q", f.MIMEType, f.Name)
	}
}

func TestDetectMimeTypeSniffsWithoutExtension(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	if got := DetectMimeType("noext", png); got != "image/png" {
		t.Fatalf("got %q, want image/png", got)
	}
	if got := DetectMimeType("main.ts", nil); got != "application/typescript" {
		t.Fatalf("got %q, want application/typescript", got)
	}
}
