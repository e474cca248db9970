package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sipeed/polychat/pkg/logger"
)

// ErrNoFile is returned when ingestion is requested without a file.
// Callers treat it as a no-op.
var ErrNoFile = errors.New("no file selected")

// Ingestor turns user-selected files into Attachments backed by previews.
type Ingestor struct {
	previews *PreviewStore
}

func NewIngestor(previews *PreviewStore) *Ingestor {
	return &Ingestor{previews: previews}
}

// Previews exposes the store that owns every handle this ingestor issues.
func (in *Ingestor) Previews() *PreviewStore {
	return in.previews
}

// Decode is a pending ingestion started by Begin.
type Decode struct {
	done chan struct{}
	att  Attachment
	err  error
}

// Begin starts decoding f in the background.
func (in *Ingestor) Begin(f *File) *Decode {
	d := &Decode{done: make(chan struct{})}
	go func() {
		defer close(d.done)
		d.att, d.err = in.decode(f)
	}()
	return d
}

// Wait blocks until the decode resolves or ctx ends. If ctx ends first the
// decode keeps running; the caller still owns whatever preview it produces.
func (d *Decode) Wait(ctx context.Context) (Attachment, error) {
	select {
	case <-d.done:
		return d.att, d.err
	case <-ctx.Done():
		return Attachment{}, ctx.Err()
	}
}

// Done is closed once the decode resolves.
func (d *Decode) Done() <-chan struct{} {
	return d.done
}

// Ingest is Begin followed by Wait. A preview produced after ctx ended is
// released since nobody is left to own it.
func (in *Ingestor) Ingest(ctx context.Context, f *File) (Attachment, error) {
	d := in.Begin(f)
	att, err := d.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		go func() {
			<-d.done
			if d.err == nil {
				in.previews.Release(d.att.URL)
			}
		}()
	}
	return att, err
}

func (in *Ingestor) decode(f *File) (Attachment, error) {
	if f == nil || f.Reader == nil {
		return Attachment{}, ErrNoFile
	}
	raw, err := io.ReadAll(f.Reader)
	if err != nil {
		return Attachment{}, fmt.Errorf("read %s: %w", f.Name, err)
	}

	mimeType, payload, ok := ParseDataURL(EncodeDataURL(f.MIMEType, raw))
	if !ok {
		logger.DebugCF("attachments", "Unparseable MIME header, assuming default",
			map[string]interface{}{"name": f.Name, "reported": f.MIMEType, "assumed": mimeType})
	}

	rec := in.previews.Save(f.Name, mimeType, raw)
	att := Attachment{
		Type:     Classify(mimeType),
		URL:      rec.Handle(),
		Data:     payload,
		MIMEType: mimeType,
		Name:     rec.Name,
	}

	logger.DebugCF("attachments", "Ingested attachment",
		map[string]interface{}{"name": att.Name, "type": att.Type, "mime": mimeType, "size_bytes": rec.SizeBytes})
	return att, nil
}
