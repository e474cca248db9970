package attachments

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PreviewScheme prefixes every handle issued by a PreviewStore.
const PreviewScheme = "preview://"

var ErrPreviewNotFound = errors.New("preview not found")

// Record describes the bytes behind a preview handle.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MIMEType  string    `json:"mime_type,omitempty"`
	SizeBytes int64     `json:"size_bytes"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}

// Handle is the dereferenceable URL for this record.
func (r Record) Handle() string {
	return PreviewScheme + r.ID
}

type entry struct {
	rec  Record
	data []byte
}

// PreviewStore keeps locally supplied bytes addressable by a revocable
// handle until the owner releases them. Nothing is released automatically.
type PreviewStore struct {
	mu      sync.RWMutex
	records map[string]entry
}

func NewPreviewStore() *PreviewStore {
	return &PreviewStore{records: map[string]entry{}}
}

// Save copies data into the store and returns its record.
func (s *PreviewStore) Save(name, mimeType string, data []byte) Record {
	sum := sha256.Sum256(data)
	buf := make([]byte, len(data))
	copy(buf, data)

	rec := Record{
		ID:        "prv_" + uuid.NewString(),
		Name:      SanitizeFilename(name),
		MIMEType:  mimeType,
		SizeBytes: int64(len(data)),
		SHA256:    hex.EncodeToString(sum[:]),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = entry{rec: rec, data: buf}
	return rec
}

// Open resolves a handle to its record and a copy of its bytes.
func (s *PreviewStore) Open(handle string) (Record, []byte, error) {
	id, ok := previewID(handle)
	if !ok {
		return Record{}, nil, fmt.Errorf("not a preview handle: %s", handle)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[id]
	if !ok {
		return Record{}, nil, fmt.Errorf("%w: %s", ErrPreviewNotFound, handle)
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return e.rec, out, nil
}

// Release drops the bytes behind handle. It reports whether anything was held.
func (s *PreviewStore) Release(handle string) bool {
	id, ok := previewID(handle)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	return true
}

// Len is the number of live handles.
func (s *PreviewStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// IsPreview reports whether url was issued by a PreviewStore.
func IsPreview(url string) bool {
	_, ok := previewID(url)
	return ok
}

func previewID(handle string) (string, bool) {
	if !strings.HasPrefix(handle, PreviewScheme) {
		return "", false
	}
	id := strings.TrimPrefix(handle, PreviewScheme)
	return id, id != ""
}
