package attachments

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// File is a user-selected file before ingestion. MIMEType is whatever the
// picker reported and may be empty.
type File struct {
	Name     string
	MIMEType string
	Reader   io.Reader
}

// OpenFile loads a file from disk and guesses its MIME type.
func OpenFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading attachment %s: %w", path, err)
	}
	return &File{
		Name:     SanitizeFilename(path),
		MIMEType: DetectMimeType(path, data),
		Reader:   bytes.NewReader(data),
	}, nil
}

// knownTypes covers extensions the builtin mime table may lack depending on
// the host's mime.types.
var knownTypes = map[string]string{
	".ts":   "application/typescript",
	".tsx":  "application/typescript",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".txt":  "text/plain",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// DetectMimeType uses the extension first, then content sniffing.
func DetectMimeType(path string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := knownTypes[ext]; ok {
		return mt
	}
	if ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			mt, _, _ = strings.Cut(mt, ";")
			return mt
		}
	}
	if len(head) == 0 {
		return ""
	}
	mt := http.DetectContentType(head)
	mt, _, _ = strings.Cut(mt, ";")
	return mt
}

// SanitizeFilename strips directories and traversal sequences.
func SanitizeFilename(filename string) string {
	if filename == "" {
		return ""
	}
	base := filepath.Base(filename)
	base = strings.ReplaceAll(base, "..", "")
	base = strings.ReplaceAll(base, "/", "_")
	base = strings.ReplaceAll(base, "\\", "_")
	return base
}
