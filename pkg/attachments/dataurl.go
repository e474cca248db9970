package attachments

import (
	"encoding/base64"
	"mime"
	"strings"
)

const base64Marker = ";base64"

// EncodeDataURL renders bytes as a self-describing data URL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + base64Marker + "," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL splits a data URL into its MIME type and base64 payload.
// A missing or unparseable header yields DefaultMIMEType and ok=false; the
// payload is still returned so callers can proceed best-effort.
func ParseDataURL(s string) (mimeType, payload string, ok bool) {
	// base64 never contains ';' or ',', so the last marker ends the header
	// even when the reported MIME type is malformed.
	var header, body string
	if i := strings.LastIndex(s, base64Marker+","); i >= 0 {
		header, body = s[:i+len(base64Marker)], s[i+len(base64Marker)+1:]
	} else {
		var found bool
		header, body, found = strings.Cut(s, ",")
		if !found {
			return DefaultMIMEType, s, false
		}
	}
	if !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, base64Marker) {
		return DefaultMIMEType, body, false
	}
	mt, _, err := mime.ParseMediaType(strings.TrimSuffix(strings.TrimPrefix(header, "data:"), base64Marker))
	if err != nil || !strings.Contains(mt, "/") {
		return DefaultMIMEType, body, false
	}
	return mt, body, true
}

// DecodePayload returns the raw bytes behind a base64 Data field.
func DecodePayload(a Attachment) ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Data)
}
