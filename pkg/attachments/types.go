package attachments

import "strings"

// Type is the rendering class of an attachment.
type Type string

const (
	TypeImage        Type = "image"
	TypeVideo        Type = "video"
	TypeAudio        Type = "audio"
	TypeText         Type = "text"
	TypePDF          Type = "pdf"
	TypeDocument     Type = "document"
	TypeSpreadsheet  Type = "spreadsheet"
	TypePresentation Type = "presentation"
	TypeCode         Type = "code"
	TypeNote         Type = "note"
)

// DefaultMIMEType is assumed when a payload header cannot be parsed.
const DefaultMIMEType = "image/png"

// Attachment is a normalized file reference carried by a message.
//
// Data holds the base64 payload and is only set when the bytes are local.
// Generated results referenced by URL alone leave it empty.
type Attachment struct {
	Type     Type   `json:"type"`
	URL      string `json:"url"`
	Data     string `json:"data,omitempty"`
	MIMEType string `json:"mimeType"`
	Name     string `json:"name,omitempty"`
}

// IsLocal reports whether the attachment carries its own bytes.
func (a Attachment) IsLocal() bool {
	return a.Data != ""
}

// Classify derives a Type from a MIME type. Rules are ordered and the first
// match wins; anything unrecognized that is not image/* is a document.
//
// Spreadsheet is tested before code so text/csv lands on spreadsheet.
func Classify(mimeType string) Type {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(m, "video/"):
		return TypeVideo
	case strings.HasPrefix(m, "audio/"):
		return TypeAudio
	case m == "application/pdf":
		return TypePDF
	case containsAny(m, "spreadsheet", "excel", "csv"):
		return TypeSpreadsheet
	case containsAny(m, "text", "json", "javascript", "typescript"):
		return TypeCode
	case containsAny(m, "presentation", "powerpoint"):
		return TypePresentation
	case !strings.HasPrefix(m, "image/"):
		return TypeDocument
	default:
		return TypeImage
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
