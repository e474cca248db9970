package feed

import (
	"net/url"
	"strings"

	"github.com/sipeed/polychat/pkg/attachments"
	"github.com/sipeed/polychat/pkg/status"
	"github.com/sipeed/polychat/pkg/transcript"
)

type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventStatus   EventType = "status"
	EventMessage  EventType = "message"
)

// Event is one frame on the wire. Snapshot carries Status and Messages,
// status carries Status and Previous, message carries Message.
type Event struct {
	Type     EventType            `json:"type"`
	Time     int64                `json:"time"`
	Status   status.Status        `json:"status,omitempty"`
	Previous status.Status        `json:"previous,omitempty"`
	Message  *transcript.Message  `json:"message,omitempty"`
	Messages []transcript.Message `json:"messages,omitempty"`
}

// forWire drops inline payloads; observers get the handle and MIME type only.
// Local attachments keep their preview:// handle, which the hub serves under
// /previews/{id} while the preview is live.
func forWire(m transcript.Message) transcript.Message {
	out := m.Clone()
	for i := range out.Attachments {
		out.Attachments[i] = attachments.Attachment{
			Type:     out.Attachments[i].Type,
			URL:      redactURL(out.Attachments[i].URL),
			MIMEType: out.Attachments[i].MIMEType,
			Name:     out.Attachments[i].Name,
		}
	}
	return out
}

var credentialParams = []string{"key", "api_key", "access_token", "token"}

// redactURL removes credential query parameters from remote URLs.
func redactURL(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	q := u.Query()
	changed := false
	for _, p := range credentialParams {
		if q.Has(p) {
			q.Del(p)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}
