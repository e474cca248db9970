package transcript

import "github.com/sipeed/polychat/pkg/attachments"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// GroundingSource is a citation returned alongside a chat reply.
type GroundingSource struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri,omitempty"`
}

// Message is one entry of the conversation. Timestamp is unix milliseconds.
type Message struct {
	ID               string                   `json:"id"`
	Role             Role                     `json:"role"`
	Content          string                   `json:"content"`
	Timestamp        int64                    `json:"timestamp"`
	Attachments      []attachments.Attachment `json:"attachments,omitempty"`
	GroundingSources []GroundingSource        `json:"groundingSources,omitempty"`
	IsThinking       bool                     `json:"isThinking,omitempty"`
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	out := m
	if m.Attachments != nil {
		out.Attachments = append([]attachments.Attachment(nil), m.Attachments...)
	}
	if m.GroundingSources != nil {
		out.GroundingSources = append([]GroundingSource(nil), m.GroundingSources...)
	}
	return out
}
