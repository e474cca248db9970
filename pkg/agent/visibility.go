package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sipeed/polychat/pkg/config"
	"github.com/sipeed/polychat/pkg/status"
	"github.com/sipeed/polychat/pkg/transcript"
)

// StatusLine is the busy indicator shown while the agent works.
func StatusLine(s status.Status, mode string) string {
	switch s {
	case status.Thinking:
		return "Thinking... 💭"
	case status.Generating:
		switch mode {
		case config.ModeVideo:
			return "Generating video... 🎬"
		default:
			return "Generating image... 🎨"
		}
	case status.Error:
		return "✗ Something went wrong"
	case status.Recording:
		return "Recording... 🎙"
	case status.Live:
		return "Live 🔴"
	default:
		return "Ready"
	}
}

func roleIcon(r transcript.Role) string {
	switch r {
	case transcript.RoleUser:
		return "›"
	case transcript.RoleAssistant:
		return "•"
	default:
		return "○"
	}
}

// SummarizeMessage renders one transcript entry on a single line.
func SummarizeMessage(i int, m transcript.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%3d %s %s", i+1, roleIcon(m.Role), Truncate(oneLine(m.Content), 72))
	if n := len(m.Attachments); n > 0 {
		kinds := make([]string, 0, n)
		for _, a := range m.Attachments {
			kinds = append(kinds, string(a.Type))
		}
		fmt.Fprintf(&sb, " [%s]", strings.Join(kinds, ", "))
	}
	if n := len(m.GroundingSources); n > 0 {
		fmt.Fprintf(&sb, " (%d source%s)", n, pluralS(n))
	}
	return sb.String()
}

// Truncate cuts s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func pluralS(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
