package console

import "github.com/charmbracelet/lipgloss"

// Theme is the console color scheme.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Alert   lipgloss.Color
}

var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Alert:   lipgloss.Color("#ff5f5f"),
}

type Styles struct {
	Status lipgloss.Style
	Detail lipgloss.Style
	Alert  lipgloss.Style
	Title  lipgloss.Style
}

func NewStyles(t Theme) Styles {
	return Styles{
		Status: lipgloss.NewStyle().Italic(true).Foreground(t.Primary),
		Detail: lipgloss.NewStyle().Foreground(t.Dim),
		Alert:  lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
	}
}

// paint renders s with st only when styling is on.
func (c *Console) paint(st lipgloss.Style, s string) string {
	if c.styles == nil {
		return s
	}
	return st.Render(s)
}
