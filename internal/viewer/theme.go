package viewer

import "github.com/charmbracelet/lipgloss"

type theme struct {
	Header lipgloss.Style
	Frame  lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Muted  lipgloss.Style
	On     lipgloss.Style
	Off    lipgloss.Style
	Atom   lipgloss.Style
}

func defaultTheme() theme {
	accent := lipgloss.Color("#00B7C7")
	secondary := lipgloss.Color("#7D7D7D")
	success := lipgloss.Color("#3FBF5F")
	alert := lipgloss.Color("#FFBF00")

	return theme{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		Frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		Label: lipgloss.NewStyle().
			Foreground(secondary).
			Width(8),
		Value: lipgloss.NewStyle(),
		Muted: lipgloss.NewStyle().
			Foreground(secondary),
		On: lipgloss.NewStyle().
			Foreground(success),
		Off: lipgloss.NewStyle().
			Foreground(alert),
		Atom: lipgloss.NewStyle().
			Foreground(accent),
	}
}
