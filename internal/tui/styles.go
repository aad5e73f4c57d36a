package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/christopherklint97/slotwise/internal/timeline"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			MarginBottom(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			MarginTop(1)
)

var categoryColors = map[timeline.Category]lipgloss.Color{
	timeline.Unknown:  lipgloss.Color("8"),
	timeline.Commute:  lipgloss.Color("3"),
	timeline.Food:     lipgloss.Color("9"),
	timeline.Friends:  lipgloss.Color("13"),
	timeline.Work:     lipgloss.Color("12"),
	timeline.Leisure:  lipgloss.Color("14"),
	timeline.Family:   lipgloss.Color("5"),
	timeline.Hobby:    lipgloss.Color("10"),
	timeline.Shopping: lipgloss.Color("11"),
	timeline.Sleep:    lipgloss.Color("4"),
}

// CategoryBadge renders c in its category color.
func CategoryBadge(c timeline.Category) string {
	if c == "" {
		c = timeline.Unknown
	}
	color, ok := categoryColors[c]
	if !ok {
		color = categoryColors[timeline.Unknown]
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(string(c))
}
