package ui

import (
	"garminai/internal/app"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	connectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8"))

	cursorCellStyle = cellStyle.Copy().
			BorderForeground(lipgloss.Color("12"))

	selectedCellStyle = cellStyle.Copy().
				Bold(true).
				BorderForeground(lipgloss.Color("10")).
				Foreground(lipgloss.Color("10"))

	buttonStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Background(lipgloss.Color("12")).
			Foreground(lipgloss.Color("15"))

	disabledButtonStyle = buttonStyle.Copy().
				Background(lipgloss.Color("8"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	cursorRowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case app.StatusConnected:
		return connectedStyle
	case app.StatusError:
		return errorStyle
	default:
		return mutedStyle
	}
}

func renderNotice(n app.Notice) string {
	if n.Seq == 0 {
		return ""
	}
	switch n.Level {
	case app.NoticeError:
		return errorStyle.Render("✗ " + n.Text)
	case app.NoticeWarning:
		return warningStyle.Render("! " + n.Text)
	default:
		return connectedStyle.Render("✓ " + n.Text)
	}
}

type commonKeys struct {
	Up    key.Binding
	Down  key.Binding
	Left  key.Binding
	Right key.Binding
	Quit  key.Binding
}

var common = commonKeys{
	Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
	Right: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
