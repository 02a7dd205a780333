package tui

import "github.com/charmbracelet/lipgloss"

// Color palette shared by the comment views.
var (
	ColorTitle    = lipgloss.Color("205")
	ColorAuthor   = lipgloss.Color("86")
	ColorMuted    = lipgloss.Color("241")
	ColorError    = lipgloss.Color("196")
	ColorSelected = lipgloss.Color("57")
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(ColorTitle).Bold(true)
	authorStyle   = lipgloss.NewStyle().Foreground(ColorAuthor).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	errorStyle    = lipgloss.NewStyle().Foreground(ColorError)
	spinnerStyle  = lipgloss.NewStyle().Foreground(ColorTitle)
	selectedStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(ColorSelected).
			PaddingLeft(1)
	itemStyle = lipgloss.NewStyle().PaddingLeft(2)
)
