package cmd

import "github.com/charmbracelet/lipgloss"

var (
	pinnedStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	diagnosticStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	progressStyle   = lipgloss.NewStyle().Faint(true)
	headerStyle     = lipgloss.NewStyle().Bold(true)
	okStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
