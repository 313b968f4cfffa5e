package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/0x6d61/sentinel/pkg/schema"
)

// Color palette
var (
	colorPrimary = lipgloss.Color("#00D7FF") // cyan  — commands / titles
	colorSuccess = lipgloss.Color("#87FF5F") // green — SUCCESS
	colorWarning = lipgloss.Color("#FFD700") // yellow — confirmation / warning
	colorDanger  = lipgloss.Color("#FF5555") // red — FAILED
	colorMuted   = lipgloss.Color("#555577") // dim gray — notices
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	commandStyle = lipgloss.NewStyle().Foreground(colorPrimary)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colorDanger)
	noticeStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
)

// renderState はラン状態を色付きで整形する。
func renderState(s schema.RunState) string {
	switch s {
	case schema.StateSuccess:
		return successStyle.Render(string(s))
	case schema.StateFailed, schema.StateTimeout:
		return errorStyle.Render(string(s))
	case schema.StateCancelled:
		return warnStyle.Render(string(s))
	default:
		return string(s)
	}
}
