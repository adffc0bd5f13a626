package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vualidon/DailyDigestAI/internal/store"
)

// styles carries every lipgloss style for the active theme so a theme
// toggle swaps the whole set at once.
type styles struct {
	theme store.Theme

	title       lipgloss.Style
	tagline     lipgloss.Style
	header      lipgloss.Style
	helper      lipgloss.Style
	errorText   lipgloss.Style
	cursorRow   lipgloss.Style
	upvote      lipgloss.Style
	statusBar   lipgloss.Style
	tabActive   lipgloss.Style
	tabInactive lipgloss.Style
	userMsg     lipgloss.Style
	assistMsg   lipgloss.Style
	suggestion  lipgloss.Style
	panel       lipgloss.Style
}

func newStyles(theme store.Theme) styles {
	if theme == store.ThemeDark {
		return styles{
			theme:       theme,
			title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
			tagline:     lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245")),
			header:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
			helper:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
			errorText:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
			cursorRow:   lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")),
			upvote:      lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			statusBar:   lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1),
			tabActive:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1),
			tabInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1),
			userMsg:     lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
			assistMsg:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
			suggestion:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#a3be8c")),
			panel:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(0, 1),
		}
	}
	return styles{
		theme:       store.ThemeLight,
		title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("161")),
		tagline:     lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		header:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("25")),
		helper:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		errorText:   lipgloss.NewStyle().Foreground(lipgloss.Color("124")),
		cursorRow:   lipgloss.NewStyle().Foreground(lipgloss.Color("#fdfdfd")).Background(lipgloss.Color("#2a6f97")),
		upvote:      lipgloss.NewStyle().Foreground(lipgloss.Color("130")),
		statusBar:   lipgloss.NewStyle().Foreground(lipgloss.Color("#fdfdfd")).Background(lipgloss.Color("#2a6f97")).Padding(0, 1),
		tabActive:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fdfdfd")).Background(lipgloss.Color("#e07a5f")).Padding(0, 1),
		tabInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1),
		userMsg:     lipgloss.NewStyle().Foreground(lipgloss.Color("26")),
		assistMsg:   lipgloss.NewStyle().Foreground(lipgloss.Color("236")),
		suggestion:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("28")),
		panel:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("250")).Padding(0, 1),
	}
}
