package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/vualidon/DailyDigestAI/internal/store"
)

func (m *model) View() string {
	switch m.stage {
	case stageDetail:
		return m.viewDetail()
	default:
		return m.viewList()
	}
}

func (m *model) viewList() string {
	parts := []string{m.heroView(), m.searchLine(), m.listBody()}
	parts = append(parts, m.statusLine(), m.messageLines(), m.listHelp())
	return joinNonEmpty(parts)
}

func (m *model) heroView() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.styles.title.Render("DailyDigest"),
		m.styles.tagline.Render(heroTagline),
	)
}

func (m *model) searchLine() string {
	if !m.searchInput.Focused() && strings.TrimSpace(m.searchInput.Value()) == "" {
		return ""
	}
	return m.styles.header.Render("Filter: ") + m.searchInput.View()
}

func (m *model) listBody() string {
	if m.listLoading {
		return m.styles.helper.Render(fmt.Sprintf("%s Fetching today's papers…", m.spinner.View()))
	}
	if len(m.visible) == 0 {
		if strings.TrimSpace(m.searchInput.Value()) != "" {
			return m.styles.helper.Render("No papers match this filter.")
		}
		return m.styles.helper.Render("No papers in today's digest yet.")
	}

	rows := make([]string, 0, len(m.visible))
	limit := m.visibleRows()
	start := 0
	if m.cursor >= limit {
		start = m.cursor - limit + 1
	}
	end := start + limit
	if end > len(m.visible) {
		end = len(m.visible)
	}
	for idx := start; idx < end; idx++ {
		paper := m.visible[idx]
		row := fmt.Sprintf("%s  %s  %s",
			m.styles.upvote.Render(fmt.Sprintf("▲%3d", paper.Paper.Upvotes)),
			trimmedTitle(paper.Title),
			m.styles.helper.Render(paper.PublishedAt.Format("Jan 2")),
		)
		if idx == m.cursor {
			row = m.styles.cursorRow.Render("▸ " + row)
		} else {
			row = "  " + row
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func (m *model) visibleRows() int {
	rows := m.windowHeight - 12
	if rows < 5 {
		rows = 5
	}
	return rows
}

func (m *model) statusLine() string {
	stats := []string{
		fmt.Sprintf("Sort %s", m.sortBy),
		fmt.Sprintf("Papers %d", len(m.visible)),
		fmt.Sprintf("Theme %s", m.styles.theme),
	}
	if m.config.AssistantName != "" {
		stats = append(stats, fmt.Sprintf("Assistant %s", m.config.AssistantName))
	}
	stats = append(stats, m.jobStatusBadges()...)
	return m.styles.statusBar.Render(strings.Join(stats, "  •  "))
}

func (m *model) jobStatusBadges() []string {
	if len(m.runningJobs) == 0 {
		return nil
	}
	kinds := make([]string, 0, len(m.runningJobs))
	for _, snapshot := range m.runningJobs {
		kinds = append(kinds, string(snapshot.Kind))
	}
	sort.Strings(kinds)
	return []string{fmt.Sprintf("Working: %s", strings.Join(kinds, ","))}
}

func (m *model) messageLines() string {
	parts := []string{}
	if m.errorMessage != "" {
		parts = append(parts, m.styles.errorText.Render(m.errorMessage))
	}
	if m.infoMessage != "" {
		message := m.infoMessage
		if m.anyLoading() {
			message = fmt.Sprintf("%s %s", m.spinner.View(), message)
		}
		parts = append(parts, m.styles.helper.Render(message))
	}
	return strings.Join(parts, "\n")
}

func (m *model) listHelp() string {
	return m.styles.helper.Render("↑/↓ move • Enter open • / filter • s sort • r refresh • t theme • q quit")
}

func (m *model) viewDetail() string {
	if m.current == nil {
		return m.viewList()
	}
	m.refreshViewportIfStale()
	parts := []string{
		m.detailHeader(),
		m.tabBar(),
		m.viewport.View(),
	}
	if m.tab == tabDiscussion && m.questionInput.Focused() {
		parts = append(parts, m.styles.header.Render("Question: ")+m.questionInput.View())
	}
	parts = append(parts, m.statusLine(), m.messageLines(), m.detailHelp())
	return joinNonEmpty(parts)
}

func (m *model) detailHeader() string {
	title := m.styles.title.Render(wordwrap.String(m.current.Title, m.wrapWidth(0)))
	meta := []string{m.styles.helper.Render(fmt.Sprintf("arXiv: %s  •  ▲%d  •  %s",
		m.current.Paper.ID, m.current.Paper.Upvotes, m.current.PublishedAt.Format("Jan 2, 2006")))}
	if authors := m.current.AuthorNames(); len(authors) > 0 {
		meta = append(meta, m.styles.helper.Render("Authors: "+shortenList(authors, authorPreviewLimit)))
	}
	return strings.Join(append([]string{title}, meta...), "\n")
}

func (m *model) tabBar() string {
	cells := make([]string, 0, len(tabSequence))
	for _, tab := range tabSequence {
		label := tabLabel(tab)
		if tab == m.tab {
			cells = append(cells, m.styles.tabActive.Render(label))
		} else {
			cells = append(cells, m.styles.tabInactive.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *model) detailHelp() string {
	switch m.tab {
	case tabDiscussion:
		return m.styles.helper.Render("Tab/[ ] switch tabs • a ask • ↑/↓ scroll • Esc back • q quit")
	case tabNotes:
		return m.styles.helper.Render("Tab/[ ] switch tabs • n regenerate note • e export • Esc back • q quit")
	default:
		return m.styles.helper.Render("Tab/[ ] switch tabs • n note • ↑/↓ scroll • Esc back • q quit")
	}
}

// refreshViewportIfStale rebuilds the viewport content only when the
// paper, tab, transcript, or theme changed since the last render.
func (m *model) refreshViewportIfStale() {
	key := fmt.Sprintf("%s|%d|%d|%d|%d|%s|%d",
		m.current.Paper.ID, m.tab, len(m.state.Messages), len(m.state.Notes),
		len(m.state.PDFContent), m.styles.theme, m.viewport.Width)
	if key == m.viewportID && m.tab == m.viewportFor {
		return
	}
	m.viewportID = key
	m.viewportFor = m.tab

	var content string
	switch m.tab {
	case tabAbstract:
		content = m.abstractContent()
	case tabDiscussion:
		content = m.discussionContent()
	case tabNotes:
		content = m.notesContent()
	}
	m.viewport.SetContent(content)
}

func (m *model) abstractContent() string {
	wrap := m.wrapWidth(2)
	var b strings.Builder
	b.WriteString(m.styles.header.Render("Abstract"))
	b.WriteString("\n")
	b.WriteString(wordwrap.String(m.current.Paper.Summary, wrap))
	b.WriteString("\n\n")
	b.WriteString(m.styles.header.Render("Links"))
	b.WriteString("\n")
	id := m.current.Paper.ID
	b.WriteString(fmt.Sprintf("  https://arxiv.org/abs/%s\n", id))
	b.WriteString(fmt.Sprintf("  https://arxiv.org/pdf/%s\n", id))
	b.WriteString(fmt.Sprintf("  https://huggingface.co/papers/%s\n", id))
	if m.openLoading {
		b.WriteString("\n")
		b.WriteString(m.styles.helper.Render(fmt.Sprintf("%s Loading full text in the background…", m.spinner.View())))
	}
	return b.String()
}

func (m *model) discussionContent() string {
	wrap := m.wrapWidth(4)
	var b strings.Builder
	b.WriteString(m.styles.header.Render("Discussion"))
	b.WriteString("\n")
	if len(m.state.Messages) == 0 {
		if m.chatLoading {
			b.WriteString(m.styles.helper.Render(fmt.Sprintf("%s Summarizing the paper…", m.spinner.View())))
		} else {
			b.WriteString(m.styles.helper.Render("Open this tab with an assistant configured to get a summary."))
		}
		b.WriteString("\n")
		return b.String()
	}
	for _, message := range m.state.Messages {
		switch message.Role {
		case store.RoleUser:
			b.WriteString(m.styles.userMsg.Render("You"))
			b.WriteString("\n")
			b.WriteString(indentMultiline(wordwrap.String(message.Content, wrap), "  "))
		case store.RoleSuggestions:
			b.WriteString(m.styles.suggestion.Render(message.Content))
			b.WriteString("\n")
			for i, question := range message.Questions {
				line := fmt.Sprintf("  %d. %s", i+1, question)
				b.WriteString(m.styles.suggestion.Render(wordwrap.String(line, wrap)))
				b.WriteString("\n")
			}
		default:
			b.WriteString(m.styles.assistMsg.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(indentMultiline(wordwrap.String(message.Content, wrap), "  "))
		}
		b.WriteString("\n\n")
	}
	if m.chatLoading {
		b.WriteString(m.styles.helper.Render(fmt.Sprintf("%s Thinking…", m.spinner.View())))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *model) notesContent() string {
	var b strings.Builder
	b.WriteString(m.styles.header.Render("Notes"))
	b.WriteString("\n")
	switch {
	case m.noteLoading:
		b.WriteString(m.styles.helper.Render(fmt.Sprintf("%s Generating a structured note…", m.spinner.View())))
		b.WriteString("\n")
	case strings.TrimSpace(m.state.Notes) == "":
		b.WriteString(m.styles.helper.Render("Press n to generate a structured note for this paper."))
		b.WriteString("\n")
	default:
		b.WriteString(wordwrap.String(m.state.Notes, m.wrapWidth(2)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *model) wrapWidth(padding int) int {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	if padding < 0 {
		padding = 0
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func shortenList(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s…", strings.Join(items[:limit], ", "))
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}
