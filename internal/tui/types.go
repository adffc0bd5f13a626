package tui

type stage int

const (
	stageList stage = iota
	stageDetail
)

type detailTab int

const (
	tabAbstract detailTab = iota
	tabDiscussion
	tabNotes
)

var tabSequence = []detailTab{tabAbstract, tabDiscussion, tabNotes}

func tabLabel(tab detailTab) string {
	switch tab {
	case tabAbstract:
		return "Abstract"
	case tabDiscussion:
		return "Discussion"
	case tabNotes:
		return "Notes"
	default:
		return "tab"
	}
}

const heroTagline = "Your daily AI paper digest."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	authorPreviewLimit        = 3
)

const (
	searchPlaceholder   = "Filter by title or abstract…"
	questionPlaceholder = "Ask about this paper…"
)
