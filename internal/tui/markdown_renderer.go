package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// minReportWrap is the narrowest wrap width used for the report view.
const minReportWrap = 24

// markdownRenderer renders the crash report for the terminal and rebuilds glamour when the wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// render converts markdown into ANSI-styled text; on renderer failure the raw markdown is returned.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	if r == nil {
		return markdown
	}

	wrapWidth := max(width, minReportWrap)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}
