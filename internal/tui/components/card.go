// Package components provides the panes and bars of the session browser.
package components

import (
	"github.com/theirongolddev/cclog/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// LayoutRow distributes totalWidth into n widths that sum to exactly totalWidth.
// First items absorb the remainder from integer division.
func LayoutRow(totalWidth, n int) []int {
	if n <= 0 {
		return nil
	}
	base := totalWidth / n
	remainder := totalWidth % n
	widths := make([]int, n)
	for i := range widths {
		widths[i] = base
		if i < remainder {
			widths[i]++
		}
	}
	return widths
}

// Metric is one labelled figure in a MetricRow.
type Metric struct {
	Label string
	Value string
}

// MetricRow renders metrics as small bordered cards filling totalWidth.
func MetricRow(metrics []Metric, totalWidth int) string {
	if len(metrics) == 0 {
		return ""
	}
	t := theme.Active
	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Bold(true)

	widths := LayoutRow(totalWidth, len(metrics))
	cards := make([]string, len(metrics))
	for i, m := range metrics {
		cards[i] = card(t.Border, widths[i]).Render(labelStyle.Render(m.Label) + "\n" + valueStyle.Render(m.Value))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

// Pane renders a bordered pane with an optional title. outerWidth is the
// rendered width including the border; focused panes use the accent border.
func Pane(title, body string, outerWidth int, focused bool) string {
	t := theme.Active
	border := t.Border
	if focused {
		border = t.BorderAccent
	}

	content := body
	if title != "" {
		titleStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Bold(true)
		content = titleStyle.Render(title) + "\n" + body
	}
	return card(border, outerWidth).Render(content)
}

// PaneInnerWidth returns the usable text width inside a Pane of the given
// outer width (border and padding removed).
func PaneInnerWidth(outerWidth int) int {
	return max(outerWidth-4, 10)
}

func card(border lipgloss.Color, outerWidth int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(max(outerWidth-2, 10)).
		Padding(0, 1)
}
