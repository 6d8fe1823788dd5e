package components

import (
	"fmt"

	"github.com/theirongolddev/cclog/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// ProgressBar renders a fixed-width bar for done out of total followed by
// the count. A zero total renders an empty bar.
func ProgressBar(done, total, width int) string {
	t := theme.Active

	pct := 0.0
	if total > 0 {
		pct = min(float64(done)/float64(total), 1)
	}

	bar := progress.New(
		progress.WithSolidFill(string(t.AccentBright)),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	countStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	return bar.ViewAs(pct) + countStyle.Render(fmt.Sprintf(" %d/%d", done, total))
}
