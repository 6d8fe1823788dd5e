// Package tui provides the interactive Bubble Tea session browser for cclog.
package tui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/theirongolddev/cclog/internal/cli"
	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/model"
	"github.com/theirongolddev/cclog/internal/pipeline"
	"github.com/theirongolddev/cclog/internal/store"
	"github.com/theirongolddev/cclog/internal/tui/components"
	"github.com/theirongolddev/cclog/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Options configures the browser.
type Options struct {
	ProjectsDir string
	Range       daterange.Range
	UseCache    bool
	Store       store.Options
	Workers     int
	Logger      *slog.Logger
	// FirstRun shows the setup form before the browser.
	FirstRun bool
}

const (
	minTerminalWidth = 60
	splitWidth       = 110 // below this the detail pane replaces the list
	chromeHeight     = 4   // header, search line, status bar
)

// App is the root Bubble Tea model.
type App struct {
	opts Options

	// Data
	rows     []Row
	visible  []Row
	loaded   bool
	loadTime time.Duration
	projects int
	failed   int
	loadErr  error

	// UI state
	width    int
	height   int
	cursor   int
	offset   int
	detail   bool
	showHelp bool

	// Search
	search    textinput.Model
	searching bool
	query     string

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals SetupValues
	setupErr  error

	// Loading: channel-based progress subscription
	spinner     spinner.Model
	progress    int
	progressMax int
	loadSub     chan tea.Msg
}

// NewApp creates a new browser model.
func NewApp(opts Options) App {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "title, session id or directory"
	ti.CharLimit = 200

	a := App{
		opts:    opts,
		spinner: sp,
		search:  ti,
		loadSub: make(chan tea.Msg, 1),
	}
	if opts.FirstRun {
		a.setupVals = SetupValues{ProjectsDir: opts.ProjectsDir, UseCache: opts.UseCache, Theme: theme.Active.Name}
		a.setupForm = NewSetupForm(&a.setupVals, 0)
	}
	return a
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		loadDataCmd(a.opts, a.loadSub),
		a.spinner.Tick,
	}
	if a.setupForm != nil {
		cmds = append(cmds, a.setupForm.Init())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case ProgressMsg:
		a.progress = msg.Current
		a.progressMax = msg.Total
		return a, waitForLoadMsg(a.loadSub)

	case DataLoadedMsg:
		a.loaded = true
		a.rows = msg.Rows
		a.projects = msg.Projects
		a.failed = msg.Failed
		a.loadTime = msg.LoadTime
		a.loadErr = msg.Err
		a.applyFilter()
		return a, nil

	case spinner.TickMsg:
		if a.loaded {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		return a.updateKey(key)
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return a, tea.Quit
	}
	if a.searching {
		return a.updateSearch(msg)
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "?":
		a.showHelp = true
	case "/":
		if a.loaded {
			a.searching = true
			a.search.SetValue(a.query)
			return a, a.search.Focus()
		}
	case "esc":
		switch {
		case a.detail:
			a.detail = false
		case a.query != "":
			a.query = ""
			a.applyFilter()
		}
	case "enter":
		if len(a.visible) > 0 {
			a.detail = !a.detail
		}
	case "r":
		if a.loaded {
			a.loaded = false
			a.progress, a.progressMax = 0, 0
			return a, tea.Batch(loadDataCmd(a.opts, a.loadSub), a.spinner.Tick)
		}
	case "j", "down":
		a.moveCursor(1)
	case "k", "up":
		a.moveCursor(-1)
	case "ctrl+d":
		a.moveCursor(a.listHeight() / 2)
	case "ctrl+u":
		a.moveCursor(-a.listHeight() / 2)
	case "g":
		a.moveCursor(-len(a.visible))
	case "G":
		a.moveCursor(len(a.visible))
	}
	return a, nil
}

// updateSearch handles key events while the search box has focus.
func (a App) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.query = strings.TrimSpace(a.search.Value())
		a.searching = false
		a.search.Blur()
		a.applyFilter()
		return a, nil
	case "esc":
		a.searching = false
		a.search.Blur()
		return a, nil
	}

	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	return a, cmd
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		_, a.setupErr = SaveSetup(a.setupVals)
		a.setupForm = nil
		return a, nil
	case huh.StateAborted:
		a.setupForm = nil
		return a, nil
	}
	return a, cmd
}

func (a *App) applyFilter() {
	a.visible = nil
	for _, r := range a.rows {
		if a.query == "" || rowMatches(r, a.query) {
			a.visible = append(a.visible, r)
		}
	}
	a.cursor, a.offset = 0, 0
	a.detail = false
}

func rowMatches(r Row, query string) bool {
	if len(pipeline.FilterSessions([]model.SessionSummary{r.Session}, query)) > 0 {
		return true
	}
	return strings.Contains(strings.ToLower(r.ProjectLabel), strings.ToLower(query))
}

func (a *App) moveCursor(delta int) {
	if len(a.visible) == 0 {
		return
	}
	a.cursor = min(max(a.cursor+delta, 0), len(a.visible)-1)

	h := a.listHeight()
	if a.cursor < a.offset {
		a.offset = a.cursor
	}
	if a.cursor >= a.offset+h {
		a.offset = a.cursor - h + 1
	}
}

func (a App) listHeight() int {
	return max(a.height-chromeHeight-2, 3) // pane border
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return fmt.Sprintf("\n  Terminal too narrow (%d cols); cclog needs %d.\n", a.width, minTerminalWidth)
	}
	if a.setupForm != nil {
		return a.setupForm.View()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Padding(1, 3)
	logoStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ cclog"))
	b.WriteString(mutedStyle.Render(" · transcript sessions"))
	b.WriteString("\n\n")
	b.WriteString(a.spinner.View())
	if a.progressMax > 0 {
		b.WriteString(mutedStyle.Render(" Checking project caches\n\n"))
		b.WriteString(components.ProgressBar(a.progress, a.progressMax, min(40, a.width-30)))
	} else {
		b.WriteString(mutedStyle.Render(" Discovering projects..."))
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()))
}

func (a App) viewHelp() string {
	t := theme.Active
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	bindings := []struct{ key, desc string }{
		{"j k", "Move through sessions"},
		{"g G", "First / last session"},
		{"^d ^u", "Half-page scroll"},
		{"Enter", "Toggle session detail"},
		{"/", "Search sessions"},
		{"Esc", "Close detail / clear search"},
		{"r", "Refresh caches"},
		{"?", "Toggle help"},
		{"q", "Quit"},
	}
	var b strings.Builder
	for _, bind := range bindings {
		fmt.Fprintf(&b, "%s  %s\n", keyStyle.Render(fmt.Sprintf("%-6s", bind.key)), descStyle.Render(bind.desc))
	}
	b.WriteString("\n" + lipgloss.NewStyle().Foreground(t.TextDim).Render("Press any key to close"))

	card := components.Pane("Keyboard Shortcuts", b.String(), 48, true)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card)
}

func (a App) viewMain() string {
	t := theme.Active
	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	warnStyle := lipgloss.NewStyle().Foreground(t.Orange)

	header := titleStyle.Render("◈ cclog") + mutedStyle.Render(fmt.Sprintf("  %d sessions · %d projects",
		len(a.visible), a.projects))
	if !a.opts.Range.IsZero() {
		header += mutedStyle.Render(" · " + a.opts.Range.String())
	}
	if a.failed > 0 {
		header += warnStyle.Render(fmt.Sprintf(" · %d failed", a.failed))
	}

	var searchLine string
	switch {
	case a.searching:
		searchLine = a.search.View()
	case a.query != "":
		searchLine = mutedStyle.Render(fmt.Sprintf("filter: %q (esc to clear)", a.query))
	case a.loadErr != nil:
		searchLine = warnStyle.Render("load error: " + a.loadErr.Error())
	case a.setupErr != nil:
		searchLine = warnStyle.Render("could not save config: " + a.setupErr.Error())
	}

	var body string
	switch {
	case len(a.visible) == 0:
		body = components.Pane("Sessions", mutedStyle.Render("No sessions found"), a.width, false)
	case a.detail && a.width < splitWidth:
		body = a.renderDetail(a.width)
	case a.width < splitWidth:
		body = a.renderList(a.width)
	default:
		leftW := a.width * 2 / 5
		body = lipgloss.JoinHorizontal(lipgloss.Top, a.renderList(leftW), a.renderDetail(a.width-leftW))
	}

	status := components.RenderStatusBar(a.width,
		"[/]search  [enter]detail  [r]efresh  [?]help  [q]uit",
		fmt.Sprintf("loaded in %s", a.loadTime.Round(time.Millisecond)))

	return lipgloss.JoinVertical(lipgloss.Left, header, searchLine, body, status)
}

func (a App) renderList(outerW int) string {
	t := theme.Active
	inner := components.PaneInnerWidth(outerW)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary)
	selectedStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	h := a.listHeight()
	end := min(a.offset+h, len(a.visible))

	var b strings.Builder
	for i := a.offset; i < end; i++ {
		r := a.visible[i]
		when := cli.FormatTimestamp(r.Session.LastTimestamp)
		titleW := max(inner-lipgloss.Width(when)-2, 8)
		line := cli.Truncate(r.Session.Title(), titleW)
		if line == "" {
			line = r.Session.SessionID
		}
		pad := strings.Repeat(" ", max(inner-lipgloss.Width(line)-lipgloss.Width(when), 1))
		if i == a.cursor {
			b.WriteString(selectedStyle.Render(line + pad + when))
		} else {
			b.WriteString(rowStyle.Render(line) + pad + mutedStyle.Render(when))
		}
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	title := fmt.Sprintf("Sessions %d/%d", a.cursor+1, len(a.visible))
	return components.Pane(title, b.String(), outerW, !a.detail)
}

func (a App) renderDetail(outerW int) string {
	t := theme.Active
	r := a.visible[a.cursor]
	s := r.Session
	inner := components.PaneInnerWidth(outerW)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary)
	field := func(label, value string) string {
		return labelStyle.Render(fmt.Sprintf("%-10s", label)) + valueStyle.Render(cli.Truncate(value, inner-10))
	}

	lines := []string{
		field("Project", r.ProjectLabel),
		field("Session", s.SessionID),
		field("Directory", s.Cwd),
		field("Started", cli.FormatTimestamp(s.FirstTimestamp)),
		field("Last", cli.FormatTimestamp(s.LastTimestamp)),
		"",
		components.MetricRow([]components.Metric{
			{Label: "Messages", Value: cli.FormatNumber(int64(s.MessageCount))},
			{Label: "Input", Value: cli.FormatTokens(s.InputTokens)},
			{Label: "Output", Value: cli.FormatTokens(s.OutputTokens)},
			{Label: "Cache read", Value: cli.FormatTokens(s.CacheReadTokens)},
		}, inner),
	}
	if s.Summary != nil && *s.Summary != "" {
		lines = append(lines, "", labelStyle.Render("Summary"), lipgloss.NewStyle().Width(inner).Render(*s.Summary))
	}
	if s.FirstUserMessage != "" {
		lines = append(lines, "", labelStyle.Render("First message"),
			lipgloss.NewStyle().Width(inner).Foreground(t.TextPrimary).Render(s.FirstUserMessage))
	}

	return components.Pane("Detail", strings.Join(lines, "\n"), outerW, a.detail)
}
