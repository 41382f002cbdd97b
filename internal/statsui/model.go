// Package statsui provides the Bubble Tea results browser.
package statsui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typespeed/internal/model"
	"github.com/verte-zerg/typespeed/internal/stats"
	"github.com/verte-zerg/typespeed/internal/store"
)

const (
	tabOverview = iota
	tabHistory
	tabLeaderboard
)

// DefaultWindow is the moving average window of the WPM trend.
const DefaultWindow = 5

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Options configures the results browser.
type Options struct {
	Store store.ResultStore
	// User limits the view to one owner. Empty means every result.
	User string
	// Window is the trend smoothing window, DefaultWindow when zero.
	Window int
}

// Model implements the Bubble Tea results browser.
type Model struct {
	store  store.ResultStore
	user   string
	window int

	results []model.Result
	errMsg  string

	tabs      []string
	activeTab int
	overview  viewport.Model
	history   table.Model
	board     table.Model

	width  int
	height int

	filterMode bool
	filter     textinput.Model
}

// NewModel constructs a results browser and loads the first snapshot.
func NewModel(opts Options) *Model {
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	m := &Model{
		store:    opts.Store,
		user:     strings.TrimSpace(opts.User),
		window:   window,
		tabs:     []string{"Overview", "History", "Leaderboard"},
		overview: viewport.New(0, 0),
		history:  newTable(historyColumns()),
		board:    newTable(leaderboardColumns()),
		filter:   newFilterInput("User: "),
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderOverview()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.window = nextWindow(m.window)
			m.renderOverview()
			return m, nil
		case "-":
			m.window = prevWindow(m.window)
			m.renderOverview()
			return m, nil
		case "r":
			m.refresh()
			return m, nil
		case "/":
			m.filterMode = true
			m.filter.SetValue(m.user)
			return m, m.filter.Focus()
		}
		return m, m.forward(msg)
	}
	return m, nil
}

func (m *Model) forward(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch m.activeTab {
	case tabHistory:
		m.history, cmd = m.history.Update(msg)
	case tabLeaderboard:
		m.board, cmd = m.board.Update(msg)
	default:
		m.overview, cmd = m.overview.Update(msg)
	}
	return cmd
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filter.Blur()
		return m, nil
	case tea.KeyEnter:
		m.filterMode = false
		m.filter.Blur()
		m.user = strings.TrimSpace(m.filter.Value())
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) refresh() {
	results, err := m.store.List(context.Background(), m.user)
	if err != nil {
		m.errMsg = err.Error()
		m.results = nil
	} else {
		m.errMsg = ""
		m.results = results
	}
	m.history.SetRows(historyRows(m.results))
	m.history.GotoTop()
	m.board.SetRows(leaderboardRows(stats.Leaderboard(m.results)))
	m.board.GotoTop()
	m.renderOverview()
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(1, lipgloss.Height(activeNavStyle.Render("X")))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	m.history.SetWidth(m.width)
	m.history.SetHeight(max(1, bodyHeight-1))
	m.board.SetWidth(m.width)
	m.board.SetHeight(max(1, bodyHeight-1))
	m.filter.Width = max(10, m.width-lipgloss.Width(m.filter.Prompt)-2)
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	m.activeTab = (m.activeTab + delta + count) % count
	m.history.Blur()
	m.board.Blur()
	switch m.activeTab {
	case tabHistory:
		m.history.Focus()
	case tabLeaderboard:
		m.board.Focus()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	if m.filterMode {
		return tabs + "\n" + m.filter.View()
	}
	return tabs + "\n" + headerStyle.Render(truncateLine(m.settingsLine(), m.width))
}

func (m *Model) settingsLine() string {
	user := m.user
	if user == "" {
		user = "all"
	}
	return fmt.Sprintf("Settings: user=%s  window=%d  results=%d", user, m.window, len(m.results))
}

func (m *Model) renderFooter() string {
	help := "Nav: left/right  Scroll: up/down  Window: -/=  User: /  Reload: r  Quit: q"
	if m.filterMode {
		help = "enter: apply  esc: cancel  empty: all users"
	}
	if m.errMsg != "" {
		return headerStyle.Render(help) + "\n" + errorStyle.Render(m.errMsg)
	}
	return headerStyle.Render(help)
}

func (m *Model) renderBody() string {
	if len(m.results) == 0 {
		return "No results found."
	}
	switch m.activeTab {
	case tabHistory:
		return tableMutedStyle.Render(m.history.View())
	case tabLeaderboard:
		if len(m.board.Rows()) == 0 {
			return "No results with an owner."
		}
		return tableMutedStyle.Render(m.board.View())
	default:
		return m.overview.View()
	}
}

func (m *Model) renderOverview() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.results, m.window, width))
}

func renderOverview(results []model.Result, window, width int) string {
	if len(results) == 0 {
		return "No results found."
	}
	s := stats.Summarize(results)
	cards := []string{
		metricCard("Tests", fmt.Sprintf("%d", s.Count)),
		metricCard("Avg WPM", fmt.Sprintf("%.1f", s.AvgWPM)),
		metricCard("Best WPM", fmt.Sprintf("%.1f", s.BestWPM)),
		metricCard("Avg Acc", fmt.Sprintf("%.1f%%", s.AvgAccuracy)),
	}
	summary := strings.Join(cards, "\n")
	if width >= 80 {
		summary = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}
	trend := stats.WPMTrend(results, window)
	line := truncateLine(stats.Sparkline(trend), width)
	curve := headerStyle.Render(fmt.Sprintf("WPM trend (window %d, oldest first)", window)) + "\n" + line
	return summary + "\n\n" + curve
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func historyColumns() []table.Column {
	return []table.Column{
		{Title: "Date", Width: 19},
		{Title: "WPM", Width: 7},
		{Title: "Accuracy", Width: 9},
		{Title: "User", Width: 16},
	}
}

func historyRows(results []model.Result) []table.Row {
	rows := make([]table.Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, table.Row{
			r.Timestamp.Format(model.TimestampLayout),
			fmt.Sprintf("%.1f", r.WPM),
			fmt.Sprintf("%.1f%%", r.Accuracy),
			r.Username,
		})
	}
	return rows
}

func leaderboardColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 3},
		{Title: "User", Width: 16},
		{Title: "Games", Width: 6},
		{Title: "Avg WPM", Width: 8},
		{Title: "Best WPM", Width: 9},
		{Title: "Avg Acc", Width: 8},
	}
}

func leaderboardRows(entries []model.LeaderboardEntry) []table.Row {
	rows := make([]table.Row, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i+1),
			e.Username,
			fmt.Sprintf("%d", e.TotalGames),
			fmt.Sprintf("%.1f", e.AverageWPM),
			fmt.Sprintf("%.1f", e.BestWPM),
			fmt.Sprintf("%.1f%%", e.AverageAccuracy),
		})
	}
	return rows
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(1),
	)
	t.SetStyles(tableStyles())
	return t
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 80
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func nextWindow(n int) int {
	if n < 5 {
		return 5
	}
	if n%5 == 0 {
		return n + 5
	}
	return ((n / 5) + 1) * 5
}

func prevWindow(n int) int {
	if n <= 5 {
		return 1
	}
	if n%5 == 0 {
		return n - 5
	}
	return (n / 5) * 5
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
