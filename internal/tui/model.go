// Package tui provides the Bubble Tea typing interface.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typespeed/internal/model"
	"github.com/verte-zerg/typespeed/internal/scorer"
	statsPkg "github.com/verte-zerg/typespeed/internal/stats"
	"github.com/verte-zerg/typespeed/internal/store"
	"github.com/verte-zerg/typespeed/internal/texts"
)

// Options configures a typing Model.
type Options struct {
	Store   store.ResultStore
	Catalog *texts.Catalog
	Lang    string
	Mode    scorer.Mode
	User    string
	Logger  zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Model implements the Bubble Tea typing UI.
type Model struct {
	opts Options

	width  int
	height int

	targetRunes []rune
	inputRunes  []rune

	watch     stopwatch.Model
	started   bool
	startedAt time.Time
	finished  bool

	last    model.Result
	hasLast bool
	scored  bool
	saveErr error

	count   int
	bestWPM float64
}

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	resultStyle      = lipgloss.NewStyle().Bold(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// NewModel constructs a typing TUI model with a first text picked.
func NewModel(opts Options) (*Model, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("result store is required")
	}
	if opts.Catalog == nil {
		opts.Catalog = texts.NewCatalog()
	}
	if opts.Mode == "" {
		opts.Mode = scorer.ModeChar
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Model{opts: opts, watch: stopwatch.NewWithInterval(100 * time.Millisecond)}
	if err := m.nextText(); err != nil {
		return nil, err
	}
	m.loadHistory()
	return m, nil
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
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	default:
		var cmd tea.Cmd
		m.watch, cmd = m.watch.Update(msg)
		return m, cmd
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return tea.Quit
	}
	if m.finished {
		switch msg.String() {
		case "q":
			return tea.Quit
		case "n":
			return m.restart()
		}
		return nil
	}
	switch msg.Type {
	case tea.KeyEnter:
		if m.started {
			return m.finish()
		}
	case tea.KeyBackspace, tea.KeyDelete:
		m.handleBackspace()
	case tea.KeySpace:
		return m.handleRunes([]rune{' '})
	case tea.KeyRunes:
		return m.handleRunes(msg.Runes)
	}
	return nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.finished {
		return m.place(m.renderResult())
	}
	cursorIndex := -1
	if len(m.inputRunes) < len(m.targetRunes) {
		cursorIndex = len(m.inputRunes)
	}
	styledRunes := buildStyledRunes(m.targetRunes, m.inputRunes, cursorIndex, m.opts.Mode)
	if m.width == 0 || m.height == 0 {
		return renderStyledRunes(styledRunes)
	}
	contentWidth := max(int(float64(m.width)*0.70), 1)
	wrapped := wrapStyledRunes(styledRunes, contentWidth)
	return m.place(lipgloss.NewStyle().Width(contentWidth).Render(wrapped))
}

func (m *Model) place(content string) string {
	if m.width == 0 || m.height == 0 {
		return content + "\n" + m.renderFooter()
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, m.renderFooter())
	return body + "\n" + footerLine
}

func (m *Model) handleBackspace() {
	if len(m.inputRunes) == 0 {
		return
	}
	m.inputRunes = m.inputRunes[:len(m.inputRunes)-1]
}

func (m *Model) handleRunes(runes []rune) tea.Cmd {
	var cmds []tea.Cmd
	for _, r := range runes {
		if len(m.inputRunes) >= len(m.targetRunes) {
			break
		}
		if !m.started {
			m.started = true
			m.startedAt = m.opts.Now()
			cmds = append(cmds, m.watch.Start())
		}
		m.inputRunes = append(m.inputRunes, r)
		if len(m.inputRunes) == len(m.targetRunes) {
			cmds = append(cmds, m.finish())
			break
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) finish() tea.Cmd {
	endedAt := m.opts.Now()
	m.finished = true
	m.scored = false
	m.saveErr = nil

	metrics, err := scorer.ScoreDuration(string(m.targetRunes), string(m.inputRunes), endedAt.Sub(m.startedAt), m.opts.Mode)
	if err != nil {
		m.saveErr = err
		return m.watch.Stop()
	}
	res := model.NewResult(metrics, m.opts.User, endedAt)
	m.last = res
	m.hasLast = true
	m.scored = true
	if err := m.opts.Store.Append(context.Background(), res); err != nil {
		m.saveErr = err
		m.opts.Logger.Error().Err(err).Msg("failed to save result")
	} else {
		m.count++
		m.bestWPM = max(m.bestWPM, res.WPM)
	}
	return m.watch.Stop()
}

func (m *Model) restart() tea.Cmd {
	if err := m.nextText(); err != nil {
		m.saveErr = err
		return nil
	}
	return m.watch.Reset()
}

func (m *Model) nextText() error {
	text, err := m.opts.Catalog.Pick(m.opts.Lang)
	if err != nil {
		return fmt.Errorf("failed to pick text: %w", err)
	}
	m.targetRunes = []rune(text)
	m.inputRunes = nil
	m.started = false
	m.startedAt = time.Time{}
	m.finished = false
	return nil
}

func (m *Model) loadHistory() {
	results, err := m.opts.Store.List(context.Background(), m.opts.User)
	if err != nil {
		m.opts.Logger.Warn().Err(err).Msg("failed to load previous results")
		return
	}
	if len(results) == 0 {
		return
	}
	summary := statsPkg.Summarize(results)
	m.count = summary.Count
	m.bestWPM = summary.BestWPM
	m.last = results[0]
	m.hasLast = true
}

func (m *Model) renderResult() string {
	lines := []string{}
	if m.scored {
		lines = append(lines, resultStyle.Render(fmt.Sprintf("WPM: %.1f  Accuracy: %.1f%%", m.last.WPM, m.last.Accuracy)))
	}
	if m.saveErr != nil {
		lines = append(lines, errorStyle.Render("Error: "+m.saveErr.Error()))
	}
	lines = append(lines, "", footerStyle.Render("n new text · q quit"))
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	if len(m.targetRunes) == 0 {
		return ""
	}
	progress := int(float64(len(m.inputRunes)) / float64(len(m.targetRunes)) * 100)
	segments := []string{
		"Time " + m.watch.View(),
		fmt.Sprintf("Progress %d%%", progress),
	}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %.1f WPM · %.1f%%", m.last.WPM, m.last.Accuracy))
	}
	if m.count > 0 {
		segments = append(segments, fmt.Sprintf("Best %.1f WPM · %d tests", m.bestWPM, m.count))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}
