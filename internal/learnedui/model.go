// Package learnedui provides the Bubble Tea learned-word manager.
package learnedui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/tuivoc/internal/model"
)

// Store is the persistence the manager needs.
type Store interface {
	ListLearned(ctx context.Context, filter string) ([]model.LearnedTerm, error)
	RemoveLearned(ctx context.Context, terms ...string) (int, error)
}

var (
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	noticeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the learned-word manager.
type Model struct {
	store  Store
	terms  []model.LearnedTerm
	table  table.Model
	filter textinput.Model

	filterMode bool
	errMsg     string
	notice     string

	width  int
	height int
}

// NewModel constructs a learned-word manager.
func NewModel(st Store) *Model {
	m := &Model{
		store:  st,
		filter: newFilterInput(),
		table:  buildTable(nil, 80, 10),
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
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		m.notice = ""
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "/":
			m.filterMode = true
			return m, m.filter.Focus()
		case "d", "x", "delete":
			m.removeSelected()
			return m, nil
		case "r":
			m.refresh()
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := max(1, m.height-lipgloss.Height(header)-lipgloss.Height(footer))
	var body string
	if len(m.terms) == 0 {
		body = "No learned words."
		if m.filter.Value() != "" {
			body = "No learned words match the filter."
		}
	} else {
		body = tableMutedStyle.Render(m.table.View())
	}
	return strings.Join([]string{
		fitLines(header, m.width, lipgloss.Height(header)),
		fitLines(body, m.width, bodyHeight),
		fitLines(footer, m.width, lipgloss.Height(footer)),
	}, "\n")
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.refresh()
		return m, nil
	case tea.KeyEnter:
		m.filterMode = false
		m.filter.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.refresh()
	return m, cmd
}

func (m *Model) removeSelected() {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return
	}
	term := row[0]
	n, err := m.store.RemoveLearned(context.Background(), term)
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to remove %q: %v", term, err)
		return
	}
	if n > 0 {
		m.notice = fmt.Sprintf("Removed %q; it will be shown again.", term)
	}
	pos := m.table.Cursor()
	m.refresh()
	if pos >= len(m.terms) {
		pos = len(m.terms) - 1
	}
	if pos >= 0 {
		m.table.SetCursor(pos)
	}
}

func (m *Model) refresh() {
	terms, err := m.store.ListLearned(context.Background(), strings.TrimSpace(m.filter.Value()))
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to load learned words: %v", err)
		return
	}
	m.errMsg = ""
	m.terms = terms
	m.table.SetRows(buildRows(terms))
	if c := m.table.Cursor(); c < 0 || c >= len(terms) {
		m.table.SetCursor(0)
	}
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	bodyHeight := max(1, m.height-lipgloss.Height(m.renderHeader())-lipgloss.Height(m.renderFooter()))
	m.table.SetColumns(buildColumns(m.width))
	m.table.SetWidth(m.width)
	m.table.SetHeight(bodyHeight)
	m.filter.Width = max(10, m.width-lipgloss.Width(m.filter.Prompt)-2)
}

func (m *Model) renderHeader() string {
	if m.filterMode {
		return m.filter.View()
	}
	summary := fmt.Sprintf("Learned words: %d", len(m.terms))
	if v := m.filter.Value(); v != "" {
		summary += fmt.Sprintf("  filter=%q", v)
	}
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderFooter() string {
	help := "Move: up/down  Unlearn: d  Filter: /  Refresh: r  Quit: q"
	if m.filterMode {
		help = "enter: keep filter  esc: clear  ctrl+c: quit"
	}
	lines := []string{headerStyle.Render(help)}
	switch {
	case m.errMsg != "":
		lines = append(lines, errorStyle.Render(truncateLine(m.errMsg, m.width)))
	case m.notice != "":
		lines = append(lines, noticeStyle.Render(truncateLine(m.notice, m.width)))
	}
	return strings.Join(lines, "\n")
}

func newFilterInput() textinput.Model {
	input := textinput.New()
	input.Prompt = "Filter: "
	input.Placeholder = "term substring"
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func buildColumns(width int) []table.Column {
	const (
		deckWidth = 24
		dateWidth = 16
	)
	termWidth := max(12, width-deckWidth-dateWidth-6)
	return []table.Column{
		{Title: "Term", Width: termWidth},
		{Title: "Deck", Width: deckWidth},
		{Title: "Learned", Width: dateWidth},
	}
}

func buildRows(terms []model.LearnedTerm) []table.Row {
	rows := make([]table.Row, 0, len(terms))
	for _, lt := range terms {
		rows = append(rows, table.Row{
			lt.Term,
			shortDeck(lt.Deck),
			lt.LearnedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

func shortDeck(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func buildTable(terms []model.LearnedTerm, width, height int) table.Model {
	t := table.New(
		table.WithColumns(buildColumns(width)),
		table.WithRows(buildRows(terms)),
		table.WithHeight(max(1, height-1)),
		table.WithFocused(true),
	)
	t.SetWidth(width)
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
	return runewidth.Truncate(s, width, "...")
}
