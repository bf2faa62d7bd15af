// Package tui provides the Bubble Tea flashcard overlay.
package tui

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/tuivoc/internal/config"
	"github.com/verte-zerg/tuivoc/internal/deck"
	"github.com/verte-zerg/tuivoc/internal/model"
	"github.com/verte-zerg/tuivoc/internal/session"
	"github.com/verte-zerg/tuivoc/internal/speech"
	"github.com/verte-zerg/tuivoc/internal/store"
)

const pollInterval = time.Second

type tickMsg struct {
	gen uint64
}

type pollMsg time.Time

type editorDoneMsg struct {
	err error
}

type speechDoneMsg struct {
	cmd *exec.Cmd
	err error
}

var (
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

type styles struct {
	term    lipgloss.Style
	meaning lipgloss.Style
	example lipgloss.Style
}

func newStyles(s model.Settings) styles {
	return styles{
		term:    lipgloss.NewStyle().Foreground(lipgloss.Color(s.WordColor)).Bold(true),
		meaning: lipgloss.NewStyle().Foreground(lipgloss.Color(s.FontColor)),
		example: lipgloss.NewStyle().Foreground(lipgloss.Color(s.ExampleColor)).Italic(true),
	}
}

// Options wires the overlay to its collaborators.
type Options struct {
	Settings model.Settings
	// Store may be nil; learned terms and study history are then not persisted.
	Store *store.Store
	// ConfigPath is watched for changes; Reload re-resolves settings when it
	// changes. A nil Reload disables watching.
	ConfigPath string
	Reload     func() (model.Settings, error)
}

// Model implements the Bubble Tea flashcard overlay.
type Model struct {
	settings   model.Settings
	store      *store.Store
	configPath string
	configMod  time.Time
	reload     func() (model.Settings, error)

	engine  *session.Engine
	speaker speech.Speaker
	styles  styles
	keys    keyMap
	help    help.Model
	picker  filepicker.Model
	picking bool

	deckPath     string
	sessionID    string
	startedAt    time.Time
	shown        int
	learnedCount int
	revision     int64

	view       session.View
	newCard    bool
	scheduled  uint64
	hidden     bool
	userPause  bool
	focusPause bool
	speaking   *exec.Cmd
	status     string
	errMsg     string

	width  int
	height int
}

// NewModel constructs the overlay and loads the configured deck, if any.
func NewModel(opts Options) *Model {
	m := &Model{
		settings:   opts.Settings,
		store:      opts.Store,
		configPath: opts.ConfigPath,
		reload:     opts.Reload,
		keys:       defaultKeyMap(),
		help:       help.New(),
		styles:     newStyles(opts.Settings),
		speaker:    newSpeaker(opts.Settings),
	}
	if m.reload != nil {
		m.configMod = config.ModTime(m.configPath)
	}
	var learned session.LearnedStore
	if m.store != nil {
		learned = learnedStore{st: m.store, deck: func() string { return m.deckPath }}
	}
	m.engine = session.New(learned,
		session.WithInterval(opts.Settings.Interval),
		session.WithDisplay(session.DisplayFunc(m.render)),
	)
	m.syncRevision()
	if opts.Settings.DeckPath != "" {
		m.loadDeck(opts.Settings.DeckPath)
	}
	return m
}

func newSpeaker(s model.Settings) speech.Speaker {
	return speech.Speaker{Command: s.SpeechCommand, Lang: s.SpeechLang, Rate: s.SpeechRate}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(pollCmd(), m.afterShown(), m.schedule())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.handle(msg)
	return m, tea.Batch(cmd, m.afterShown(), m.schedule())
}

func (m *Model) handle(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.picker.SetHeight(pickerHeight(msg.Height))
		return nil
	case tea.FocusMsg:
		m.focusPause = m.settings.PauseOnFocus
		m.applyPause()
		return nil
	case tea.BlurMsg:
		m.focusPause = false
		m.applyPause()
		return nil
	case tickMsg:
		m.engine.Tick(msg.gen)
		return nil
	case pollMsg:
		m.poll()
		return pollCmd()
	case editorDoneMsg:
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("editor failed: %v", msg.err)
			return nil
		}
		m.loadDeck(m.deckPath)
		return nil
	case speechDoneMsg:
		if msg.cmd == m.speaking {
			m.speaking = nil
			if msg.err != nil {
				m.errMsg = fmt.Sprintf("speech failed: %v", msg.err)
			}
		}
		return nil
	}
	if m.picking {
		return m.updatePicker(msg)
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(msg)
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	m.errMsg = ""
	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.finish()
		return tea.Quit
	case key.Matches(msg, m.keys.Next):
		m.engine.Next()
	case key.Matches(msg, m.keys.Prev):
		m.engine.Previous()
	case key.Matches(msg, m.keys.Learn):
		m.learn()
	case key.Matches(msg, m.keys.Pause):
		m.userPause = !m.userPause
		m.applyPause()
	case key.Matches(msg, m.keys.Speak):
		return m.speak()
	case key.Matches(msg, m.keys.Hide):
		m.hidden = !m.hidden
	case key.Matches(msg, m.keys.Edit):
		return m.editDeck()
	case key.Matches(msg, m.keys.Open):
		return m.openPicker()
	case key.Matches(msg, m.keys.Slower):
		m.adjustInterval(time.Second)
	case key.Matches(msg, m.keys.Faster):
		m.adjustInterval(-time.Second)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.picking {
		return m.renderPicker()
	}
	content := m.renderCard()
	if m.width == 0 || m.height == 0 {
		return content
	}
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := max(1, m.height-lipgloss.Height(footer))
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	return body + "\n" + footer
}

// render is the engine's display; it runs synchronously inside engine calls.
func (m *Model) render(v session.View) {
	if v.Kind == session.ViewCard &&
		(m.view.Kind != session.ViewCard || v.Position != m.view.Position || v.Record != m.view.Record) {
		m.newCard = true
	}
	m.view = v
}

// afterShown records a view of a newly displayed card and speaks it when
// auto speech is on.
func (m *Model) afterShown() tea.Cmd {
	if !m.newCard {
		return nil
	}
	m.newCard = false
	if m.view.Kind != session.ViewCard {
		return nil
	}
	m.shown++
	if m.store != nil && m.deckPath != "" {
		if err := m.store.RecordView(context.Background(), m.deckPath, m.view.Record.Term, time.Now()); err != nil {
			log.Printf("failed to record view: %v", err)
		}
	}
	if m.settings.SpeechAuto {
		return m.speak()
	}
	return nil
}

// schedule turns the engine's pending timer into a tea.Tick. Older ticks
// still in flight carry a stale generation and are dropped by the engine.
func (m *Model) schedule() tea.Cmd {
	t, ok := m.engine.Pending()
	if !ok || t.Gen == m.scheduled {
		return nil
	}
	m.scheduled = t.Gen
	gen := t.Gen
	return tea.Tick(t.Delay, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

func pollCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

// poll picks up changes made outside this process: an edited config file or
// a learned set modified by another tuivoc command.
func (m *Model) poll() {
	if m.reload != nil {
		if mod := config.ModTime(m.configPath); !mod.Equal(m.configMod) {
			m.configMod = mod
			settings, err := m.reload()
			if err != nil {
				m.errMsg = err.Error()
			} else {
				m.applySettings(settings)
			}
		}
	}
	rev, ok := m.readRevision()
	if !ok || rev == m.revision {
		return
	}
	m.revision = rev
	if err := m.engine.Reload(context.Background()); err != nil {
		m.errMsg = err.Error()
	}
}

func (m *Model) syncRevision() {
	if rev, ok := m.readRevision(); ok {
		m.revision = rev
	}
}

func (m *Model) readRevision() (int64, bool) {
	if m.store == nil {
		return 0, false
	}
	rev, err := m.store.Revision(context.Background())
	if err != nil {
		log.Printf("failed to read revision: %v", err)
		return 0, false
	}
	return rev, true
}

func (m *Model) applySettings(s model.Settings) {
	prev := m.settings
	m.settings = s
	m.styles = newStyles(s)
	m.speaker = newSpeaker(s)
	// Any reload restarts the advance window, even when the interval is unchanged.
	if s.Interval != prev.Interval {
		m.engine.SetInterval(s.Interval)
	} else {
		m.engine.Rearm()
	}
	if !s.PauseOnFocus && m.focusPause {
		m.focusPause = false
		m.applyPause()
	}
	if s.DeckPath != "" && s.DeckPath != prev.DeckPath {
		m.loadDeck(s.DeckPath)
	}
	m.status = "Settings reloaded"
}

func (m *Model) loadDeck(path string) {
	records, err := deck.Load(path)
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	if path != m.deckPath {
		m.finishSession()
		m.deckPath = path
		m.startSession()
		if m.store != nil {
			if err := m.store.SetLastFile(context.Background(), path); err != nil {
				log.Printf("failed to save last file: %v", err)
			}
		}
	}
	if err := m.engine.LoadRecords(context.Background(), records); err != nil {
		m.errMsg = err.Error()
	}
}

func (m *Model) learn() {
	total := m.view.Total
	rev, known := m.readRevision()
	if err := m.engine.MarkLearned(context.Background()); err != nil {
		m.errMsg = err.Error()
		return
	}
	if m.engine.View().Total < total {
		m.learnedCount++
	}
	// Skip the reload only for our own single bump. Anything else seen
	// around the write is left for poll.
	if known && rev == m.revision {
		if after, ok := m.readRevision(); ok && after == rev+1 {
			m.revision = after
		}
	}
}

// applyPause holds the pause signal while the user, the terminal focus or
// the open file picker asks for it.
func (m *Model) applyPause() {
	m.engine.SetPaused(m.userPause || m.focusPause || m.picking)
}

func (m *Model) adjustInterval(delta time.Duration) {
	current := m.engine.Interval()
	if current <= 0 && delta < 0 {
		return
	}
	d := max(time.Second, current+delta)
	m.engine.SetInterval(d)
	m.status = fmt.Sprintf("Interval %s", d)
}

func (m *Model) speak() tea.Cmd {
	rec, ok := m.engine.Current()
	if !ok {
		return nil
	}
	m.stopSpeech()
	c, err := m.speaker.Cmd(rec.Term)
	if err != nil {
		m.errMsg = err.Error()
		return nil
	}
	if err := c.Start(); err != nil {
		m.errMsg = fmt.Sprintf("failed to start speech: %v", err)
		return nil
	}
	m.speaking = c
	return func() tea.Msg {
		return speechDoneMsg{cmd: c, err: c.Wait()}
	}
}

func (m *Model) stopSpeech() {
	if m.speaking == nil || m.speaking.Process == nil {
		return
	}
	if err := m.speaking.Process.Kill(); err != nil {
		log.Printf("failed to stop speech: %v", err)
	}
	m.speaking = nil
}

func (m *Model) editDeck() tea.Cmd {
	if m.deckPath == "" {
		m.status = "No file loaded"
		return nil
	}
	c, err := config.EditorCommand(m.deckPath)
	if err != nil {
		m.errMsg = err.Error()
		return nil
	}
	return tea.ExecProcess(c, func(err error) tea.Msg {
		return editorDoneMsg{err: err}
	})
}

func (m *Model) openPicker() tea.Cmd {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".tsv", ".txt"}
	fp.CurrentDirectory = m.pickerDir()
	fp.AutoHeight = false
	fp.SetHeight(pickerHeight(m.height))
	m.picker = fp
	m.picking = true
	m.applyPause()
	return m.picker.Init()
}

func (m *Model) pickerDir() string {
	if m.deckPath != "" {
		return filepath.Dir(m.deckPath)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func pickerHeight(termHeight int) int {
	return max(3, termHeight-4)
}

func (m *Model) updatePicker(msg tea.Msg) tea.Cmd {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "ctrl+c":
			m.finish()
			return tea.Quit
		case "q":
			m.picking = false
			m.applyPause()
			return nil
		}
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.picking = false
		m.errMsg = ""
		m.loadDeck(path)
		m.applyPause()
	}
	return cmd
}

func (m *Model) startSession() {
	m.shown = 0
	m.learnedCount = 0
	m.startedAt = time.Now()
	if m.store == nil {
		return
	}
	id, err := m.store.StartSession(context.Background(), m.deckPath, m.startedAt)
	if err != nil {
		log.Printf("failed to start session: %v", err)
		return
	}
	m.sessionID = id
}

func (m *Model) finishSession() {
	if m.store == nil || m.sessionID == "" {
		return
	}
	sess := model.StudySession{
		ID:        m.sessionID,
		Deck:      m.deckPath,
		StartedAt: m.startedAt,
		EndedAt:   time.Now(),
		Shown:     m.shown,
		Learned:   m.learnedCount,
	}
	if err := m.store.FinishSession(context.Background(), sess); err != nil {
		log.Printf("failed to save session: %v", err)
	}
	m.sessionID = ""
}

func (m *Model) finish() {
	m.stopSpeech()
	m.finishSession()
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 0
	}
	return max(1, int(float64(m.width)*0.80))
}

func (m *Model) renderCard() string {
	switch m.view.Kind {
	case session.ViewEmpty:
		return footerStyle.Render("No file loaded. Press o to open a deck.")
	case session.ViewNoRecords:
		return m.styles.meaning.Render("No words in this file")
	case session.ViewAllLearned:
		return m.styles.term.Render("All learned!")
	}
	width := m.contentWidth()
	rec := m.view.Record
	var lines []string
	for _, line := range wrapText(rec.Term, width) {
		lines = append(lines, m.styles.term.Render(line))
	}
	for _, line := range wrapText(rec.Meaning, width) {
		lines = append(lines, m.styles.meaning.Render(line))
	}
	if !m.hidden && m.settings.ShowExample && rec.HasExample() {
		lines = append(lines, "")
		for _, line := range wrapText(rec.Example, width) {
			lines = append(lines, m.styles.example.Render(line))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m *Model) renderFooter() string {
	var lines []string
	switch {
	case m.errMsg != "":
		lines = append(lines, errorStyle.Render(truncateLine(m.errMsg, m.width)))
	case m.status != "":
		lines = append(lines, noticeStyle.Render(truncateLine(m.status, m.width)))
	}
	if !m.hidden {
		lines = append(lines, footerStyle.Render(m.statusLine()), m.help.View(m.keys))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) statusLine() string {
	v := m.view
	var segments []string
	if m.deckPath != "" {
		segments = append(segments, filepath.Base(m.deckPath))
	}
	if v.Kind == session.ViewCard {
		segments = append(segments, fmt.Sprintf("Card %d/%d", v.Position+1, v.Total))
	}
	if v.Records > 0 {
		segments = append(segments, fmt.Sprintf("Remaining %d of %d", v.Total, v.Records))
	}
	switch {
	case v.Paused:
		segments = append(segments, "Paused")
	case v.Interval <= 0:
		segments = append(segments, "Auto-advance off")
	default:
		segments = append(segments, fmt.Sprintf("Every %s", v.Interval))
	}
	segments = append(segments, fmt.Sprintf("Shown %d", m.shown))
	return truncateLine(strings.Join(segments, "  "), m.width)
}

func (m *Model) renderPicker() string {
	header := footerStyle.Render(truncateLine("Open deck (.tsv, .txt) in "+m.picker.CurrentDirectory, m.width))
	hint := footerStyle.Render("enter: open  h/←: up  q: cancel")
	return header + "\n\n" + m.picker.View() + "\n" + hint
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
