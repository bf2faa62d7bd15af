package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/tuivoc/internal/config"
	"github.com/verte-zerg/tuivoc/internal/model"
	"github.com/verte-zerg/tuivoc/internal/session"
	"github.com/verte-zerg/tuivoc/internal/store"
)

func writeDeck(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.tsv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	return path
}

func testSettings(deckPath string) model.Settings {
	fc := config.FileConfig{}
	s := config.Resolve(fc)
	s.DeckPath = deckPath
	return s
}

func pressKey(m *Model, k string) {
	var msg tea.KeyMsg
	if k == " " {
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	} else {
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	m.Update(msg)
}

func TestModelShowsFirstCard(t *testing.T) {
	path := writeDeck(t, "cat\tgato\tEl gato duerme.\ndog\tperro\n")
	m := NewModel(Options{Settings: testSettings(path)})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})

	out := m.View()
	for _, needle := range []string{"cat", "gato", "El gato duerme.", "Card 1/2", "words.tsv"} {
		if !strings.Contains(out, needle) {
			t.Fatalf("view missing %q:\n%s", needle, out)
		}
	}
}

func TestModelNavigationAndLearn(t *testing.T) {
	path := writeDeck(t, "cat\tgato\ndog\tperro\nowl\tbúho\n")
	m := NewModel(Options{Settings: testSettings(path)})

	pressKey(m, "n")
	if m.view.Record.Term != "dog" {
		t.Fatalf("expected dog after next, got %q", m.view.Record.Term)
	}
	pressKey(m, "p")
	pressKey(m, "p")
	if m.view.Record.Term != "owl" {
		t.Fatalf("expected wrap to owl, got %q", m.view.Record.Term)
	}
	pressKey(m, "l")
	if m.view.Total != 2 || m.view.Record.Term != "cat" {
		t.Fatalf("expected cat with 2 remaining, got %+v", m.view)
	}
	if m.learnedCount != 1 {
		t.Fatalf("expected 1 learned, got %d", m.learnedCount)
	}
	if m.shown != 4 {
		t.Fatalf("expected 4 shown cards, got %d", m.shown)
	}
}

func TestModelAllLearnedAndEmptyDeck(t *testing.T) {
	path := writeDeck(t, "only\tone\n")
	m := NewModel(Options{Settings: testSettings(path)})
	pressKey(m, "l")
	if m.view.Kind != session.ViewAllLearned {
		t.Fatalf("expected all learned view, got %v", m.view.Kind)
	}
	if !strings.Contains(m.View(), "All learned!") {
		t.Fatalf("expected all learned text, got %q", m.View())
	}

	empty := writeDeck(t, "# nothing here\n\n")
	m = NewModel(Options{Settings: testSettings(empty)})
	if !strings.Contains(m.View(), "No words in this file") {
		t.Fatalf("expected no words text, got %q", m.View())
	}
}

func TestModelPauseKeyAndFocus(t *testing.T) {
	path := writeDeck(t, "cat\tgato\ndog\tperro\n")
	m := NewModel(Options{Settings: testSettings(path)})
	if _, ok := m.engine.Pending(); !ok {
		t.Fatalf("expected armed timer after load")
	}

	pressKey(m, " ")
	if !m.view.Paused {
		t.Fatalf("expected paused after space")
	}
	if _, ok := m.engine.Pending(); ok {
		t.Fatalf("expected no timer while paused")
	}
	pressKey(m, " ")
	if m.view.Paused {
		t.Fatalf("expected resumed after second space")
	}

	m.Update(tea.FocusMsg{})
	if !m.view.Paused {
		t.Fatalf("expected paused while focused")
	}
	m.Update(tea.BlurMsg{})
	if m.view.Paused {
		t.Fatalf("expected resumed after blur")
	}
}

func TestModelTickAdvancesOnlyWhenLive(t *testing.T) {
	path := writeDeck(t, "cat\tgato\ndog\tperro\n")
	m := NewModel(Options{Settings: testSettings(path)})
	timer, ok := m.engine.Pending()
	if !ok {
		t.Fatalf("expected armed timer")
	}

	m.Update(tickMsg{gen: timer.Gen - 1})
	if m.view.Record.Term != "cat" {
		t.Fatalf("stale tick advanced to %q", m.view.Record.Term)
	}
	m.Update(tickMsg{gen: timer.Gen})
	if m.view.Record.Term != "dog" {
		t.Fatalf("expected live tick to advance, got %q", m.view.Record.Term)
	}
	if m.scheduled == timer.Gen {
		t.Fatalf("expected a fresh timer to be scheduled")
	}
}

func TestModelIntervalKeys(t *testing.T) {
	path := writeDeck(t, "cat\tgato\n")
	m := NewModel(Options{Settings: testSettings(path)})
	pressKey(m, "+")
	if got := m.engine.Interval(); got != 11*time.Second {
		t.Fatalf("expected 11s, got %s", got)
	}
	for i := 0; i < 20; i++ {
		pressKey(m, "-")
	}
	if got := m.engine.Interval(); got != time.Second {
		t.Fatalf("expected floor of 1s, got %s", got)
	}
}

func TestModelHideModeDropsExampleAndFooter(t *testing.T) {
	path := writeDeck(t, "cat\tgato\tEl gato duerme.\n")
	m := NewModel(Options{Settings: testSettings(path)})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	pressKey(m, "h")
	out := m.View()
	if strings.Contains(out, "El gato duerme.") || strings.Contains(out, "Card 1/1") {
		t.Fatalf("expected compact view, got:\n%s", out)
	}
	if !strings.Contains(out, "gato") {
		t.Fatalf("expected meaning in compact view, got:\n%s", out)
	}
}

func TestModelParseErrorKeepsSession(t *testing.T) {
	path := writeDeck(t, "cat\tgato\n")
	m := NewModel(Options{Settings: testSettings(path)})
	bad := filepath.Join(t.TempDir(), "bad.tsv")
	if err := os.WriteFile(bad, []byte{0xff, 0xfe, 0x00, 0xd8}, 0o644); err != nil {
		t.Fatalf("write bad deck: %v", err)
	}
	m.loadDeck(bad)
	if m.errMsg == "" {
		t.Fatalf("expected error message")
	}
	if m.deckPath != path || m.view.Record.Term != "cat" {
		t.Fatalf("expected previous session kept, got deck %q view %+v", m.deckPath, m.view)
	}
}

func TestModelPersistsAndReloadsOnRevision(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "tuivoc.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	path := writeDeck(t, "cat\tgato\ndog\tperro\n")
	m := NewModel(Options{Settings: testSettings(path), Store: st})

	pressKey(m, "l")
	if m.view.Total != 1 {
		t.Fatalf("expected 1 remaining, got %d", m.view.Total)
	}
	revision := m.revision
	m.poll()
	if m.revision != revision || m.view.Total != 1 {
		t.Fatalf("own learn should not trigger a reload")
	}

	if _, err := st.RemoveLearned(t.Context(), "cat"); err != nil {
		t.Fatalf("remove learned: %v", err)
	}
	m.poll()
	if m.view.Total != 2 {
		t.Fatalf("expected unlearned term back after poll, got %d", m.view.Total)
	}

	last, err := st.LastFile(t.Context())
	if err != nil {
		t.Fatalf("last file: %v", err)
	}
	if last != path {
		t.Fatalf("expected last file %q, got %q", path, last)
	}
	m.finish()
	sessions, err := st.ListSessions(t.Context(), model.StatsConfig{})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Learned != 1 || sessions[0].Shown == 0 {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestModelConfigReloadRearmsTimer(t *testing.T) {
	path := writeDeck(t, "cat\tgato\ndog\tperro\n")
	cfg := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfg, []byte("interval = 10\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	reloaded := testSettings(path)
	reloaded.WordColor = "#ff0000"
	m := NewModel(Options{
		Settings:   testSettings(path),
		ConfigPath: cfg,
		Reload:     func() (model.Settings, error) { return reloaded, nil },
	})
	before, ok := m.engine.Pending()
	if !ok {
		t.Fatalf("expected armed timer")
	}

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(cfg, later, later); err != nil {
		t.Fatalf("touch config: %v", err)
	}
	m.poll()
	if m.settings.WordColor != "#ff0000" {
		t.Fatalf("expected reloaded settings, got %q", m.settings.WordColor)
	}
	after, ok := m.engine.Pending()
	if !ok || after.Gen == before.Gen {
		t.Fatalf("expected a fresh timer after reload, before %d after %+v", before.Gen, after)
	}
	m.Update(tickMsg{gen: before.Gen})
	if m.view.Record.Term != "cat" {
		t.Fatalf("tick from before the reload advanced to %q", m.view.Record.Term)
	}
}

func TestModelPickerHoldsTimer(t *testing.T) {
	path := writeDeck(t, "cat\tgato\ndog\tperro\n")
	m := NewModel(Options{Settings: testSettings(path)})
	timer, ok := m.engine.Pending()
	if !ok {
		t.Fatalf("expected armed timer")
	}
	shown := m.shown

	pressKey(m, "o")
	if !m.picking {
		t.Fatalf("expected picker open")
	}
	if _, ok := m.engine.Pending(); ok {
		t.Fatalf("expected no timer while picking")
	}
	m.Update(tickMsg{gen: timer.Gen})
	if m.view.Record.Term != "cat" || m.shown != shown {
		t.Fatalf("tick advanced behind picker: %q shown %d", m.view.Record.Term, m.shown)
	}

	pressKey(m, "q")
	if m.picking {
		t.Fatalf("expected picker closed")
	}
	if _, ok := m.engine.Pending(); !ok {
		t.Fatalf("expected timer re-armed after closing picker")
	}

	pressKey(m, " ")
	pressKey(m, "o")
	pressKey(m, "q")
	if _, ok := m.engine.Pending(); ok || !m.view.Paused {
		t.Fatalf("closing picker should keep user pause")
	}
}

func TestModelLearnKeepsExternalChangeForPoll(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "tuivoc.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	path := writeDeck(t, "cat\tgato\ndog\tperro\nowl\tbúho\n")
	m := NewModel(Options{Settings: testSettings(path), Store: st})

	if err := st.MarkLearned(t.Context(), path, "owl"); err != nil {
		t.Fatalf("mark learned: %v", err)
	}
	pressKey(m, "l")
	if m.view.Total != 2 {
		t.Fatalf("expected 2 remaining before poll, got %d", m.view.Total)
	}
	m.poll()
	if m.view.Total != 1 || m.view.Record.Term != "dog" {
		t.Fatalf("expected external learn applied by poll, got %+v", m.view)
	}
}
