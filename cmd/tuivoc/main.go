// Package main provides the CLI entrypoint for tuivoc.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/tuivoc/internal/config"
	"github.com/verte-zerg/tuivoc/internal/deck"
	"github.com/verte-zerg/tuivoc/internal/learnedui"
	"github.com/verte-zerg/tuivoc/internal/model"
	"github.com/verte-zerg/tuivoc/internal/session"
	"github.com/verte-zerg/tuivoc/internal/stats"
	"github.com/verte-zerg/tuivoc/internal/store"
	"github.com/verte-zerg/tuivoc/internal/tui"
)

const debugEnv = "TUIVOC_DEBUG"

var (
	sessionFile         string
	sessionInterval     int
	sessionPauseOnFocus bool

	appearanceWordColor    string
	appearanceFontColor    string
	appearanceExampleColor string
	appearanceShowExample  bool

	speechCommand string
	speechLang    string
	speechRate    float64
	speechAuto    bool

	statsDeck  string
	statsSince string
	statsLast  int
	statsTop   int

	learnedFilter  string
	importDeck     string
	importReplace  bool
	exportFilePath string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tuivoc [file]",
		Short:         "Terminal vocabulary flashcards",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runSessionCmd,
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&sessionFile, "file", "f", "", "deck file (term<TAB>meaning<TAB>example per line)")
	flags.IntVar(&sessionInterval, "interval", int(config.DefaultInterval/time.Second), "seconds between cards (0 disables auto-advance)")
	flags.BoolVar(&sessionPauseOnFocus, "pause-on-focus", true, "pause while the terminal has focus")
	flags.StringVar(&appearanceWordColor, "word-color", config.DefaultWordColor, "term color")
	flags.StringVar(&appearanceFontColor, "font-color", config.DefaultFontColor, "meaning color")
	flags.StringVar(&appearanceExampleColor, "example-color", config.DefaultExampleColor, "example color")
	flags.BoolVar(&appearanceShowExample, "show-example", true, "show example sentences")
	flags.StringVar(&speechCommand, "speech-command", "", "text-to-speech program (default: auto-detect)")
	flags.StringVar(&speechLang, "speech-lang", config.DefaultSpeechLang, "fallback speech language")
	flags.Float64Var(&speechRate, "speech-rate", config.DefaultSpeechRate, "speech rate multiplier")
	flags.BoolVar(&speechAuto, "speech-auto", false, "speak every new card")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newLearnedCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

// resolveSettings layers defaults, the config file and explicitly set flags.
func resolveSettings(cmd *cobra.Command) (model.Settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	s := config.Resolve(fileCfg)
	applyStringFlag(cmd, "file", &s.DeckPath, sessionFile)
	if cmd.Flags().Changed("interval") {
		s.Interval = time.Duration(sessionInterval) * time.Second
	}
	applyBoolFlag(cmd, "pause-on-focus", &s.PauseOnFocus, sessionPauseOnFocus)
	applyStringFlag(cmd, "word-color", &s.WordColor, appearanceWordColor)
	applyStringFlag(cmd, "font-color", &s.FontColor, appearanceFontColor)
	applyStringFlag(cmd, "example-color", &s.ExampleColor, appearanceExampleColor)
	applyBoolFlag(cmd, "show-example", &s.ShowExample, appearanceShowExample)
	applyStringFlag(cmd, "speech-command", &s.SpeechCommand, speechCommand)
	applyStringFlag(cmd, "speech-lang", &s.SpeechLang, speechLang)
	applyFloatFlag(cmd, "speech-rate", &s.SpeechRate, speechRate)
	applyBoolFlag(cmd, "speech-auto", &s.SpeechAuto, speechAuto)

	if err := config.ValidateSettings(s); err != nil {
		return model.Settings{}, err
	}
	if s.DeckPath != "" {
		abs, err := filepath.Abs(expandHome(s.DeckPath))
		if err != nil {
			return model.Settings{}, fmt.Errorf("failed to resolve deck path: %w", err)
		}
		s.DeckPath = abs
	}
	return s, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func runSessionCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		if cmd.Flags().Changed("file") {
			return fmt.Errorf("pass the deck either as an argument or with --file, not both")
		}
		if err := cmd.Flags().Set("file", args[0]); err != nil {
			return err
		}
	}
	settings, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	if settings.DeckPath == "" {
		last, err := st.LastFile(context.Background())
		if err != nil {
			logErrf("failed to read last file: %v\n", err)
		} else if last != "" {
			if _, err := os.Stat(last); err == nil {
				settings.DeckPath = last
			}
		}
	}

	closeLog, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLog()

	m := tui.NewModel(tui.Options{
		Settings:   settings,
		Store:      st,
		ConfigPath: config.DefaultConfigPath(),
		Reload: func() (model.Settings, error) {
			return resolveSettings(cmd)
		},
	})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// setupLogging routes the log package away from the terminal while the TUI
// owns it. With TUIVOC_DEBUG set, logs go to a file instead of being dropped.
func setupLogging() (func(), error) {
	if strings.TrimSpace(os.Getenv(debugEnv)) == "" {
		log.SetOutput(io.Discard)
		return func() {}, nil
	}
	path := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := tea.LogToFile(path, "tuivoc")
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	return func() {
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close debug log: %v\n", cerr)
		}
	}, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	cmd, err := config.EditorCommand(path)
	if err != nil {
		return err
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Parse a deck and report what a session would show",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheckCmd,
	}
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	path := args[0]
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read deck: %w", err)
	}
	sum, err := deck.Inspect(raw)
	if err != nil {
		var perr *deck.ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	terms, err := st.LearnedTerms(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load learned words: %w", err)
	}
	active := session.BuildActiveSet(sum.Records, session.NewLearnedSet(terms...))

	lines := []string{
		fmt.Sprintf("File: %s", path),
		fmt.Sprintf("Lines: %d (blank %d, comments %d, without term %d)", sum.Lines, sum.Blank, sum.Comments, sum.Skipped),
		fmt.Sprintf("Records: %d (%d with example)", len(sum.Records), sum.WithExample),
		fmt.Sprintf("Already learned: %d", len(sum.Records)-len(active)),
		fmt.Sprintf("Left to study: %d", len(active)),
	}
	if len(sum.Duplicates) > 0 {
		lines = append(lines, fmt.Sprintf("Duplicate terms: %s", strings.Join(sum.Duplicates, ", ")))
	}
	switch {
	case len(sum.Records) == 0:
		lines = append(lines, "No words in this file")
	case len(active) == 0:
		lines = append(lines, "All learned!")
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newLearnedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learned",
		Short: "Manage learned words",
		Args:  cobra.NoArgs,
		RunE:  runLearnedCmd,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List learned words",
		Args:  cobra.NoArgs,
		RunE:  runLearnedListCmd,
	}
	listCmd.Flags().StringVar(&learnedFilter, "filter", "", "only terms containing this text")

	removeCmd := &cobra.Command{
		Use:   "remove <term>...",
		Short: "Unlearn terms so sessions show them again",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runLearnedRemoveCmd,
	}

	importCmd := &cobra.Command{
		Use:   "import <learned.json>",
		Short: "Import a JSON array of learned terms",
		Args:  cobra.ExactArgs(1),
		RunE:  runLearnedImportCmd,
	}
	importCmd.Flags().StringVar(&importDeck, "deck", "", "deck to attribute imported terms to (default: the JSON file name)")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "replace the learned set instead of merging")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export learned terms as a JSON array",
		Args:  cobra.NoArgs,
		RunE:  runLearnedExportCmd,
	}
	exportCmd.Flags().StringVarP(&exportFilePath, "output", "o", "", "output file (default: stdout)")

	cmd.AddCommand(listCmd, removeCmd, importCmd, exportCmd)
	return cmd
}

func runLearnedCmd(_ *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	program := tea.NewProgram(learnedui.NewModel(st), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run learned words TUI: %w", err)
	}
	return nil
}

func runLearnedListCmd(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	terms, err := st.ListLearned(context.Background(), learnedFilter)
	if err != nil {
		return fmt.Errorf("failed to load learned words: %w", err)
	}
	return stats.RenderLearned(cmd.OutOrStdout(), terms)
}

func runLearnedRemoveCmd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	removed, err := st.RemoveLearned(context.Background(), args...)
	if err != nil {
		return fmt.Errorf("failed to remove learned words: %w", err)
	}
	if removed < len(args) {
		logErrf("%d of %d terms were not learned\n", len(args)-removed, len(args))
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d learned words\n", removed)
	return err
}

func runLearnedImportCmd(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open learned list: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close %s: %v\n", path, cerr)
		}
	}()
	terms, err := store.DecodeLearnedJSON(f)
	if err != nil {
		return err
	}

	deckName := importDeck
	if deckName == "" {
		deckName = filepath.Base(path)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	if importReplace {
		if err := st.ReplaceLearned(ctx, deckName, terms); err != nil {
			return fmt.Errorf("failed to replace learned words: %w", err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Learned set replaced with %d words\n", len(terms))
		return err
	}
	added, err := st.MergeLearned(ctx, deckName, terms)
	if err != nil {
		return fmt.Errorf("failed to import learned words: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new learned words (%d already learned)\n", added, len(terms)-added)
	return err
}

func runLearnedExportCmd(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	terms, err := st.LearnedTerms(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load learned words: %w", err)
	}
	if exportFilePath == "" {
		return store.EncodeLearnedJSON(cmd.OutOrStdout(), terms)
	}
	f, err := os.Create(exportFilePath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", exportFilePath, err)
	}
	if err := store.EncodeLearnedJSON(f, terms); err != nil {
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close %s: %v\n", exportFilePath, cerr)
		}
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportFilePath, err)
	}
	logErrf("Wrote %d learned words to %s\n", len(terms), exportFilePath)
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show study stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsDeck, "deck", "", "deck file filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsTop, "top", 10, "number of most viewed terms")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsTop < 0 {
		return fmt.Errorf("--top must be >= 0")
	}
	deckFilter := statsDeck
	if deckFilter != "" {
		abs, err := filepath.Abs(deckFilter)
		if err != nil {
			return fmt.Errorf("failed to resolve deck path: %w", err)
		}
		deckFilter = abs
	}

	cfg := model.StatsConfig{
		Deck:  deckFilter,
		Since: sinceTime,
		Last:  statsLast,
		Top:   statsTop,
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	report, err := stats.BuildReport(context.Background(), st, cfg)
	if err != nil {
		return fmt.Errorf("failed to build stats: %w", err)
	}
	return stats.RenderReport(cmd.OutOrStdout(), report, time.Now())
}

func openStore() (*store.Store, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func applyStringFlag(cmd *cobra.Command, name string, target *string, value string) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func applyFloatFlag(cmd *cobra.Command, name string, target *float64, value float64) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func applyBoolFlag(cmd *cobra.Command, name string, target *bool, value bool) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# tuivoc configuration
# Uncomment a value to enable it. CLI flags override config values.
# A running session picks up changes when this file is saved.

[session]
# file = "~/vocab/words.tsv"  # Deck to open (default: last opened file)
# interval = %d               # Seconds between cards, 0 disables auto-advance
# pause-on-focus = true       # Pause while the terminal has focus

[appearance]
# word-color = %q       # Term color (#rgb, #rrggbb or ANSI number)
# font-color = %q       # Meaning color
# example-color = %q    # Example color
# show-example = true         # Show example sentences

[speech]
# command = "espeak-ng"       # Program and leading args (default: auto-detect)
# lang = %q               # Fallback language when the script is ambiguous
# rate = %.1f                 # Speaking rate multiplier
# auto = false                # Speak every new card
`,
		int(config.DefaultInterval/time.Second),
		config.DefaultWordColor,
		config.DefaultFontColor,
		config.DefaultExampleColor,
		config.DefaultSpeechLang,
		config.DefaultSpeechRate,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
