// Package main provides the CLI entrypoint for typespeed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/typespeed/internal/config"
	"github.com/verte-zerg/typespeed/internal/model"
	"github.com/verte-zerg/typespeed/internal/scorer"
	"github.com/verte-zerg/typespeed/internal/stats"
	"github.com/verte-zerg/typespeed/internal/statsui"
	"github.com/verte-zerg/typespeed/internal/store"
	"github.com/verte-zerg/typespeed/internal/texts"
	"github.com/verte-zerg/typespeed/internal/tui"
	"github.com/verte-zerg/typespeed/pkg/logger"
)

const (
	defaultMode     = "char"
	defaultBackend  = store.BackendJSON
	defaultLogLevel = "warn"
)

var (
	testLang      string
	testMode      string
	testBackend   string
	testStorePath string
	testTexts     string
	testUser      string
	testWordList  string
	testWords     int
	testCaps      float64
	testPunct     float64
	logLevel      string

	resultsUser        string
	resultsExport      string
	resultsLeaderboard bool

	resetUser string

	statsUser   string
	statsWindow int

	textsLang string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "typespeed",
		Short:         "Typing speed test",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runTestCmd,
	}

	rootCmd.PersistentFlags().StringVar(&testBackend, "backend", defaultBackend,
		"result store: "+strings.Join(store.Backends, ", "))
	rootCmd.PersistentFlags().StringVar(&testStorePath, "store-path", "", "result store location (default: per backend)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level")
	addTestFlags(rootCmd)

	rootCmd.AddCommand(newTestCmd())
	rootCmd.AddCommand(newResultsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newTextsCmd())

	return rootCmd
}

func addTestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&testLang, "lang", texts.DefaultLang, "text language")
	cmd.Flags().StringVar(&testMode, "mode", defaultMode, "accuracy mode: word or char")
	cmd.Flags().StringVar(&testTexts, "texts", "", "file with one text per line")
	cmd.Flags().StringVar(&testUser, "user", "", "owner recorded with each result")
	cmd.Flags().StringVar(&testWordList, "wordlist", "", "word list (one per line) to compose random texts from")
	cmd.Flags().IntVar(&testWords, "words", texts.DefaultWordCount, "words per composed text")
	cmd.Flags().Float64Var(&testCaps, "caps", 0, "probability of a capitalized word (0-1)")
	cmd.Flags().Float64Var(&testPunct, "punct", 0, "probability of trailing punctuation per word (0-1)")
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run a typing test (default command)",
		Args:  cobra.NoArgs,
		RunE:  runTestCmd,
	}
	addTestFlags(cmd)
	return cmd
}

// loadTestConfig merges the TOML config file into flags the user did not set.
func loadTestConfig(cmd *cobra.Command) (model.TestConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.TestConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "lang", &testLang, fileCfg.Test.Lang)
	applyStringConfig(cmd, "mode", &testMode, fileCfg.Test.Mode)
	applyStringConfig(cmd, "backend", &testBackend, fileCfg.Test.Backend)
	applyStringConfig(cmd, "store-path", &testStorePath, fileCfg.Test.StorePath)
	applyStringConfig(cmd, "texts", &testTexts, fileCfg.Test.Texts)
	applyStringConfig(cmd, "user", &testUser, fileCfg.Test.User)
	applyStringConfig(cmd, "wordlist", &testWordList, fileCfg.Test.Wordlist)
	applyIntConfig(cmd, "words", &testWords, fileCfg.Test.Words)
	applyFloatConfig(cmd, "caps", &testCaps, fileCfg.Test.Caps)
	applyFloatConfig(cmd, "punct", &testPunct, fileCfg.Test.Punct)

	cfg := model.TestConfig{
		Lang:      testLang,
		Mode:      testMode,
		Backend:   strings.ToLower(strings.TrimSpace(testBackend)),
		StorePath: testStorePath,
		TextsPath: testTexts,
		User:      strings.TrimSpace(testUser),
		WordList:  testWordList,
		Words:     testWords,
		CapsPct:   testCaps,
		PunctPct:  testPunct,
	}
	if cfg.StorePath == "" {
		cfg.StorePath = config.DefaultStorePath(cfg.Backend)
	}
	return cfg, nil
}

func openStore(cfg model.TestConfig) (store.ResultStore, error) {
	st, err := store.Open(cfg.Backend, cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}
	return st, nil
}

func closeStore(st store.ResultStore) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close result store: %v\n", cerr)
	}
}

func loadCatalog(lang, path string) (*texts.Catalog, error) {
	catalog := texts.NewCatalog()
	if path == "" {
		return catalog, nil
	}
	list, err := texts.LoadFile(path)
	if err != nil {
		return nil, err
	}
	catalog.Set(lang, list)
	return catalog, nil
}

func loadTestCatalog(cfg model.TestConfig) (*texts.Catalog, error) {
	catalog, err := loadCatalog(cfg.Lang, cfg.TextsPath)
	if err != nil {
		return nil, err
	}
	if cfg.WordList == "" {
		return catalog, nil
	}
	words, err := texts.LoadWords(cfg.WordList, cfg.Lang)
	if err != nil {
		return nil, err
	}
	opts := texts.WordOptions{
		Count:    cfg.Words,
		CapsPct:  cfg.CapsPct,
		PunctPct: cfg.PunctPct,
		PunctSet: texts.DefaultPunct,
	}
	if err := catalog.SetWords(cfg.Lang, words, opts); err != nil {
		return nil, fmt.Errorf("invalid word list settings: %w", err)
	}
	return catalog, nil
}

func runTestCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadTestConfig(cmd)
	if err != nil {
		return err
	}
	mode, err := scorer.ParseMode(cfg.Mode)
	if err != nil {
		return fmt.Errorf("invalid --mode: %w", err)
	}
	catalog, err := loadTestCatalog(cfg)
	if err != nil {
		return err
	}
	log := logger.Init(logger.Options{Level: logLevel, Pretty: true})

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	m, err := tui.NewModel(tui.Options{
		Store:   st,
		Catalog: catalog,
		Lang:    cfg.Lang,
		Mode:    mode,
		User:    cfg.User,
		Logger:  log,
	})
	if err != nil {
		return err
	}
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show stored results",
		Args:  cobra.NoArgs,
		RunE:  runResultsCmd,
	}
	cmd.Flags().StringVar(&resultsUser, "user", "", "only show results of this user")
	cmd.Flags().StringVar(&resultsExport, "export", "", "write results to an .xlsx file instead of printing")
	cmd.Flags().BoolVar(&resultsLeaderboard, "leaderboard", false, "show per-user totals")
	return cmd
}

func runResultsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadTestConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	results, err := st.List(commandContext(cmd), strings.TrimSpace(resultsUser))
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}

	if resultsExport != "" {
		if err := stats.ExportXLSX(resultsExport, results); err != nil {
			return err
		}
		logErrf("Wrote %d results to %s\n", len(results), resultsExport)
		return nil
	}

	out := cmd.OutOrStdout()
	if resultsLeaderboard {
		return stats.RenderLeaderboard(out, stats.Leaderboard(results))
	}
	if err := stats.RenderSummary(out, results); err != nil {
		return err
	}
	return stats.RenderHistory(out, results)
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Browse results interactively",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsUser, "user", "", "only show results of this user")
	cmd.Flags().IntVar(&statsWindow, "window", statsui.DefaultWindow, "moving average window of the WPM trend")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if statsWindow <= 0 {
		return fmt.Errorf("--window must be > 0")
	}
	cfg, err := loadTestConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	m := statsui.NewModel(statsui.Options{Store: st, User: statsUser, Window: statsWindow})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete stored results",
		Args:  cobra.NoArgs,
		RunE:  runResetCmd,
	}
	cmd.Flags().StringVar(&resetUser, "user", "", "only delete results of this user")
	return cmd
}

func runResetCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadTestConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	n, err := st.Reset(commandContext(cmd), strings.TrimSpace(resetUser))
	if err != nil {
		return fmt.Errorf("failed to reset results: %w", err)
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d results\n", n); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
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
	if _, err := config.WriteDefault(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newTextsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "texts",
		Short: "List text languages, or the texts of one language",
		Args:  cobra.NoArgs,
		RunE:  runTextsCmd,
	}
	cmd.Flags().StringVar(&textsLang, "lang", "", "print the texts of this language")
	return cmd
}

func runTextsCmd(cmd *cobra.Command, _ []string) error {
	catalog := texts.NewCatalog()
	lines := catalog.Langs()
	if lang := strings.TrimSpace(textsLang); lang != "" {
		lines = catalog.Texts(lang)
		if len(lines) == 0 {
			return fmt.Errorf("%w: %q (available: %s)", texts.ErrUnknownLang, lang, strings.Join(catalog.Langs(), ", "))
		}
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
