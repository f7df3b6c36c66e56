package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dqcheck-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/dqcheck-cli/internal/config"
	"github.com/KaramelBytes/dqcheck-cli/internal/logging"
	"github.com/KaramelBytes/dqcheck-cli/internal/store"
	"github.com/KaramelBytes/dqcheck-cli/internal/utils"
)

var (
	cfgFile   string
	debug     bool
	logFormat string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "dqcheck",
	Short: "dqcheck: profile datasets and find data quality problems",
	Long: `dqcheck profiles CSV, TSV, XLSX and SQLite data, scores its quality, flags numeric
outliers, finds near-duplicate rows, suggests validation rules and keeps a scan history.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = zap.L().Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRunE = setup
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.dqcheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console|json (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds for LLM calls (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
}

// setup loads .env, the config file and the logger before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to read .env: %v\n", err)
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	format := cfg.LogFormat
	if logFormat != "" {
		format = logFormat
	}
	log, err := logging.New(debug, format)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(log)
	zap.L().Debug("config loaded", zap.String("command", cmd.CommandPath()), zap.String("history_db", cfg.HistoryDB))
	return nil
}

// openStore opens the scan history database named in the config.
func openStore() (*store.Store, error) {
	st, err := store.Open(utils.ExpandHome(cfg.HistoryDB))
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return st, nil
}

// runtimeFromConfig builds the LLM runtime for provider (default from config).
func runtimeFromConfig(provider string) (ai.Runtime, error) {
	if provider == "" {
		provider = cfg.DefaultProvider
	}
	return ai.NewRuntime(provider, ai.RuntimeConfig{
		HTTPTimeout: secondsToDuration(cfg.HTTPTimeoutSec),
		RetryMax:    cfg.RetryMaxAttempts,
		BaseDelay:   msToDuration(cfg.RetryBaseDelayMs),
		MaxDelay:    msToDuration(cfg.RetryMaxDelayMs),
		APIKey:      cfg.APIKey,
		Host:        cfg.OllamaHost,
	})
}
