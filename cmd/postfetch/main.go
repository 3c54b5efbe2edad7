package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/young1lin/postfetch/internal/config"
	"github.com/young1lin/postfetch/internal/provider"
	"github.com/young1lin/postfetch/pkg/logger"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
)

var (
	cfgFile      string
	providerName string
	timeoutSecs  int
	useArchive   bool
	logLevel     string

	cfg *config.Config
)

// errReported marks failures whose diagnostic was already written to stderr
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:   "postfetch <post-url> [model]",
	Short: "Fetch the content of an X.com post through a search-enabled LLM",
	Long: `Fetches the content of an X.com / twitter.com post by asking a
search-augmented chat-completion API (xAI Grok or OpenRouter) to read it.

The extracted text is written to stdout, followed by citations when the
provider returns any. Diagnostics go to stderr.`,
	Example: `  postfetch https://x.com/user/status/1234567890
  postfetch -P xai https://x.com/user/status/1234567890 grok-4-fast-non-reasoning
  postfetch history --limit 5`,
	Args:              cobra.RangeArgs(1, 2),
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		opts := fetchOptions{
			Provider: providerName,
			Archive:  useArchive || cfg.Archive.Enabled,
		}
		if len(args) > 1 {
			opts.Model = args[1]
		}

		return runFetch(cmd.Context(), cfg, opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (built %s)", Version, BuildDate)
	rootCmd.SilenceErrors = true

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./postfetch.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.Flags().StringVarP(&providerName, "provider", "P", "", "provider: "+strings.Join(provider.Names(), ", ")+" (overrides config)")
	rootCmd.Flags().IntVarP(&timeoutSecs, "timeout", "t", 0, "request timeout in seconds (overrides config)")
	rootCmd.Flags().BoolVar(&useArchive, "archive", false, "record this fetch in the local archive")

	rootCmd.AddCommand(historyCmd, showCmd)
}

// setup loads configuration and the logger once per process
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override config with command line flags
	if providerName == "" {
		providerName = loaded.Provider
	}
	if timeoutSecs > 0 {
		loaded.Timeout = timeoutSecs
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}

	if err := logger.Init(loaded.Logging.Level, loaded.Logging.Format); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Debug("configuration loaded",
		zap.String("version", Version),
		zap.String("provider", providerName),
		zap.Int("timeout", loaded.Timeout),
		zap.Bool("archive", loaded.Archive.Enabled),
	)

	cfg = loaded
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
