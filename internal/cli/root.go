// Package cli provides the command-line interface for finchat.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/raphaelgruber/finchat/internal/auth"
	"github.com/raphaelgruber/finchat/internal/client"
	"github.com/raphaelgruber/finchat/internal/config"
	"github.com/raphaelgruber/finchat/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool
	apiURL  string

	// Global state, initialized in PersistentPreRunE
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	creds      *auth.Store
	collector  *metrics.Collector
	apiClient  *client.Client
	navigator  = &sessionNavigator{}
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "finchat",
	Short: "Terminal client for the finchat financial assistant",
	Long: `Finchat talks to your financial assistant from the terminal.

Log in, link your bank accounts through the aggregator's hosted flow and chat
with the assistant about your finances.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if apiURL != "" {
			cfg.APIURL = apiURL
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		// The TUI owns the terminal, so it only logs to file.
		var console io.Writer = os.Stderr
		if cmd.Name() == "chat" {
			console = nil
		}
		logger, logCleanup = config.SetupLogger(cfg, console)
		slog.SetDefault(logger)

		var err error
		creds, err = auth.NewStore(cfg.CredentialsFile)
		if err != nil {
			return fmt.Errorf("load credentials: %w", err)
		}

		collector = metrics.NewCollector()
		apiClient = client.New(client.Options{
			BaseURL:     cfg.APIURL,
			Timeout:     cfg.ClientTimeout,
			Credentials: creds,
			Navigator:   navigator,
			Logger:      logger,
			Metrics:     collector,
		})

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if collector != nil && verbose {
			printStats(collector.Snapshot())
		}
		if logCleanup != nil {
			if err := logCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (overrides FINCHAT_API_URL)")

	// Add subcommands
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(healthCmd)
}

// printStats writes per-operation request timings to stderr.
func printStats(snap metrics.Snapshot) {
	if len(snap.Operations) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "\n%-12s %6s %6s %10s %10s\n", "OPERATION", "COUNT", "FAILED", "AVG(ms)", "MAX(ms)")
	for _, op := range snap.Operations {
		fmt.Fprintf(os.Stderr, "%-12s %6d %6d %10.1f %10d\n", op.Name, op.Count, op.Failures, op.AvgTimeMs, op.MaxTimeMs)
	}
}

// requireLogin fails fast for commands that need credentials.
func requireLogin() error {
	if !creds.IsAuthenticated() {
		return fmt.Errorf("not logged in (run 'finchat login')")
	}
	return nil
}

// userError turns a client error into the message shown to the user.
func userError(action string, err error) error {
	return fmt.Errorf("%s: %s", action, client.ErrorMessage(err))
}
