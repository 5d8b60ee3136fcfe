// Package cmd provides the CLI commands for wikindex.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wikindex/internal/config"
	"github.com/Aman-CERP/wikindex/internal/logging"
	"github.com/Aman-CERP/wikindex/internal/profiling"
	"github.com/Aman-CERP/wikindex/pkg/version"
)

// Global flags
var (
	configPath     string
	debugMode      bool
	logFile        string
	loggingCleanup func()
)

// Profiling flags
var (
	profiles       profiling.Options
	profileSession *profiling.Session
)

// NewRootCmd creates the root command for the wikindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wikindex",
		Short: "Full-text index and search for wiki content",
		Long: `wikindex keeps a full-text index of wiki pages, translations,
attachments and structured objects up to date, and answers searches
against the latest published view of that index.

Run 'wikindex rebuild' once to index existing content, then
'wikindex serve' to keep the index current and serve queries.`,
		Version:      version.Version,
		SilenceUsage: true,
	}

	cmd.SetVersionTemplate("wikindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: wikindex.yaml in the current directory)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (default: ~/.wikindex/logs/wikindex.log)")

	cmd.PersistentFlags().StringVar(&profiles.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profiles.Heap, "profile-mem", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&profiles.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startLoggingAndProfiling
	cmd.PersistentPostRunE = stopLoggingAndProfiling

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLoggingAndProfiling installs the process logger and starts any
// requested profiles. Log lines go to the rotated log file; stderr is only
// mirrored in debug mode so command output stays clean. Without --debug the
// level comes from server.log_level; a broken config is reported later by
// the command itself.
func startLoggingAndProfiling(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if debugMode {
		cfg = logging.DebugConfig()
	} else if loaded, err := loadConfig(); err == nil {
		cfg.Level = loaded.Server.LogLevel
	}
	if logFile != "" {
		cfg.FilePath = logFile
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Debug("debug_logging_enabled", slog.String("log_file", cfg.FilePath))
	}

	if profiles.Enabled() {
		profileSession, err = profiling.Start(profiles)
		if err != nil {
			return err
		}
	}
	return nil
}

func stopLoggingAndProfiling(_ *cobra.Command, _ []string) error {
	err := profileSession.Stop()
	profileSession = nil
	if err != nil {
		slog.Warn("profile_write_failed", slog.String("error", err.Error()))
	}

	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// loadConfig loads --config when given, otherwise the project config in the
// working directory.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadPath(configPath)
	}
	return config.Load(".")
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
