// Package cli provides the command-line interface for the folder renamer.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/folder-renamer/internal/app"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configPath string
	logLevel   string

	cfg         *common.Config
	logger      *slog.Logger
	application *app.App
	closeLog    = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "renamer",
	Short: "Classify, extract and rename the files of a folder",
	Long: `renamer lists the files of a folder into a job, reads their text, classifies
them against a library of example-anchored labels, extracts the label's fields
and renames the files with an undo log. Reports are written back into the folder.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		var err error
		cfg, err = common.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, closeLog = common.SetupLogger(cfg.Logging.File, common.ParseLevel(cfg.Logging.Level))
		slog.SetDefault(logger)
		logger.Debug("config loaded", "config", cfg.String())

		application, err = app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			application.Close()
		}
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	},
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (environment variables override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error")

	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(stageCommands()...)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(presetsCmd)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
