// Package cli implements the todosync command line.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"todosync/internal/config"
	"todosync/internal/logger"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	verbose    bool
}

// Execute runs the root command.
func Execute(version string) error {
	cmd := newRootCmd(version)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "todosync",
		Short: "Sync Canvas assignments into a task tracker",
		Long: `todosync keeps one tracker task per upcoming Canvas assignment.

It creates tasks for new assignments and refreshes the description of
existing ones when a due date moves. Tasks are never deleted and their due
dates are never overwritten.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("TODOSYNC_CONFIG"), "Config file (default: config.yaml in ., ./config or ~/.todosync)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newSyncCmd(opts),
		newCoursesCmd(opts),
		newServeCmd(opts),
		newAuthCmd(),
		newHistoryCmd(opts),
		newInitCmd(opts),
	)
	return cmd
}

// load reads and validates the configuration and builds the logger it
// describes.
func (o *rootOptions) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid config %s: %w", cfg.File(), err)
	}
	level := cfg.Logging.Level
	if o.verbose {
		level = "debug"
	}
	return cfg, logger.New(level, cfg.Logging.Pretty, cfg.Logging.NoColor), nil
}
