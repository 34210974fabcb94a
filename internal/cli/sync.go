package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"todosync/internal/app"
	"todosync/internal/due"
	"todosync/internal/report"
)

func newSyncCmd(root *rootOptions) *cobra.Command {
	var (
		dryRun bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create and refresh tracker tasks for the selected courses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			cfg, log, err := root.load()
			if err != nil {
				return err
			}

			env, err := app.Open(cfg, log)
			if err != nil {
				return err
			}
			defer env.Close()

			syncer, err := app.NewSyncerFromConfig(cfg, env, dryRun, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rep, err := syncer.Run(ctx)
			if err != nil {
				return err
			}

			norm, err := due.NewNormalizer(cfg.Sync.DisplayTimezone, cfg.Sync.AllDaySentinel)
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), output, rep, norm.Location())
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log tracker changes instead of sending them")
	cmd.Flags().StringVarP(&output, "output", "o", report.FormatText, "Report format: text, json or yaml")
	return cmd
}

func checkFormat(format string) error {
	switch format {
	case report.FormatText, report.FormatJSON, report.FormatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q, want text, json or yaml", format)
	}
}
