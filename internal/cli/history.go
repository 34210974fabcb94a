package cli

import (
	"github.com/spf13/cobra"

	"todosync/internal/due"
	"todosync/internal/report"
	"todosync/internal/storage/sqlite"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		limit  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			store, err := sqlite.Open(cfg.History.Path, log)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			norm, err := due.NewNormalizer(cfg.Sync.DisplayTimezone, cfg.Sync.AllDaySentinel)
			if err != nil {
				return err
			}
			return report.WriteHistory(cmd.OutOrStdout(), output, runs, norm.Location())
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show, 0 for all")
	cmd.Flags().StringVarP(&output, "output", "o", report.FormatText, "Output format: text, json or yaml")
	return cmd
}
