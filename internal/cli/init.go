package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"todosync/internal/config"
)

func newInitCmd(root *rootOptions) *cobra.Command {
	var (
		canvasURL string
		backend   string
		timezone  string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.configPath
			if path == "" {
				path = "config.yaml"
			}
			overrides := map[string]any{}
			if canvasURL != "" {
				overrides["canvas.base_url"] = canvasURL
			}
			if backend != "" {
				if backend != config.BackendTodoist && backend != config.BackendLocal {
					return fmt.Errorf("unknown backend %q, want %s or %s", backend, config.BackendTodoist, config.BackendLocal)
				}
				overrides["tracker.backend"] = backend
			}
			if timezone != "" {
				overrides["sync.display_timezone"] = timezone
			}
			if err := config.WriteDefault(path, overrides); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", path)
			fmt.Fprintln(out, "Next: `todosync auth set canvas`, `todosync auth set tracker`, then `todosync courses select`.")
			return nil
		},
	}
	cmd.Flags().StringVar(&canvasURL, "canvas-url", "", "Canvas base URL, e.g. https://school.instructure.com")
	cmd.Flags().StringVar(&backend, "backend", "", "Tracker backend: todoist or local")
	cmd.Flags().StringVar(&timezone, "timezone", "", "Display time zone for due dates")
	return cmd
}
