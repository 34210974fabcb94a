package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"todosync/internal/credentials"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API tokens stored in the OS keychain",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:       "set ACCOUNT [TOKEN]",
			Short:     "Store a token for canvas or tracker; reads stdin when TOKEN is omitted",
			Args:      cobra.RangeArgs(1, 2),
			ValidArgs: []string{credentials.AccountCanvas, credentials.AccountTracker},
			RunE: func(cmd *cobra.Command, args []string) error {
				token := ""
				if len(args) == 2 {
					token = args[1]
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "Paste the %s token: ", args[0])
					line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
					if err != nil && line == "" {
						return fmt.Errorf("read token: %w", err)
					}
					token = line
				}
				if err := credentials.Store(args[0], strings.TrimSpace(token)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s token\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:       "delete ACCOUNT",
			Short:     "Remove the stored token of canvas or tracker",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{credentials.AccountCanvas, credentials.AccountTracker},
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := credentials.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s token\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
