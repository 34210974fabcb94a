package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"todosync/internal/credentials"
	"todosync/internal/server"
	"todosync/internal/storage/sqlite"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local tracker over a Todoist-compatible API",
		Long: `serve exposes the local tracker database over HTTP under /api/v1, using
the same routes as Todoist. Point tracker.base_url at it to sync through
HTTP. When a tracker token is configured it is required as a bearer token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Address
			}
			token, err := credentials.Resolve(credentials.AccountTracker, cfg.Tracker.Token)
			if err != nil {
				log.Warn().Err(err).Msg("keychain unavailable, serving without a token")
			}

			store, err := sqlite.Open(cfg.Tracker.DBPath, log)
			if err != nil {
				return err
			}
			defer store.Close()

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.New(store, log, token).Engine(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Str("db", cfg.Tracker.DBPath).Bool("auth", token != "").Msg("starting server")
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("failed to shutdown server")
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default: server.address)")
	return cmd
}
