package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/podushkina/schedmon/internal/api"
	"github.com/podushkina/schedmon/internal/task"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the gallery and submissions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(nil)
			if err != nil {
				return err
			}
			if port == "" {
				port = a.cfg.Server.Port
			}
			log := a.logger

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := a.manager.Connect(runCtx, task.DefaultSort()); err != nil {
				log.Warn().Err(err).Msg("scheduler not reachable, serving anyway")
			}
			go a.manager.AutoRefresh(runCtx, a.cfg.SystemRefreshInterval())

			server := &http.Server{
				Addr:         ":" + port,
				Handler:      api.NewRouter(api.NewHandler(a.manager, a.board), log),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("port", port).Str("scheduler", a.manager.SchedulerURL()).Msg("server starting")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-runCtx.Done():
				log.Info().Msg("shutdown signal received")
			}

			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("server shutdown")
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (default from config)")
	return cmd
}
