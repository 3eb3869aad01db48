package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/adcatalog/internal/api"
	"github.com/JakeFAU/adcatalog/internal/metrics"
)

func newServeCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only view of the catalog over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cat := env.app.Catalog()
			metrics.SetCatalogEntries("ads", len(cat.Ads()))
			metrics.SetCatalogEntries("content", len(cat.Content()))

			var events api.EventLister
			if audit := env.app.Audit(); audit != nil {
				events = audit
			}
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", env.cfg.Server.Port),
				Handler:           api.NewServer(cat, env.app.Store(), events, env.logger).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				env.logger.Info("http server started", zap.Int("port", env.cfg.Server.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			env.logger.Info("shutdown initiated")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			env.logger.Info("shutdown complete")
			return nil
		},
	}
}
