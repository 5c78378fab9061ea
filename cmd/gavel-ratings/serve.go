package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-gavel-ratings/infrastructure/httpapi"
	"github.com/ahrav/go-gavel-ratings/internal/logging"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the rating API over HTTP",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, optionalGenerator, func(cmd *cobra.Command, _ []string, a *app) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if a.cfg.Logging.Level != string(logging.DebugLevel) {
				gin.SetMode(gin.ReleaseMode)
			}

			router, err := httpapi.NewRouter(httpapi.Services{
				Driver:       a.driver,
				Consolidator: a.consolidator,
				Maintenance:  a.maintenance,
				Analyzer:     a.analyzer,
			},
				httpapi.WithLogger(logging.With("http")),
				httpapi.WithMetrics(a.metrics),
				httpapi.WithMetricsHandler(a.metrics.Handler()),
				httpapi.WithHealthCheck(a.ping),
			)
			if err != nil {
				return err
			}
			return httpapi.NewServer(a.cfg.Server, router, a.logger).Run(cmd.Context())
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overriding server.addr")
	return cmd
}

// ping checks that the database answers.
func (a *app) ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
