package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/api"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/logger"
	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/service"
)

func newHTTPDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Serve the synthesis API",
		Long: `httpd serves POST /api/v1/boards/synthesize and friends, plus /health and
/metrics. It shuts down gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := newCommandDeps()
			if err != nil {
				return err
			}
			defer func() { _ = deps.Logger.Sync() }()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			svc, err := service.Build(cmd.Context(), deps.Config, reg, deps.Logger)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := svc.Close(); closeErr != nil {
					deps.Logger.Warn("Close failed", logger.Error(closeErr))
				}
			}()

			router := api.NewRouter(svc, reg, deps.Config.App.Debug, deps.Logger)
			return api.NewServer(deps.Config.Server, router, deps.Logger).Run(cmd.Context())
		},
	}
}
