package cmd

import (
	"fmt"
	"time"

	"github.com/ilhicas/openstack-usage-center/internal/cli"
	"github.com/ilhicas/openstack-usage-center/internal/reports"
	"github.com/ilhicas/openstack-usage-center/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var shutdownTimeout time.Duration

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve usage reports and instance drill-downs over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServer,
	}

	serveCmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Grace period for in-flight requests on shutdown")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServer(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	clients, err := cli.Connect(ctx, cfg, true)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	generator, err := cli.NewGenerator(ctx, viper.GetViper(), cfg, clients, reports.WithMetrics(reports.NewMetrics(registry)))
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	api := server.NewWebAPI(logger, server.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: shutdownTimeout,
		Dependencies: server.Dependencies{
			Reports:   generator,
			Instances: cli.NewCompute(clients),
			Gatherer:  registry,
			LogLength: cfg.OpenStack.LogLength,
		},
	})
	return api.Start()
}
