// Package run provides the long-running scheduler command.
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/pokerwatch/internal/api"
	"github.com/tphakala/pokerwatch/internal/app"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/orchestrator"
	"golang.org/x/sync/errgroup"
)

// Command creates the run command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		web    bool
		listen string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run scheduled collection, health checks and weekly summaries",
		Long: `Run the collection scheduler until interrupted. Collection cycles,
the daily health check and the weekly summary run at the times configured
under schedule. With --web the HTTP API and /metrics are served as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("web") {
				settings.WebServer.Enabled = web
			}
			if listen != "" {
				settings.WebServer.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings)
		},
	}

	cmd.Flags().BoolVar(&web, "web", viper.GetBool("webserver.enabled"), "Serve the HTTP API")
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP API listen address, overrides webserver.listen")

	return cmd
}

// Run wires the pipeline and runs the scheduler, plus the HTTP API when
// enabled, until ctx is cancelled or one of them fails.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("main")

	a, err := app.New(ctx, settings)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Orchestrator.RegisterSites(); err != nil {
		return err
	}

	scheduler, err := orchestrator.NewScheduler(settings, a.Orchestrator)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })

	if settings.WebServer.Enabled {
		server, err := api.New(settings,
			api.WithDataStore(a.Store),
			api.WithPipeline(a.Orchestrator),
			api.WithMetrics(a.Metrics))
		if err != nil {
			return err
		}
		g.Go(func() error { return server.Run(gctx) })
	}

	log.Info("pokerwatch started",
		logger.String("timezone", settings.Location().String()),
		logger.Bool("web", settings.WebServer.Enabled))

	err = g.Wait()
	log.Info("pokerwatch stopped")
	return err
}
