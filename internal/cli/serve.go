package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NikhilSetiya/vanguard-reports/internal/api"
	"github.com/NikhilSetiya/vanguard-reports/internal/recipients"
	"github.com/NikhilSetiya/vanguard-reports/pkg/health"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local API for the desktop shell",
	Long: `Serve exposes report generation, preview, email and settings over HTTP
on the loopback address from the server config, until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withApp(func(a *app) error {
			return serve(ctx, a)
		})
	},
}

func serve(ctx context.Context, a *app) error {
	router := api.NewRouter(api.Dependencies{
		Config:     a.cfg,
		Store:      a.store,
		Exporter:   a.exporter,
		Dispatcher: a.dispatcher,
		Recipients: a.recipients,
		Health:     newHealthService(a),
		Metrics:    a.metrics,
		Tracer:     a.tracer,
		Logger:     a.logger,
	})

	return api.NewServer(a.cfg.Server, router, a.logger).Run(ctx)
}

func newHealthService(a *app) *health.Service {
	s := health.NewService(a.logger, &health.Config{
		Timeout:  5 * time.Second,
		Metadata: map[string]string{"version": buildVersion},
	})
	s.Register("database", health.DatabaseCheck(a.db))
	s.Register("pdf", health.PrinterCheck(a.printer))
	s.Register("exports", health.DirectoryCheck(a.cfg.Report.ExportDir))
	if rs, ok := a.recipients.(*recipients.RedisStore); ok {
		s.Register("redis", health.RedisCheck(rs))
	}
	return s
}
