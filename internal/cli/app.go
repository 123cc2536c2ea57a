package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/NikhilSetiya/vanguard-reports/internal/assets"
	"github.com/NikhilSetiya/vanguard-reports/internal/database"
	"github.com/NikhilSetiya/vanguard-reports/internal/mailer"
	"github.com/NikhilSetiya/vanguard-reports/internal/pdf"
	"github.com/NikhilSetiya/vanguard-reports/internal/recipients"
	"github.com/NikhilSetiya/vanguard-reports/internal/render"
	"github.com/NikhilSetiya/vanguard-reports/internal/report"
	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
	"github.com/NikhilSetiya/vanguard-reports/pkg/logging"
	"github.com/NikhilSetiya/vanguard-reports/pkg/metrics"
	"github.com/NikhilSetiya/vanguard-reports/pkg/security"
	"github.com/NikhilSetiya/vanguard-reports/pkg/tracing"
)

// app holds the wired components shared by the commands
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	zap    *zap.Logger

	db         *database.DB
	store      *database.RepositoryAdapter
	resolver   *assets.Resolver
	printer    pdf.Printer
	renderer   *report.Renderer
	exporter   *report.Exporter
	dispatcher *mailer.Dispatcher
	recipients recipients.Store
	metrics    *metrics.Metrics
	tracer     *tracing.TracingService

	closers []func() error
}

// newApp opens the store, migrating it, and wires the report and email
// pipelines
func newApp(cfg *config.Config) (*app, error) {
	logCfg := &logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "vanguard",
		Version:     buildVersion,
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logging.SetGlobalLogger(logger)

	zl, err := logging.NewZapLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, zap: zl}
	a.closers = append(a.closers, func() error {
		_ = zl.Sync()
		return nil
	})

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.metrics = metrics.NewMetrics(&metrics.Config{Namespace: cfg.Metrics.Namespace, Enabled: true, Registry: reg})
	}

	a.tracer = tracing.Noop()
	if cfg.Tracing.Enabled {
		tracer, err := tracing.NewTracingService(&tracing.Config{
			ServiceName:    "vanguard",
			ServiceVersion: buildVersion,
			Environment:    "desktop",
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SamplingRate:   cfg.Tracing.SampleRate,
			Enabled:        true,
		})
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			a.tracer = tracer
			a.closers = append(a.closers, func() error { return tracer.Shutdown(context.Background()) })
		}
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.Instrument(a.metrics, a.tracer)
	a.db = db
	a.closers = append(a.closers, db.Close)

	var encryption *security.EncryptionService
	if cfg.Security.SecretKey != "" {
		encryption = security.NewEncryptionService(cfg.Security.SecretKey)
	}
	store, err := database.Open(db, database.Options{
		Encryption:  encryption,
		DedupWindow: cfg.Email.DedupWindow,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	a.store = store

	a.resolver = assets.NewResolver(assets.Config{
		Scheme:          cfg.Report.AssetScheme,
		InlineThreshold: cfg.Report.InlineImageThreshold,
	})
	a.printer = pdf.New(cfg.PDF, a.resolver, zl)

	templates := report.NewTemplateManager(render.NewHTMLRenderer(a.resolver), cfg.Report.DateFormat)
	a.renderer = report.NewRenderer(templates, render.NewDOCXRenderer(a.resolver), a.printer, a.metrics, a.tracer)
	a.exporter = report.NewExporter(report.NewComposer(store), a.renderer, logger)

	transport := mailer.NewSMTPTransport(cfg.Email, zl)
	a.dispatcher = mailer.NewDispatcher(store, a.renderer, a.resolver, transport, cfg.Email, a.metrics, a.tracer, zl)

	recent, closeRecent := recipients.New(cfg, zl)
	a.recipients = recent
	a.closers = append(a.closers, closeRecent)

	return a, nil
}

// remember records a successful send in the recent recipients list
func (a *app) remember(ctx context.Context, result *mailer.Result) {
	if result == nil || !result.OK || result.Recipient == "" {
		return
	}
	if err := a.recipients.Remember(ctx, result.Recipient); err != nil {
		a.logger.Warn("Failed to remember recipient", "recipient", result.Recipient, "error", err)
	}
}

// Close releases everything in reverse order of acquisition
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
