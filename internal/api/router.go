package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NikhilSetiya/vanguard-reports/internal/mailer"
	"github.com/NikhilSetiya/vanguard-reports/internal/recipients"
	"github.com/NikhilSetiya/vanguard-reports/internal/report"
	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
	"github.com/NikhilSetiya/vanguard-reports/pkg/health"
	"github.com/NikhilSetiya/vanguard-reports/pkg/logging"
	"github.com/NikhilSetiya/vanguard-reports/pkg/metrics"
	"github.com/NikhilSetiya/vanguard-reports/pkg/security"
	"github.com/NikhilSetiya/vanguard-reports/pkg/tracing"
)

// maxBodyBytes bounds request bodies; notes and settings are small
const maxBodyBytes = 1 << 20

// Store is the persistence used by the API handlers
type Store interface {
	HistoryStore
	SettingsStore
}

// Dependencies holds everything the router wires into handlers
type Dependencies struct {
	Config     *config.Config
	Store      Store
	Exporter   *report.Exporter
	Dispatcher *mailer.Dispatcher
	Recipients recipients.Store
	Health     *health.Service
	Metrics    *metrics.Metrics
	Tracer     *tracing.TracingService
	Logger     *logging.Logger
}

// NewRouter creates and configures the loopback API router
func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	headers := security.DefaultHeadersConfig(cfg.Server.AllowedOrigins)
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(deps.Logger))
	router.Use(ErrorHandlingMiddleware())
	router.Use(security.CORSMiddleware(headers))
	router.Use(security.SecurityHeadersMiddleware(headers))
	router.Use(security.RequestSizeMiddleware(maxBodyBytes, ErrorResponseFromError))
	router.Use(deps.Metrics.PrometheusMiddleware())
	if deps.Tracer != nil {
		router.Use(deps.Tracer.TracingMiddleware())
	}

	if deps.Health != nil {
		router.GET("/health", deps.Health.Handler())
		router.GET("/health/live", deps.Health.LivenessHandler())
		router.GET("/health/ready", deps.Health.ReadinessHandler())
	}
	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/api/v1", func(c *gin.Context) {
		SuccessResponse(c, map[string]interface{}{
			"name":   "Vanguard Reports API",
			"status": "ok",
		})
	})

	reports := NewReportHandler(deps.Exporter, cfg.Report.ExportDir)
	email := NewEmailHandler(deps.Dispatcher, deps.Store, deps.Recipients, deps.Logger)
	settings := NewSettingsHandler(deps.Store)

	limiter := security.NewRateLimiter(security.RateLimitConfig{
		RPS:     cfg.Server.SendRateLimit,
		Burst:   cfg.Server.SendRateBurst,
		IdleTTL: 10 * time.Minute,
	})

	v1 := router.Group("/api/v1")
	{
		projects := v1.Group("/projects/:id")
		{
			projects.POST("/reports", reports.Generate)
			projects.GET("/preview", reports.Preview)
		}

		mail := v1.Group("/email")
		{
			send := mail.Group("")
			send.Use(limiter.RateLimitMiddleware(ErrorResponseFromError))
			{
				send.POST("/issue", email.SendIssue)
				send.POST("/project", email.SendProject)
			}
			mail.GET("/history", email.History)
			mail.GET("/recipients", email.Recipients)
		}

		smtp := v1.Group("/settings/smtp")
		{
			smtp.GET("", settings.GetSMTP)
			smtp.PUT("", settings.SaveSMTP)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		NotFoundResponse(c, "Endpoint not found")
	})

	return router
}
