// Package health reports whether the collaborators of the report service are
// usable: the store, the recent-recipients cache, the PDF printer and the
// export directory.
package health

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NikhilSetiya/vanguard-reports/internal/database"
	"github.com/NikhilSetiya/vanguard-reports/internal/pdf"
	"github.com/NikhilSetiya/vanguard-reports/internal/recipients"
	"github.com/NikhilSetiya/vanguard-reports/pkg/logging"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check is the outcome of one named check
type Check struct {
	Name      string            `json:"name"`
	Status    Status            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Duration  time.Duration     `json:"duration"`
	Checks    map[string]*Check `json:"checks"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Result is what a CheckFunc reports. A non-nil Err with an empty Status
// means unhealthy.
type Result struct {
	Status   Status
	Message  string
	Err      error
	Metadata map[string]string
}

// CheckFunc inspects one collaborator
type CheckFunc func(ctx context.Context) Result

// Config holds health check configuration
type Config struct {
	Timeout  time.Duration     `json:"timeout"`
	Metadata map[string]string `json:"metadata"`
}

// Service runs the registered checks
type Service struct {
	mu       sync.RWMutex
	checks   map[string]CheckFunc
	logger   *logging.Logger
	metadata map[string]string
	timeout  time.Duration
}

// NewService creates a service. A nil config gives a five second timeout.
func NewService(logger *logging.Logger, config *Config) *Service {
	if config == nil {
		config = &Config{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Service{
		checks:   make(map[string]CheckFunc),
		logger:   logger,
		metadata: config.Metadata,
		timeout:  config.Timeout,
	}
}

// Register adds or replaces the check called name
func (s *Service) Register(name string, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = fn
}

// CheckHealth runs every registered check concurrently. Any unhealthy check
// makes the whole service unhealthy; degraded checks only degrade it.
func (s *Service) CheckHealth(ctx context.Context) *HealthResponse {
	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.RLock()
	checks := make(map[string]*Check, len(s.checks))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, fn := range s.checks {
		wg.Add(1)
		go func(name string, fn CheckFunc) {
			defer wg.Done()
			check := run(ctx, name, fn)
			mu.Lock()
			checks[name] = check
			mu.Unlock()
		}(name, fn)
	}
	s.mu.RUnlock()
	wg.Wait()

	overall := StatusHealthy
	for _, check := range checks {
		switch {
		case check.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case check.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}
	if overall != StatusHealthy {
		s.logger.Warn("Health check not healthy", "status", overall, "checks", len(checks))
	}

	return &HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Checks:    checks,
		Metadata:  s.metadata,
	}
}

func run(ctx context.Context, name string, fn CheckFunc) *Check {
	start := time.Now()
	res := fn(ctx)

	check := &Check{
		Name:      name,
		Status:    res.Status,
		Message:   res.Message,
		Timestamp: start,
		Duration:  time.Since(start),
		Metadata:  res.Metadata,
	}
	if res.Err != nil {
		check.Error = res.Err.Error()
		if check.Status == "" {
			check.Status = StatusUnhealthy
		}
	}
	if check.Status == "" {
		check.Status = StatusHealthy
	}
	return check
}

// Handler serves the full report; only an unhealthy service answers 503
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := s.CheckHealth(c.Request.Context())
		c.JSON(statusCode(health.Status), health)
	}
}

// ReadinessHandler serves the overall status without the per-check detail
func (s *Service) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := s.CheckHealth(c.Request.Context())
		c.JSON(statusCode(health.Status), gin.H{
			"status":    health.Status,
			"timestamp": health.Timestamp,
			"ready":     health.Status != StatusUnhealthy,
		})
	}
}

// LivenessHandler answers as long as the process serves requests
func (s *Service) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive", "timestamp": time.Now()})
	}
}

func statusCode(status Status) int {
	if status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// DatabaseCheck pings the store. A pool with more than one connection is
// degraded once 80% of it is in use.
func DatabaseCheck(db *database.DB) CheckFunc {
	return func(ctx context.Context) Result {
		if db == nil {
			return Result{Status: StatusUnhealthy, Message: "database is not configured"}
		}
		if err := db.Health(ctx); err != nil {
			return Result{Err: err}
		}

		stats := db.Stats()
		res := Result{
			Message: "database is healthy",
			Metadata: map[string]string{
				"driver":           db.DriverName(),
				"open_connections": strconv.Itoa(stats.OpenConnections),
				"in_use":           strconv.Itoa(stats.InUse),
			},
		}
		if stats.MaxOpenConnections > 1 && stats.InUse*5 > stats.MaxOpenConnections*4 {
			res.Status = StatusDegraded
			res.Message = "database connection pool is running low"
		}
		return res
	}
}

// RedisCheck pings the recent-recipients cache. Recent recipients are a
// convenience, so an unreachable Redis only degrades the service.
func RedisCheck(store *recipients.RedisStore) CheckFunc {
	return func(ctx context.Context) Result {
		if store == nil {
			return Result{Status: StatusDegraded, Message: "redis is not configured"}
		}
		if err := store.Ping(ctx); err != nil {
			return Result{Status: StatusDegraded, Err: err}
		}
		stats := store.PoolStats()
		return Result{
			Message: "redis is healthy",
			Metadata: map[string]string{
				"total_connections": strconv.FormatUint(uint64(stats.TotalConns), 10),
				"idle_connections":  strconv.FormatUint(uint64(stats.IdleConns), 10),
			},
		}
	}
}

// PrinterCheck reports which PDF printer is active. The built-in layout
// works without a browser, so it is degraded rather than unhealthy.
func PrinterCheck(printer pdf.Printer) CheckFunc {
	return func(context.Context) Result {
		if printer == nil {
			return Result{Status: StatusUnhealthy, Message: "no PDF printer configured"}
		}
		meta := map[string]string{"printer": printer.Name()}
		if chrome, ok := printer.(*pdf.ChromePrinter); ok {
			meta["exec_path"] = chrome.ExecPath()
			return Result{Message: "headless browser available", Metadata: meta}
		}
		return Result{
			Status:   StatusDegraded,
			Message:  "no headless browser, PDF output uses the built-in layout",
			Metadata: meta,
		}
	}
}

// DirectoryCheck creates dir if needed and verifies a file can be written
// into it
func DirectoryCheck(dir string) CheckFunc {
	return func(context.Context) Result {
		meta := map[string]string{"path": dir}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{Err: err, Metadata: meta}
		}
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return Result{Err: err, Metadata: meta}
		}
		f.Close()
		os.Remove(f.Name())
		return Result{Message: "directory is writable", Metadata: meta}
	}
}
