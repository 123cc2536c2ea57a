package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikhilSetiya/vanguard-reports/internal/assets"
	"github.com/NikhilSetiya/vanguard-reports/internal/database"
	"github.com/NikhilSetiya/vanguard-reports/internal/pdf"
	"github.com/NikhilSetiya/vanguard-reports/internal/recipients"
	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
)

func static(status Status) CheckFunc {
	return func(context.Context) Result { return Result{Status: status} }
}

func TestService_CheckHealth(t *testing.T) {
	tests := []struct {
		name   string
		checks []CheckFunc
		want   Status
	}{
		{name: "no checks", want: StatusHealthy},
		{name: "all healthy", checks: []CheckFunc{static(StatusHealthy), static("")}, want: StatusHealthy},
		{name: "one degraded", checks: []CheckFunc{static(StatusHealthy), static(StatusDegraded)}, want: StatusDegraded},
		{name: "unhealthy wins", checks: []CheckFunc{static(StatusDegraded), static(StatusUnhealthy), static(StatusHealthy)}, want: StatusUnhealthy},
		{
			name: "error without status is unhealthy",
			checks: []CheckFunc{func(context.Context) Result {
				return Result{Err: errors.New("database is locked")}
			}},
			want: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewService(nil, nil)
			for i, fn := range tt.checks {
				s.Register(string(rune('a'+i)), fn)
			}

			resp := s.CheckHealth(context.Background())
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checks))
			for name, check := range resp.Checks {
				assert.Equal(t, name, check.Name)
				assert.NotEmpty(t, check.Status)
			}
		})
	}
}

func TestService_Timeout(t *testing.T) {
	s := NewService(nil, &Config{Timeout: 10 * time.Millisecond})
	s.Register("slow", func(ctx context.Context) Result {
		<-ctx.Done()
		return Result{Err: ctx.Err()}
	})

	resp := s.CheckHealth(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["slow"].Error)
}

func TestService_Handlers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := NewService(nil, &Config{Metadata: map[string]string{"version": "1.2.0"}})
	s.Register("pdf", static(StatusDegraded))

	router := gin.New()
	router.GET("/health", s.Handler())
	router.GET("/health/ready", s.ReadinessHandler())
	router.GET("/health/live", s.LivenessHandler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "1.2.0", resp.Metadata["version"])

	s.Register("database", static(StatusUnhealthy))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"ready":false`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDatabaseCheck(t *testing.T) {
	db, err := database.New(&config.DatabaseConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "health.db"),
	})
	require.NoError(t, err)

	res := DatabaseCheck(db)(context.Background())
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Status)
	assert.Equal(t, database.DriverSQLite, res.Metadata["driver"])

	require.NoError(t, db.Close())
	res = DatabaseCheck(db)(context.Background())
	assert.Error(t, res.Err)

	res = DatabaseCheck(nil)(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
}

func TestRedisCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	store := recipients.NewRedisStore(client, "", 0)

	res := RedisCheck(store)(context.Background())
	assert.NoError(t, res.Err)
	assert.Equal(t, "redis is healthy", res.Message)
	assert.Contains(t, res.Metadata, "total_connections")

	mr.Close()
	res = RedisCheck(store)(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Error(t, res.Err)

	res = RedisCheck(nil)(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
}

func TestPrinterCheck(t *testing.T) {
	res := PrinterCheck(pdf.NewFallbackPrinter(assets.NewResolver(assets.Config{})))(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "builtin", res.Metadata["printer"])

	res = PrinterCheck(nil)(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
}

func TestDirectoryCheck(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")

	res := DirectoryCheck(dir)(context.Background())
	assert.NoError(t, res.Err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file must be removed")

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	res = DirectoryCheck(file)(context.Background())
	assert.Error(t, res.Err)
	assert.Equal(t, file, res.Metadata["path"])
}
