package security

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
)

// HeadersConfig holds the response headers and CORS policy of the local API
type HeadersConfig struct {
	// CSP is applied to every response, report previews included
	CSP map[string][]string

	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         time.Duration
}

// DefaultHeadersConfig returns the policy for the loopback API. Report previews
// embed data URIs and local file media, so img-src and media-src allow them.
func DefaultHeadersConfig(allowedOrigins []string) HeadersConfig {
	return HeadersConfig{
		CSP: map[string][]string{
			"default-src": {"'self'"},
			"style-src":   {"'self'", "'unsafe-inline'"},
			"img-src":     {"'self'", "data:", "file:"},
			"media-src":   {"'self'", "data:", "file:"},
			"script-src":  {"'none'"},
			"object-src":  {"'none'"},
			"base-uri":    {"'self'"},
		},
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "X-Request-ID", "X-Correlation-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Correlation-ID", "Retry-After"},
		MaxAge:         12 * time.Hour,
	}
}

// SecurityHeadersMiddleware sets the CSP and the hardening headers. Responses
// carry report content, so nothing is cached.
func SecurityHeadersMiddleware(config HeadersConfig) gin.HandlerFunc {
	csp := buildCSP(config.CSP)
	return func(c *gin.Context) {
		h := c.Writer.Header()
		if csp != "" {
			h.Set("Content-Security-Policy", csp)
		}
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Cache-Control", "no-store")
		c.Next()
	}
}

// CORSMiddleware admits the configured origins. A pattern ending in ":*"
// admits any numeric port on that host, which covers local dev servers.
func CORSMiddleware(config HeadersConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			for _, pattern := range config.AllowedOrigins {
				if matchOrigin(origin, pattern) {
					return true
				}
			}
			return false
		},
		AllowMethods:  config.AllowedMethods,
		AllowHeaders:  config.AllowedHeaders,
		ExposeHeaders: config.ExposedHeaders,
		MaxAge:        config.MaxAge,
	})
}

// RequestSizeMiddleware rejects bodies declared larger than maxSize and caps
// the rest. onTooLarge writes the rejection; when nil a bare 413 is sent.
func RequestSizeMiddleware(maxSize int64, onTooLarge func(c *gin.Context, err error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			if onTooLarge == nil {
				c.AbortWithStatus(http.StatusRequestEntityTooLarge)
				return
			}
			onTooLarge(c, errors.NewTooLargeError(maxSize))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// buildCSP joins the non-empty directives in name order
func buildCSP(directives map[string][]string) string {
	var parts []string
	for name, sources := range directives {
		if len(sources) > 0 {
			parts = append(parts, name+" "+strings.Join(sources, " "))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func matchOrigin(origin, pattern string) bool {
	if pattern == "*" || origin == pattern {
		return true
	}
	base, ok := strings.CutSuffix(pattern, "*")
	if !ok || !strings.HasSuffix(base, ":") {
		return false
	}
	port, ok := strings.CutPrefix(origin, base)
	if !ok || port == "" {
		return false
	}
	return strings.Trim(port, "0123456789") == ""
}
