// Package pdf prints composed report HTML to PDF using a headless browser,
// with a pure-Go fallback for hosts where no browser is installed.
package pdf

import (
	"context"

	"go.uber.org/zap"

	"github.com/NikhilSetiya/vanguard-reports/internal/assets"
	"github.com/NikhilSetiya/vanguard-reports/internal/render"
	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
)

// Job is a single print request. Browser printers consume HTML; the
// fallback printer lays out Document directly.
type Job struct {
	HTML     string
	Document *render.Document
}

// Printer produces PDF bytes for a job
type Printer interface {
	Print(ctx context.Context, job Job) ([]byte, error)
	Name() string
}

// New returns the Chrome printer when a browser executable can be located and
// the fallback printer otherwise.
func New(cfg config.PDFConfig, resolver *assets.Resolver, logger *zap.Logger) Printer {
	if logger == nil {
		logger = zap.NewNop()
	}

	chrome := NewChromePrinter(cfg, logger)
	if chrome.Available() {
		logger.Info("using headless browser for PDF output", zap.String("exec_path", chrome.ExecPath()))
		return chrome
	}

	logger.Warn("no headless browser found, PDF output uses the built-in layout")
	return NewFallbackPrinter(resolver)
}
