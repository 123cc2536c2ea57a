package pdf

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/NikhilSetiya/vanguard-reports/internal/assets"
	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
)

// A4 in inches
const (
	paperWidth  = 8.27
	paperHeight = 11.69
	pageMargin  = 0.4

	defaultPrintTimeout = 60 * time.Second
)

var browserNames = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
	"msedge",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// ChromePrinter prints HTML through a headless Chrome instance. Every job
// gets its own browser process, which is torn down when the job returns.
type ChromePrinter struct {
	execPath  string
	timeout   time.Duration
	noSandbox bool
	slots     chan struct{}
	logger    *zap.Logger
}

// NewChromePrinter creates a Chrome printer. Only one browser runs at a time.
func NewChromePrinter(cfg config.PDFConfig, logger *zap.Logger) *ChromePrinter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPrintTimeout
	}
	p := &ChromePrinter{
		execPath:  cfg.ChromePath,
		timeout:   timeout,
		noSandbox: cfg.NoSandbox,
		slots:     make(chan struct{}, 1),
		logger:    logger,
	}
	if p.execPath == "" {
		p.execPath = findBrowser()
	}
	return p
}

func findBrowser() string {
	for _, name := range browserNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// Name implements Printer
func (p *ChromePrinter) Name() string { return "chrome" }

// ExecPath returns the browser executable in use
func (p *ChromePrinter) ExecPath() string { return p.execPath }

// Available reports whether the browser executable exists
func (p *ChromePrinter) Available() bool {
	if p.execPath == "" {
		return false
	}
	info, err := os.Stat(p.execPath)
	return err == nil && !info.IsDir()
}

// Print stages job.HTML as a local page, loads it, waits for fonts, and
// prints an A4 PDF with backgrounds. A file:// page may load file:// evidence
// that an about:blank document would be refused.
func (p *ChromePrinter) Print(ctx context.Context, job Job) ([]byte, error) {
	select {
	case p.slots <- struct{}{}:
		defer func() { <-p.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	pageURL, cleanup, err := stagePage(job.HTML)
	if err != nil {
		return nil, errors.NewRenderingError("pdf", "failed to stage print page").WithCause(err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, p.allocatorOptions()...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	start := time.Now()
	var out []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		waitForFonts(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(pageMargin).
				WithMarginBottom(pageMargin).
				WithMarginLeft(pageMargin).
				WithMarginRight(pageMargin).
				Do(ctx)
			out = data
			return err
		}),
	)
	if err != nil {
		p.logger.Error("headless print failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, errors.NewRenderingError("pdf", "failed to print PDF").WithCause(err)
	}

	p.logger.Debug("headless print complete",
		zap.Int("bytes", len(out)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (p *ChromePrinter) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.ExecPath(p.execPath),
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.Flag("allow-file-access-from-files", true),
	)
	if p.noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

// stagePage writes html to a private temp directory and returns its file://
// URL with a cleanup that removes the directory.
func stagePage(html string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "vanguard-print-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, "report.html")
	if err := os.WriteFile(path, []byte(html), 0o600); err != nil {
		cleanup()
		return "", nil, err
	}
	return assets.FileURL(path), cleanup, nil
}

func waitForFonts() chromedp.Action {
	var ready bool
	return chromedp.Evaluate(`document.fonts.ready.then(() => true)`, &ready,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		},
	)
}
