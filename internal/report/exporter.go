package report

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/NikhilSetiya/vanguard-reports/internal/render"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/logging"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// Result is the outcome of a report export. Exactly one field is set.
type Result struct {
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

// PreviewResult carries preview HTML or an error message
type PreviewResult struct {
	HTML  string `json:"html,omitempty"`
	Error string `json:"error,omitempty"`
}

// SaveTarget chooses where an exported report is written. Returning ok=false
// means the user declined to save.
type SaveTarget interface {
	SavePath(ctx context.Context, suggested string, format types.Format) (path string, ok bool, err error)
}

// SaveTargetFunc adapts a function to SaveTarget
type SaveTargetFunc func(ctx context.Context, suggested string, format types.Format) (string, bool, error)

// SavePath implements SaveTarget
func (f SaveTargetFunc) SavePath(ctx context.Context, suggested string, format types.Format) (string, bool, error) {
	return f(ctx, suggested, format)
}

// PathTarget writes to Path, or to Path/<suggested> when Path is a
// directory. An empty Path uses Dir.
type PathTarget struct {
	Path string
	Dir  string
}

// SavePath implements SaveTarget
func (t PathTarget) SavePath(_ context.Context, suggested string, _ types.Format) (string, bool, error) {
	if t.Path == "" {
		return filepath.Join(t.Dir, suggested), true, nil
	}
	if info, err := os.Stat(t.Path); err == nil && info.IsDir() {
		return filepath.Join(t.Path, suggested), true, nil
	}
	return t.Path, true, nil
}

var (
	whitespace  = regexp.MustCompile(`\s+`)
	unsafeChars = regexp.MustCompile(`[/\\:*?"<>|]`)
)

// DefaultFileName is the suggested file name for doc in format
func DefaultFileName(doc *render.Document, format types.Format) string {
	suffix := "_report"
	if doc.Scope == render.ScopeFinding {
		suffix = "_finding"
	}
	name := unsafeChars.ReplaceAllString(doc.Title(), "")
	name = whitespace.ReplaceAllString(strings.TrimSpace(name), "_")
	return name + suffix + "." + string(format)
}

// Exporter implements report generation and preview for projects
type Exporter struct {
	composer *Composer
	renderer *Renderer
	logger   *logging.Logger
}

// NewExporter creates an exporter
func NewExporter(composer *Composer, renderer *Renderer, logger *logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Exporter{composer: composer, renderer: renderer, logger: logger}
}

// GenerateReport composes the project report, asks target where to save it,
// and writes it. A nil Result with a nil error means the save was canceled.
// Only store failures are returned as errors; everything else is reported in
// Result.Error.
func (e *Exporter) GenerateReport(ctx context.Context, projectID, format string, target SaveTarget) (*Result, error) {
	f, ok := types.ParseFormat(format)
	if !ok {
		return &Result{Error: "Unsupported report format: " + format}, nil
	}

	doc, err := e.composer.ComposeProject(ctx, projectID)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeConfiguration) {
			return &Result{Error: errors.UserMessage(err)}, nil
		}
		return nil, err
	}

	path, ok, err := target.SavePath(ctx, DefaultFileName(doc, f), f)
	if err != nil {
		return &Result{Error: errors.UserMessage(err)}, nil
	}
	if !ok || path == "" {
		e.logger.LogReportEvent(ctx, logging.ReportEvent{
			Event: "canceled", Scope: string(doc.Scope), ProjectID: projectID, Format: string(f),
		})
		return nil, nil
	}

	data, err := e.renderer.Render(ctx, doc, f)
	if err != nil {
		e.logger.LogReportEvent(ctx, logging.ReportEvent{
			Event: "failed", Scope: string(doc.Scope), ProjectID: projectID, Format: string(f), Err: err,
		})
		return &Result{Error: err.Error()}, nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		e.logger.LogReportEvent(ctx, logging.ReportEvent{
			Event: "save_failed", Scope: string(doc.Scope), ProjectID: projectID, Format: string(f), Path: path, Err: err,
		})
		return &Result{Error: err.Error()}, nil
	}

	e.logger.LogReportEvent(ctx, logging.ReportEvent{
		Event:     "generated",
		Scope:     string(doc.Scope),
		ProjectID: projectID,
		Format:    string(f),
		Path:      path,
		Bytes:     len(data),
		Findings:  len(doc.Findings),
	})
	return &Result{Path: path}, nil
}

// GetReportPreview returns the project report HTML with videos and inlined
// images.
func (e *Exporter) GetReportPreview(ctx context.Context, projectID string) (*PreviewResult, error) {
	doc, err := e.composer.ComposeProject(ctx, projectID)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeConfiguration) {
			return &PreviewResult{Error: errors.UserMessage(err)}, nil
		}
		return nil, err
	}

	page, err := e.renderer.Templates().Render(doc, render.PreviewOptions)
	if err != nil {
		e.logger.LogReportEvent(ctx, logging.ReportEvent{
			Event: "preview_failed", Scope: string(doc.Scope), ProjectID: projectID, Format: string(types.FormatHTML), Err: err,
		})
		return &PreviewResult{Error: errors.UserMessage(err)}, nil
	}
	return &PreviewResult{HTML: page}, nil
}
