package report

import (
	"context"
	"time"

	"github.com/NikhilSetiya/vanguard-reports/internal/pdf"
	"github.com/NikhilSetiya/vanguard-reports/internal/render"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/metrics"
	"github.com/NikhilSetiya/vanguard-reports/pkg/tracing"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// Renderer turns a composed document into bytes of a given format
type Renderer struct {
	templates *TemplateManager
	docx      *render.DOCXRenderer
	printer   pdf.Printer
	metrics   *metrics.Metrics
	tracer    *tracing.TracingService
}

// NewRenderer creates a renderer. metrics may be nil.
func NewRenderer(templates *TemplateManager, docx *render.DOCXRenderer, printer pdf.Printer, m *metrics.Metrics, tracer *tracing.TracingService) *Renderer {
	if tracer == nil {
		tracer = tracing.Noop()
	}
	return &Renderer{
		templates: templates,
		docx:      docx,
		printer:   printer,
		metrics:   m,
		tracer:    tracer,
	}
}

// Templates returns the HTML template manager
func (r *Renderer) Templates() *TemplateManager {
	return r.templates
}

// Render produces doc in format. HTML output inlines small images and keeps
// videos; PDF output is printed from the no-video variant.
func (r *Renderer) Render(ctx context.Context, doc *render.Document, format types.Format) ([]byte, error) {
	ctx, span := r.tracer.StartReportSpan(ctx, "render", string(doc.Scope), string(format))
	start := time.Now()

	out, err := r.render(ctx, doc, format)

	status := "success"
	if err != nil {
		status = "error"
		r.metrics.RecordError("report", string(errors.GetType(err)))
	}
	r.metrics.RecordReport(string(doc.Scope), string(format), status, len(out), time.Since(start))
	r.tracer.End(span, err)
	return out, err
}

func (r *Renderer) render(ctx context.Context, doc *render.Document, format types.Format) ([]byte, error) {
	switch format {
	case types.FormatHTML:
		page, err := r.templates.Render(doc, render.PreviewOptions)
		if err != nil {
			return nil, err
		}
		return []byte(page), nil

	case types.FormatDOCX:
		return r.docx.Render(doc)

	case types.FormatPDF:
		page, err := r.templates.Render(doc, render.PrintOptions)
		if err != nil {
			return nil, err
		}
		out, err := r.printer.Print(ctx, pdf.Job{HTML: page, Document: doc})
		if err != nil {
			r.metrics.RecordPrint(r.printer.Name(), "error")
			return nil, err
		}
		r.metrics.RecordPrint(r.printer.Name(), "success")
		return out, nil
	}

	return nil, errors.NewValidationError("unsupported report format: " + string(format))
}
