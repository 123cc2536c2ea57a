package api

import (
	stderrors "errors"
	"io"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/NikhilSetiya/vanguard-reports/internal/report"
)

// ReportHandler serves report generation and preview
type ReportHandler struct {
	exporter  *report.Exporter
	exportDir string
}

// NewReportHandler creates a report handler writing to exportDir by default
func NewReportHandler(exporter *report.Exporter, exportDir string) *ReportHandler {
	return &ReportHandler{exporter: exporter, exportDir: exportDir}
}

// GenerateRequest selects the output format and optionally the destination.
// Path may be a file or a directory; empty uses the export directory.
type GenerateRequest struct {
	Format string `json:"format"`
	Path   string `json:"path,omitempty"`
}

// Generate handles POST /api/v1/projects/:id/reports
func (h *ReportHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	if req.Path == "" {
		if err := os.MkdirAll(h.exportDir, 0o755); err != nil {
			SuccessResponse(c, &report.Result{Error: err.Error()})
			return
		}
	}

	result, err := h.exporter.GenerateReport(c.Request.Context(), c.Param("id"), req.Format,
		report.PathTarget{Path: req.Path, Dir: h.exportDir})
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}
	if result == nil {
		SuccessResponse(c, nil)
		return
	}
	SuccessResponse(c, result)
}

// Preview handles GET /api/v1/projects/:id/preview
func (h *ReportHandler) Preview(c *gin.Context) {
	result, err := h.exporter.GetReportPreview(c.Request.Context(), c.Param("id"))
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}
	SuccessResponse(c, result)
}
