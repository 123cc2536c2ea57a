package pdf

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/NikhilSetiya/vanguard-reports/internal/assets"
	"github.com/NikhilSetiya/vanguard-reports/internal/markup"
	"github.com/NikhilSetiya/vanguard-reports/internal/render"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

const (
	fallbackImageWidth = 150.0 // mm
	bodyLineHeight     = 5.0
)

var gofpdfImageTypes = map[string]string{
	".png":  "PNG",
	".jpg":  "JPG",
	".jpeg": "JPG",
	".gif":  "GIF",
}

// FallbackPrinter lays out a report document with gofpdf. Output is plainer
// than the browser print but covers the same sections. Rich text is flattened
// and PNG, JPEG and GIF evidence is embedded.
type FallbackPrinter struct {
	resolver *assets.Resolver
	compress bool
}

// NewFallbackPrinter creates a fallback printer backed by resolver
func NewFallbackPrinter(resolver *assets.Resolver) *FallbackPrinter {
	return &FallbackPrinter{resolver: resolver, compress: true}
}

// Name implements Printer
func (p *FallbackPrinter) Name() string { return "builtin" }

// Print implements Printer
func (p *FallbackPrinter) Print(ctx context.Context, job Job) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := job.Document
	if doc == nil {
		return nil, errors.NewRenderingError("pdf", "no document to print")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(p.compress)
	pdf.SetTitle(doc.Title(), true)
	pdf.SetCreator("Vanguard", false)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(100, 116, 139)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	l := &layout{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), resolver: p.resolver}

	switch doc.Scope {
	case render.ScopeFinding:
		f := doc.Finding()
		if f == nil {
			return nil, errors.NewRenderingError("pdf", "finding document has no finding")
		}
		l.findingCover(doc.Project, f)
		l.findingBody(f)
	default:
		l.projectCover(doc)
		l.summary(doc)
		for i := range doc.Findings {
			f := &doc.Findings[i]
			pdf.AddPage()
			l.heading(render.FindingTitle(f), 16)
			l.identity(f)
			l.findingBody(f)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.NewRenderingError("pdf", "failed to write PDF").WithCause(err)
	}
	return buf.Bytes(), nil
}

type layout struct {
	pdf      *gofpdf.Fpdf
	tr       func(string) string
	resolver *assets.Resolver
	images   int
}

func (l *layout) projectCover(doc *render.Document) {
	l.pdf.AddPage()
	l.pdf.Ln(60)
	l.pdf.SetFont("Arial", "B", 26)
	l.pdf.SetTextColor(15, 23, 42)
	l.pdf.MultiCell(0, 12, l.tr(doc.Title()), "", "C", false)
	l.pdf.Ln(6)
	l.pdf.SetFont("Arial", "", 12)
	l.pdf.SetTextColor(100, 116, 139)
	if doc.Project != nil && doc.Project.Client != "" {
		l.pdf.CellFormat(0, 8, l.tr("Client: "+doc.Project.Client), "", 1, "C", false, 0, "")
	}
	l.pdf.CellFormat(0, 8, "Date: "+doc.GeneratedAt.Format("2006-01-02"), "", 1, "C", false, 0, "")
}

func (l *layout) summary(doc *render.Document) {
	l.pdf.AddPage()
	l.heading("Executive Summary", 18)
	l.pdf.SetFont("Arial", "", 11)
	l.pdf.SetTextColor(15, 23, 42)
	l.pdf.MultiCell(0, 6, fmt.Sprintf("This assessment identified %d findings.", doc.Summary.Total), "", "", false)
	l.pdf.Ln(4)

	l.pdf.SetFont("Arial", "B", 10)
	l.pdf.SetFillColor(241, 245, 249)
	l.pdf.CellFormat(60, 8, "Severity", "1", 0, "", true, 0, "")
	l.pdf.CellFormat(30, 8, "Count", "1", 0, "C", true, 0, "")
	l.pdf.CellFormat(30, 8, "Share", "1", 1, "C", true, 0, "")
	l.pdf.SetFont("Arial", "", 10)
	for _, st := range doc.Summary.Stats {
		r, g, b := hexColor(st.Severity.Color())
		l.pdf.SetTextColor(r, g, b)
		l.pdf.CellFormat(60, 8, string(st.Severity), "1", 0, "", false, 0, "")
		l.pdf.SetTextColor(15, 23, 42)
		l.pdf.CellFormat(30, 8, strconv.Itoa(st.Count), "1", 0, "C", false, 0, "")
		l.pdf.CellFormat(30, 8, strconv.Itoa(st.Percent)+"%", "1", 1, "C", false, 0, "")
	}

	l.pdf.Ln(8)
	l.heading("Findings Overview", 14)
	l.pdf.SetFont("Arial", "", 10)
	for i := range doc.Findings {
		f := &doc.Findings[i]
		line := fmt.Sprintf("%d. [%s] %s  (CVSS %s)", i+1, f.Severity, render.FindingTitle(f), render.CVSSLine(f))
		l.pdf.MultiCell(0, bodyLineHeight, l.tr(line), "", "", false)
	}
}

func (l *layout) findingCover(project *types.Project, f *types.Finding) {
	l.pdf.AddPage()
	l.pdf.SetFont("Arial", "B", 10)
	l.pdf.SetTextColor(100, 116, 139)
	l.pdf.CellFormat(0, 6, "SECURITY FINDING INTELLIGENCE", "", 1, "", false, 0, "")
	l.heading(render.FindingTitle(f), 20)
	if project != nil {
		l.labeled("Project", project.Name)
		if project.Client != "" {
			l.labeled("Client", project.Client)
		}
	}
	l.identity(f)
}

func (l *layout) identity(f *types.Finding) {
	l.pdf.SetFont("Arial", "B", 10)
	l.pdf.SetTextColor(15, 23, 42)
	l.pdf.CellFormat(20, 6, "Severity:", "", 0, "", false, 0, "")
	r, g, b := hexColor(f.Severity.Color())
	l.pdf.SetTextColor(r, g, b)
	l.pdf.CellFormat(0, 6, string(types.ParseSeverity(string(f.Severity))), "", 1, "", false, 0, "")
	l.labeled("Asset", render.AffectedAsset(f))
	l.labeled("CVSS", render.CVSSLine(f))
	l.pdf.Ln(4)
}

func (l *layout) findingBody(f *types.Finding) {
	l.heading("Description", 13)
	l.richText(f.Description)
	for _, cf := range f.CustomFields {
		l.heading(render.FieldLabel(cf), 13)
		l.richText(cf.Value)
	}
}

func (l *layout) richText(value string) {
	for _, node := range markup.Parse(value) {
		switch node.Kind {
		case markup.KindImage:
			l.image(node)
		case markup.KindVideo:
			name := l.resolver.FileName(node.URL)
			l.note(fmt.Sprintf("Video Evidence: %s (%s)", l.label(node), name))
		default:
			l.pdf.SetFont("Arial", "", 10)
			l.pdf.SetTextColor(15, 23, 42)
			for _, line := range markup.PlainLines(node.Text) {
				l.pdf.MultiCell(0, bodyLineHeight, l.tr(line), "", "", false)
			}
		}
	}
	l.pdf.Ln(2)
}

func (l *layout) image(node markup.Node) {
	name := l.resolver.FileName(node.URL)
	data, path, err := l.resolver.Read(node.URL)
	if err != nil {
		l.note("Image missing: " + name)
		return
	}
	typ, ok := gofpdfImageTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		l.note(fmt.Sprintf("Image: %s (%s)", l.label(node), name))
		return
	}

	l.images++
	key := "evidence-" + strconv.Itoa(l.images)
	opts := gofpdf.ImageOptions{ImageType: typ, ReadDpi: true}
	l.pdf.RegisterImageOptionsReader(key, opts, bytes.NewReader(data))
	if l.pdf.Err() {
		// undecodable evidence must not fail the whole report
		l.pdf.ClearError()
		l.note("Image missing: " + name)
		return
	}

	l.pdf.ImageOptions(key, -1, -1, fallbackImageWidth, 0, true, opts, 0, "")
	if node.Caption != "" {
		l.pdf.SetFont("Arial", "I", 9)
		l.pdf.SetTextColor(100, 116, 139)
		l.pdf.MultiCell(0, bodyLineHeight, l.tr(node.Caption), "", "C", false)
	}
	l.pdf.Ln(2)
}

func (l *layout) heading(text string, size float64) {
	l.pdf.SetFont("Arial", "B", size)
	l.pdf.SetTextColor(15, 23, 42)
	l.pdf.MultiCell(0, size*0.5, l.tr(text), "", "", false)
	l.pdf.Ln(2)
}

func (l *layout) labeled(name, value string) {
	l.pdf.SetFont("Arial", "B", 10)
	l.pdf.SetTextColor(15, 23, 42)
	l.pdf.CellFormat(20, 6, name+":", "", 0, "", false, 0, "")
	l.pdf.SetFont("Arial", "", 10)
	l.pdf.MultiCell(0, 6, l.tr(value), "", "", false)
}

func (l *layout) note(text string) {
	l.pdf.SetFont("Arial", "I", 10)
	l.pdf.SetTextColor(100, 116, 139)
	l.pdf.MultiCell(0, bodyLineHeight, l.tr(text), "", "", false)
}

func (l *layout) label(node markup.Node) string {
	if node.Caption != "" {
		return node.Caption
	}
	return l.resolver.FileName(node.URL)
}

func hexColor(hex string) (int, int, int) {
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}
