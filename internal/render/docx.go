package render

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/fumiama/go-docx"

	"github.com/NikhilSetiya/vanguard-reports/internal/assets"
	"github.com/NikhilSetiya/vanguard-reports/internal/markup"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

const (
	emuPerPixel = 9525

	// DefaultImageWidth and DefaultImageHeight are the embedded evidence
	// image size in logical pixels
	DefaultImageWidth  = 520
	DefaultImageHeight = 320

	mutedColor = "64748B"
)

// DOCXRenderer builds word-processing documents directly from findings.
// Rich text is flattened to plain runs; images are embedded and videos are
// listed by name.
type DOCXRenderer struct {
	resolver    *assets.Resolver
	imageWidth  int64
	imageHeight int64
}

// NewDOCXRenderer creates a DOCX renderer backed by resolver
func NewDOCXRenderer(resolver *assets.Resolver) *DOCXRenderer {
	return &DOCXRenderer{
		resolver:    resolver,
		imageWidth:  DefaultImageWidth * emuPerPixel,
		imageHeight: DefaultImageHeight * emuPerPixel,
	}
}

// Render writes doc as a DOCX file
func (r *DOCXRenderer) Render(doc *Document) ([]byte, error) {
	w := docx.New().WithDefaultTheme().WithA4Page()

	switch doc.Scope {
	case ScopeFinding:
		f := doc.Finding()
		if f == nil {
			return nil, errors.NewRenderingError("docx", "finding document has no finding")
		}
		r.findingCover(w, doc.Project, f)
		r.findingBody(w, f)
	default:
		r.projectCover(w, doc)
		r.projectSummary(w, doc)
		for i := range doc.Findings {
			w.AddParagraph().AddPageBreaks()
			f := &doc.Findings[i]
			heading(w, FindingTitle(f), "32")
			r.identity(w, f)
			r.findingBody(w, f)
		}
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, errors.NewRenderingError("docx", "failed to write document").WithCause(err)
	}
	return buf.Bytes(), nil
}

func (r *DOCXRenderer) projectCover(w *docx.Docx, doc *Document) {
	heading(w, doc.Title(), "48")
	client := ""
	if doc.Project != nil {
		client = doc.Project.Client
	}
	labeled(w, "Client: ", client)
	labeled(w, "Date: ", doc.GeneratedAt.Format("2006-01-02"))
}

func (r *DOCXRenderer) projectSummary(w *docx.Docx, doc *Document) {
	heading(w, "Executive Summary", "28")
	w.AddParagraph().AddText(fmt.Sprintf("This report contains %d finding(s).", len(doc.Findings)))

	table := w.AddTable(len(doc.Summary.Stats)+1, 3, 0, nil)
	header := table.TableRows[0].TableCells
	header[0].AddParagraph().AddText("Severity").Bold()
	header[1].AddParagraph().AddText("Count").Bold()
	header[2].AddParagraph().AddText("Share").Bold()
	for i, st := range doc.Summary.Stats {
		cells := table.TableRows[i+1].TableCells
		cells[0].AddParagraph().AddText(string(st.Severity)).Bold().Color(st.Severity.Color())
		cells[1].AddParagraph().AddText(strconv.Itoa(st.Count))
		cells[2].AddParagraph().AddText(strconv.Itoa(st.Percent) + "%")
	}

	if len(doc.Findings) == 0 {
		return
	}

	heading(w, "Findings Overview", "28")
	overview := w.AddTable(len(doc.Findings)+1, 4, 0, nil)
	for i, label := range []string{"Title", "Severity", "CVSS", "Asset"} {
		overview.TableRows[0].TableCells[i].AddParagraph().AddText(label).Bold()
	}
	for i := range doc.Findings {
		f := &doc.Findings[i]
		sev := types.ParseSeverity(string(f.Severity))
		cells := overview.TableRows[i+1].TableCells
		cells[0].AddParagraph().AddText(FindingTitle(f))
		cells[1].AddParagraph().AddText(string(sev)).Bold().Color(sev.Color())
		cells[2].AddParagraph().AddText(CVSSLine(f))
		cells[3].AddParagraph().AddText(AffectedAsset(f))
	}
}

func (r *DOCXRenderer) findingCover(w *docx.Docx, project *types.Project, f *types.Finding) {
	w.AddParagraph().AddText("Security Finding Intelligence").Bold().Size("20").Color(mutedColor)
	heading(w, FindingTitle(f), "32")
	if project != nil {
		labeled(w, "Project: ", project.Name)
		labeled(w, "Client: ", project.Client)
	}
	r.identity(w, f)
}

func (r *DOCXRenderer) identity(w *docx.Docx, f *types.Finding) {
	sev := types.ParseSeverity(string(f.Severity))
	p := w.AddParagraph()
	p.AddText("Severity: ").Bold()
	p.AddText(string(sev)).Bold().Color(sev.Color())
	labeled(w, "Asset: ", AffectedAsset(f))
	labeled(w, "CVSS: ", CVSSLine(f))
}

func (r *DOCXRenderer) findingBody(w *docx.Docx, f *types.Finding) {
	heading(w, "Description", "26")
	r.richText(w, f.Description)

	for _, cf := range f.CustomFields {
		heading(w, FieldLabel(cf), "24")
		r.richText(w, cf.Value)
	}
}

// richText writes value segment by segment so evidence stays in place
func (r *DOCXRenderer) richText(w *docx.Docx, value string) {
	for _, node := range markup.Parse(value) {
		switch node.Kind {
		case markup.KindImage:
			r.image(w, node)
		case markup.KindVideo:
			name := r.resolver.FileName(node.URL)
			label := node.Caption
			if label == "" {
				label = name
			}
			p := w.AddParagraph()
			p.AddText("Video Evidence (attached): ").Bold()
			p.AddText(label + " - " + name)
		default:
			for _, line := range markup.PlainLines(node.Text) {
				w.AddParagraph().AddText(line)
			}
		}
	}
}

func (r *DOCXRenderer) image(w *docx.Docx, node markup.Node) {
	p := w.AddParagraph()

	data, _, err := r.resolver.Read(node.URL)
	if err == nil {
		var run *docx.Run
		run, err = p.AddInlineDrawing(data)
		if err == nil {
			if d, ok := run.Children[0].(*docx.Drawing); ok && d.Inline != nil {
				d.Inline.Size(r.imageWidth, r.imageHeight)
			}
			if node.Caption != "" {
				w.AddParagraph().AddText(node.Caption).Italic().Color(mutedColor)
			}
			return
		}
	}

	label := node.Caption
	if label == "" {
		label = r.resolver.FileName(node.URL)
	}
	p.AddText("Image missing: " + label).Italic().Color(mutedColor)
}

func heading(w *docx.Docx, text, size string) {
	w.AddParagraph().AddText(text).Bold().Size(size)
}

func labeled(w *docx.Docx, label, value string) {
	p := w.AddParagraph()
	p.AddText(label).Bold()
	p.AddText(value)
}
