package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/NikhilSetiya/vanguard-reports/internal/render"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// DefaultDateFormat is the cover page date layout
const DefaultDateFormat = "2006-01-02"

const coverOpen = `<div class="cover">`

// TemplateManager renders composed documents to HTML pages
type TemplateManager struct {
	htmlTemplates map[string]*template.Template
	rich          *render.HTMLRenderer
	dateFormat    string
}

// NewTemplateManager creates a template manager. Rich text is rendered
// through rich.
func NewTemplateManager(rich *render.HTMLRenderer, dateFormat string) *TemplateManager {
	if dateFormat == "" {
		dateFormat = DefaultDateFormat
	}
	tm := &TemplateManager{
		htmlTemplates: make(map[string]*template.Template),
		rich:          rich,
		dateFormat:    dateFormat,
	}
	tm.loadDefaultTemplates()
	return tm
}

type findingView struct {
	Title       string
	Severity    string
	Class       string
	Asset       string
	CVSS        string
	Description template.HTML
	Fields      []fieldView
}

type fieldView struct {
	Label string
	Body  template.HTML
}

type barView struct {
	Label string
	Count int
	Width int
	Color string
}

type projectView struct {
	Name     string
	Client   string
	Date     string
	Total    int
	Stats    []render.SeverityStat
	Bars     []barView
	Findings []findingView
}

type findingPageView struct {
	Project string
	Client  string
	Finding findingView
}

// Render renders doc as a full HTML page with opts media handling
func (tm *TemplateManager) Render(doc *render.Document, opts render.HTMLOptions) (string, error) {
	if doc.Scope == render.ScopeFinding {
		return tm.RenderFinding(doc, opts)
	}
	return tm.RenderProject(doc, opts)
}

// RenderProject renders the project report page
func (tm *TemplateManager) RenderProject(doc *render.Document, opts render.HTMLOptions) (string, error) {
	view := projectView{
		Name:  doc.Title(),
		Date:  doc.GeneratedAt.Format(tm.dateFormat),
		Total: doc.Summary.Total,
		Stats: doc.Summary.Stats,
	}
	if doc.Project != nil {
		view.Client = doc.Project.Client
	}
	for _, st := range doc.Summary.Stats {
		view.Bars = append(view.Bars, barView{
			Label: string(st.Severity),
			Count: st.Count,
			Width: st.Percent,
			Color: "#" + st.Severity.Color(),
		})
	}
	for i := range doc.Findings {
		view.Findings = append(view.Findings, tm.finding(&doc.Findings[i], opts))
	}
	return tm.execute("project_report", view)
}

// RenderFinding renders the single finding page
func (tm *TemplateManager) RenderFinding(doc *render.Document, opts render.HTMLOptions) (string, error) {
	f := doc.Finding()
	if f == nil {
		return "", errors.NewRenderingError("html", "finding document has no finding")
	}
	return tm.execute("finding_report", tm.findingPage(doc, f, opts))
}

// RenderEmailSummary renders the compact card used as the body of finding
// emails that carry the report as an attachment.
func (tm *TemplateManager) RenderEmailSummary(doc *render.Document) (string, error) {
	f := doc.Finding()
	if f == nil {
		return "", errors.NewRenderingError("html", "finding document has no finding")
	}
	view := tm.findingPage(doc, f, render.EmailOptions)
	if strings.TrimSpace(f.Description) == "" {
		view.Finding.Description = template.HTML(render.Markdown("Not provided"))
	}
	return tm.execute("finding_email_summary", view)
}

func (tm *TemplateManager) findingPage(doc *render.Document, f *types.Finding, opts render.HTMLOptions) findingPageView {
	view := findingPageView{Finding: tm.finding(f, opts)}
	if doc.Project != nil {
		view.Project = doc.Project.Name
		view.Client = doc.Project.Client
	}
	return view
}

func (tm *TemplateManager) finding(f *types.Finding, opts render.HTMLOptions) findingView {
	sev := types.ParseSeverity(string(f.Severity))
	view := findingView{
		Title:       render.FindingTitle(f),
		Severity:    string(sev),
		Class:       sev.Class(),
		Asset:       render.AffectedAsset(f),
		CVSS:        render.CVSSLine(f),
		Description: template.HTML(tm.rich.RichText(f.Description, opts)),
	}
	for _, cf := range f.CustomFields {
		view.Fields = append(view.Fields, fieldView{
			Label: render.FieldLabel(cf),
			Body:  template.HTML(tm.rich.RichText(cf.Value, opts)),
		})
	}
	return view
}

func (tm *TemplateManager) execute(name string, data interface{}) (string, error) {
	tmpl, ok := tm.htmlTemplates[name]
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.NewRenderingError("html", "failed to render template").WithCause(err)
	}
	return buf.String(), nil
}

// InjectNote places an escaped sender note at the top of the cover block.
// Pages without a cover block are returned unchanged.
func InjectNote(page, note string) string {
	if strings.TrimSpace(note) == "" {
		return page
	}
	p := `<p class="note"><strong>Note:</strong> ` + render.Escape(note) + `</p>`
	return strings.Replace(page, coverOpen, coverOpen+p, 1)
}

func (tm *TemplateManager) loadDefaultTemplates() {
	tm.htmlTemplates["project_report"] = template.Must(template.New("project_report").Parse(baseStyles + projectReportTemplate))
	tm.htmlTemplates["finding_report"] = template.Must(template.New("finding_report").Parse(baseStyles + findingReportTemplate))
	tm.htmlTemplates["finding_email_summary"] = template.Must(template.New("finding_email_summary").Parse(emailSummaryTemplate))
}

const baseStyles = `{{define "styles"}}
:root { color-scheme: light; }
body { font-family: 'Inter', 'Segoe UI', Arial, sans-serif; color: #0f172a; margin: 0; background: #f1f5f9; }
.page { max-width: 920px; margin: 32px auto 48px; background: #ffffff; padding: 44px; border-radius: 24px; box-shadow: 0 24px 60px rgba(15, 23, 42, 0.12); }
h1, h2, h3, h4 { margin: 0 0 8px; }
h1 { font-size: 30px; }
h2 { font-size: 20px; margin-top: 24px; }
h3 { font-size: 16px; }
p { margin: 8px 0; line-height: 1.6; }
.cover { border-bottom: 2px solid #e2e8f0; padding-bottom: 24px; margin-bottom: 24px; }
.note { background: #eef2ff; border-left: 3px solid #6366f1; padding: 8px 12px; }
.meta { font-size: 12px; color: #475569; margin: 6px 0; }
.badge { padding: 4px 10px; border-radius: 999px; font-size: 11px; text-transform: uppercase; font-weight: bold; }
.badge.critical { background: #fee2e2; color: #b91c1c; }
.badge.high { background: #ffedd5; color: #c2410c; }
.badge.medium { background: #fef9c3; color: #a16207; }
.badge.low { background: #dbeafe; color: #1d4ed8; }
.badge.info { background: #e2e8f0; color: #475569; }
.section h4 { margin: 12px 0 6px; font-size: 12px; text-transform: uppercase; letter-spacing: 0.08em; color: #475569; }
.md-list { margin: 8px 0 8px 18px; padding: 0; }
.md-item { margin-bottom: 4px; }
.md-code { background: #e2e8f0; padding: 1px 4px; border-radius: 4px; font-size: 12px; }
.media { margin: 16px 0; padding: 12px; border: 1px solid #e2e8f0; border-radius: 12px; background: #f8fafc; }
.media-img, .media-vid { width: 100%; max-height: 420px; object-fit: contain; border-radius: 8px; background: #fff; }
.media figcaption { margin-top: 8px; font-size: 11px; color: #64748b; }
.media-placeholder { padding: 24px; text-align: center; color: #94a3b8; border: 1px dashed #cbd5e1; border-radius: 8px; }
.media-note { font-size: 12px; color: #475569; }
@media print {
  body { background: #ffffff; }
  .page { max-width: none; margin: 0; padding: 24px; box-shadow: none; border-radius: 0; }
  .finding { break-inside: avoid-page; }
}
@page { size: A4; margin: 16mm; }
{{end}}`

const projectReportTemplate = `<!doctype html>
<html>
<head>
<meta charset="utf-8" />
<title>{{.Name}} Report</title>
<style>{{template "styles"}}
.summary { display: grid; grid-template-columns: repeat(5, minmax(0, 1fr)); gap: 12px; margin-top: 16px; }
.summary-card { padding: 12px; border-radius: 12px; text-align: center; font-weight: 600; }
.summary-card strong { display: block; font-size: 20px; }
.summary-card.critical { background: #fee2e2; color: #991b1b; }
.summary-card.high { background: #ffedd5; color: #9a3412; }
.summary-card.medium { background: #fef9c3; color: #92400e; }
.summary-card.low { background: #dbeafe; color: #1d4ed8; }
.summary-card.info { background: #e2e8f0; color: #334155; }
.bars { margin-top: 12px; }
.bar-row { display: grid; grid-template-columns: 80px 1fr 40px; gap: 10px; align-items: center; font-size: 12px; margin-bottom: 8px; }
.bar-track { height: 10px; background: #e2e8f0; border-radius: 999px; overflow: hidden; }
.bar-fill { height: 100%; border-radius: 999px; }
.severity-table { width: 100%; border-collapse: collapse; font-size: 12px; margin-top: 10px; }
.severity-table th, .severity-table td { text-align: left; padding: 8px; border-bottom: 1px solid #e2e8f0; }
.finding { border: 1px solid #e2e8f0; border-radius: 12px; padding: 16px; margin-bottom: 16px; }
.finding-header { display: flex; justify-content: space-between; align-items: center; }
</style>
</head>
<body>
<div class="page">
<div class="cover">
<h1>{{.Name}}</h1>
<p><strong>Client:</strong> {{.Client}}</p>
<p><strong>Date:</strong> {{.Date}}</p>
</div>
<section class="executive">
<h2>Executive Summary</h2>
<p>This report summarizes {{.Total}} findings discovered during the engagement. Review all critical and high items first.</p>
<div class="summary">
{{- range .Stats}}
<div class="summary-card {{.Severity.Class}}"><strong>{{.Count}}</strong><span>{{.Severity}}</span></div>
{{- end}}
</div>
</section>
<section class="analytics">
<h2>Risk Analytics</h2>
<div class="bars">
{{- range .Bars}}
<div class="bar-row"><span class="bar-label">{{.Label}}</span><div class="bar-track"><div class="bar-fill" style="width: {{.Width}}%; background: {{.Color}};"></div></div><span class="bar-value">{{.Count}}</span></div>
{{- end}}
</div>
<h2>Findings Overview</h2>
<table class="severity-table">
<thead><tr><th>Finding</th><th>Severity</th><th>CVSS</th><th>Asset</th></tr></thead>
<tbody>
{{- range .Findings}}
<tr><td>{{.Title}}</td><td><span class="badge {{.Class}}">{{.Severity}}</span></td><td>{{.CVSS}}</td><td>{{.Asset}}</td></tr>
{{- end}}
</tbody>
</table>
</section>
<div class="findings">
<h2>Technical Findings</h2>
{{- range .Findings}}
<section class="finding">
<div class="finding-header"><h3>{{.Title}}</h3><span class="badge {{.Class}}">{{.Severity}}</span></div>
<p class="meta"><strong>Asset:</strong> {{.Asset}}</p>
<p class="meta"><strong>CVSS:</strong> {{.CVSS}}</p>
<div class="section"><h4>Description</h4>{{.Description}}</div>
{{- range .Fields}}
<div class="section"><h4>{{.Label}}</h4>{{.Body}}</div>
{{- end}}
</section>
{{- end}}
</div>
</div>
</body>
</html>
`

const findingReportTemplate = `<!doctype html>
<html>
<head>
<meta charset="utf-8" />
<title>{{.Finding.Title}} Report</title>
<style>{{template "styles"}}
.cover h4 { font-size: 12px; letter-spacing: 0.2em; text-transform: uppercase; color: #6366f1; }
.section { margin-top: 20px; }
.section-body { margin-left: 16px; padding-left: 18px; border-left: 2px solid #e2e8f0; }
</style>
</head>
<body>
<div class="page">
<div class="cover">
<h4>Security Finding Intelligence</h4>
<h1>{{.Finding.Title}}</h1>
<p class="meta"><strong>Project:</strong> {{.Project}} · <strong>Client:</strong> {{.Client}}</p>
<p class="meta"><strong>Severity:</strong> <span class="badge {{.Finding.Class}}">{{.Finding.Severity}}</span></p>
<p class="meta"><strong>Asset:</strong> {{.Finding.Asset}}</p>
<p class="meta"><strong>CVSS:</strong> {{.Finding.CVSS}}</p>
</div>
<section class="section">
<h3>Description</h3>
<div class="section-body">{{.Finding.Description}}</div>
</section>
{{- range .Finding.Fields}}
<section class="section">
<h3>{{.Label}}</h3>
<div class="section-body">{{.Body}}</div>
</section>
{{- end}}
</div>
</body>
</html>
`

const emailSummaryTemplate = `<!doctype html>
<html>
<head>
<meta charset="utf-8" />
<style>
body { font-family: 'Inter', 'Segoe UI', Arial, sans-serif; color: #e2e8f0; margin: 0; padding: 24px; background: #0b0b0e; }
.card { background: #0f1115; border: 1px solid #1f2937; border-radius: 18px; padding: 22px 24px; }
h2 { margin: 0 0 6px; font-size: 22px; font-weight: 800; color: #f8fafc; }
p { margin: 6px 0; font-size: 13px; line-height: 1.6; color: #cbd5f5; }
.label { color: #8b5cf6; font-weight: 900; text-transform: uppercase; font-size: 10px; letter-spacing: 0.32em; }
.pill { font-size: 11px; font-weight: 900; text-transform: uppercase; padding: 4px 12px; border-radius: 999px; background: rgba(148, 163, 184, 0.14); }
.pill.critical { color: #ef4444; }
.pill.high { color: #f97316; }
.pill.medium { color: #eab308; }
.pill.low { color: #3b82f6; }
.pill.info { color: #94a3b8; }
.desc { background: #0b0d12; border: 1px solid #1f2937; border-radius: 12px; padding: 12px 14px; }
.md-code { background: #111827; padding: 1px 4px; border-radius: 4px; font-size: 12px; }
.muted { color: #94a3b8; }
</style>
</head>
<body>
<div class="card">
<div class="cover">
<p class="label">Security Finding Intelligence</p>
<h2>{{.Finding.Title}}</h2>
</div>
<p class="muted"><strong>Project:</strong> {{.Project}} · <strong>Client:</strong> {{.Client}}</p>
<p><strong>Severity:</strong> <span class="pill {{.Finding.Class}}">{{.Finding.Severity}}</span></p>
<p><strong>Asset:</strong> {{.Finding.Asset}}</p>
<p><strong>CVSS:</strong> {{.Finding.CVSS}}</p>
<p class="label">Description</p>
<div class="desc">{{.Finding.Description}}</div>
</div>
</body>
</html>
`
