package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/NikhilSetiya/vanguard-reports/internal/assets"
	"github.com/NikhilSetiya/vanguard-reports/internal/markup"
)

// HTMLOptions controls media handling in rendered rich text
type HTMLOptions struct {
	// IncludeVideos renders <video> elements. Print output disables it and
	// gets a plain text note instead.
	IncludeVideos bool
	// InlineImages embeds images at or under the resolver threshold as data
	// URIs. Email bodies disable it so every image becomes a file reference
	// that can be rewritten to a content-ID.
	InlineImages bool
}

// PreviewOptions is used for in-app preview and HTML export
var PreviewOptions = HTMLOptions{IncludeVideos: true, InlineImages: true}

// PrintOptions is the no-video variant consumed by PDF export
var PrintOptions = HTMLOptions{IncludeVideos: false, InlineImages: true}

// EmailOptions keeps media as local references for content-ID rewriting
var EmailOptions = HTMLOptions{IncludeVideos: true, InlineImages: false}

// HTMLRenderer renders rich-text values to HTML fragments
type HTMLRenderer struct {
	resolver *assets.Resolver
}

// NewHTMLRenderer creates an HTML renderer backed by resolver
func NewHTMLRenderer(resolver *assets.Resolver) *HTMLRenderer {
	return &HTMLRenderer{resolver: resolver}
}

// Escape HTML-escapes user text
func Escape(s string) string {
	return html.EscapeString(s)
}

// RichText renders a persisted rich-text value
func (r *HTMLRenderer) RichText(value string, opts HTMLOptions) string {
	var b strings.Builder
	for _, node := range markup.Parse(value) {
		switch node.Kind {
		case markup.KindImage:
			b.WriteString(r.image(node, opts))
		case markup.KindVideo:
			b.WriteString(r.video(node, opts))
		default:
			b.WriteString(Markdown(node.Text))
		}
	}
	return b.String()
}

// Markdown renders a plain text run through the markdown subset.
// Text is escaped before any markup is substituted.
func Markdown(text string) string {
	var b strings.Builder
	for _, block := range markup.ParseBlocks(text) {
		switch block.Kind {
		case markup.BlockHeading:
			fmt.Fprintf(&b, `<h%d class="md-heading md-h%d">%s</h%d>`, block.Level, block.Level, Inline(block.Text), block.Level)
		case markup.BlockList:
			b.WriteString(`<ul class="md-list">`)
			for _, item := range block.Items {
				b.WriteString(`<li class="md-item">` + Inline(item) + `</li>`)
			}
			b.WriteString(`</ul>`)
		default:
			b.WriteString(`<p class="md-paragraph">` + Inline(block.Text) + `</p>`)
		}
	}
	return b.String()
}

// Inline escapes line and applies bold, italic and code spans
func Inline(line string) string {
	return markup.ReplaceSpans(Escape(line), func(kind markup.SpanKind, inner string) string {
		switch kind {
		case markup.SpanBold:
			return `<strong class="md-strong">` + inner + `</strong>`
		case markup.SpanItalic:
			return `<em class="md-em">` + inner + `</em>`
		default:
			return `<code class="md-code">` + inner + `</code>`
		}
	})
}

func (r *HTMLRenderer) image(node markup.Node, opts HTMLOptions) string {
	src := r.resolver.Source(node.URL, opts.InlineImages)
	if src.Kind == assets.SourceMissing {
		return r.missingFigure("Image", node)
	}

	return `<figure class="media media-image"><img class="media-img" src="` + Escape(src.Value) +
		`" alt="` + Escape(node.Caption) + `"/>` + figcaption(node.Caption) + `</figure>`
}

func (r *HTMLRenderer) video(node markup.Node, opts HTMLOptions) string {
	src := r.resolver.Source(node.URL, false)

	if !opts.IncludeVideos {
		name := r.resolver.FileName(node.URL)
		label := node.Caption
		if label == "" {
			label = name
		}
		return `<p class="media-note"><strong>Video Evidence:</strong> ` + Escape(label) +
			` (` + Escape(name) + `)</p>`
	}

	if src.Kind == assets.SourceMissing {
		return r.missingFigure("Video", node)
	}

	contentType := src.ContentType
	if contentType == "" {
		contentType = assets.MIMEType(node.URL)
	}
	s := Escape(src.Value)
	return `<figure class="media media-video"><video class="media-vid" src="` + s + `" controls>` +
		`<source src="` + s + `" type="` + contentType + `"></video>` + figcaption(node.Caption) + `</figure>`
}

func (r *HTMLRenderer) missingFigure(kind string, node markup.Node) string {
	name := r.resolver.FileName(node.URL)
	if name == "" {
		name = node.Caption
	}
	if name == "" {
		name = "evidence"
	}
	return `<figure class="media media-missing"><div class="media-placeholder">` + kind +
		` missing: ` + Escape(name) + `</div>` + figcaption(node.Caption) + `</figure>`
}

func figcaption(caption string) string {
	return `<figcaption>` + Escape(caption) + `</figcaption>`
}
