package markup

import (
	"regexp"
	"strings"
)

// SpanKind is an inline markdown style
type SpanKind int

const (
	SpanBold SpanKind = iota
	SpanItalic
	SpanCode
)

// Applied in slice order: bold must win over italic so **x** is never
// read as two empty italics.
var spanRules = []struct {
	kind    SpanKind
	pattern *regexp.Regexp
}{
	{SpanBold, regexp.MustCompile(`\*\*(.+?)\*\*`)},
	{SpanItalic, regexp.MustCompile(`\*(.+?)\*`)},
	{SpanCode, regexp.MustCompile("`(.+?)`")},
}

// ReplaceSpans rewrites every inline span of line with wrap(kind, inner)
func ReplaceSpans(line string, wrap func(kind SpanKind, inner string) string) string {
	for _, rule := range spanRules {
		kind := rule.kind
		line = rule.pattern.ReplaceAllStringFunc(line, func(match string) string {
			sub := rule.pattern.FindStringSubmatch(match)
			return wrap(kind, sub[1])
		})
	}
	return line
}

// StripInline removes inline markdown syntax, keeping the text
func StripInline(line string) string {
	return ReplaceSpans(line, func(_ SpanKind, inner string) string { return inner })
}

// PlainLines renders a text run as plain lines with markdown syntax removed.
// List items are prefixed with a bullet.
func PlainLines(text string) []string {
	var lines []string
	for _, b := range ParseBlocks(text) {
		switch b.Kind {
		case BlockList:
			for _, item := range b.Items {
				lines = append(lines, "• "+StripInline(item))
			}
		default:
			lines = append(lines, StripInline(b.Text))
		}
	}
	return lines
}

// PlainText flattens a whole rich-text value. Evidence tags become their
// caption, or the url when the caption is empty.
func PlainText(value string) string {
	var lines []string
	for _, n := range Parse(value) {
		if n.IsMedia() {
			label := n.Caption
			if label == "" {
				label = n.URL
			}
			lines = append(lines, label)
			continue
		}
		lines = append(lines, PlainLines(n.Text)...)
	}
	return strings.Join(lines, "\n")
}
