// Package markup parses rich-text finding values: evidence tags of the form
// [image|url|caption] and [video|url|caption] interleaved with a small
// markdown subset.
package markup

import (
	"regexp"
	"strings"
)

// NodeKind identifies the type of a parsed segment
type NodeKind string

const (
	KindText  NodeKind = "text"
	KindImage NodeKind = "image"
	KindVideo NodeKind = "video"
)

// Node is one positional segment of a rich-text value.
// Text is set for text nodes, URL and Caption for evidence tags.
type Node struct {
	Kind    NodeKind `json:"kind"`
	URL     string   `json:"url,omitempty"`
	Caption string   `json:"caption,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// IsMedia reports whether the node is an evidence tag
func (n Node) IsMedia() bool {
	return n.Kind == KindImage || n.Kind == KindVideo
}

// Only the pipe-delimited form is recognised. Legacy colon tags and tags
// missing a pipe never match and stay in the surrounding text.
var tagPattern = regexp.MustCompile(`\[(image|video)\|([^|\]]*)\|([^|\]]*)\]`)

// Parse splits value into ordered text and evidence nodes.
// Empty text runs between adjacent tags are not emitted.
func Parse(value string) []Node {
	var nodes []Node
	last := 0

	for _, m := range tagPattern.FindAllStringSubmatchIndex(value, -1) {
		if m[0] > last {
			nodes = append(nodes, Node{Kind: KindText, Text: value[last:m[0]]})
		}
		nodes = append(nodes, Node{
			Kind:    NodeKind(value[m[2]:m[3]]),
			URL:     value[m[4]:m[5]],
			Caption: value[m[6]:m[7]],
		})
		last = m[1]
	}

	if last < len(value) {
		nodes = append(nodes, Node{Kind: KindText, Text: value[last:]})
	}
	return nodes
}

// Serialize writes nodes back to the persisted rich-text form
func Serialize(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Kind {
		case KindImage, KindVideo:
			b.WriteString("[")
			b.WriteString(string(n.Kind))
			b.WriteString("|")
			b.WriteString(n.URL)
			b.WriteString("|")
			b.WriteString(n.Caption)
			b.WriteString("]")
		default:
			b.WriteString(n.Text)
		}
	}
	return b.String()
}

// Tag formats a single evidence tag
func Tag(kind NodeKind, url, caption string) string {
	return Serialize([]Node{{Kind: kind, URL: url, Caption: caption}})
}

// Media returns the evidence nodes of value in order
func Media(value string) []Node {
	var out []Node
	for _, n := range Parse(value) {
		if n.IsMedia() {
			out = append(out, n)
		}
	}
	return out
}
