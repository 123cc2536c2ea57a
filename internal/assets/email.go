package assets

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Embedded is a local file referenced from email HTML by content-ID
type Embedded struct {
	Filename    string
	Path        string
	ContentID   string
	ContentType string
	Video       bool
}

var (
	imgTagPattern   = regexp.MustCompile(`<img[^>]+src="([^"]+)"[^>]*>`)
	videoTagPattern = regexp.MustCompile(`(?s)<video[^>]+src="([^"]+)"[^>]*>.*?</video>`)
)

// PrepareEmailHTML rewrites local media in body for email delivery. Each
// resolvable image src becomes cid:<id>; each video tag becomes a plain
// "attached" notice. Every referenced file is returned once, keyed by path.
// References to files that do not exist are left untouched.
func (r *Resolver) PrepareEmailHTML(body string) (string, []Embedded) {
	var embedded []Embedded
	byPath := make(map[string]int)

	attach := func(rawSrc string) (Embedded, bool) {
		path, ok := r.LocalPath(html.UnescapeString(rawSrc))
		if !ok {
			return Embedded{}, false
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return Embedded{}, false
		}
		if i, seen := byPath[path]; seen {
			return embedded[i], true
		}

		e := Embedded{
			Filename:    filepath.Base(path),
			Path:        path,
			ContentID:   fmt.Sprintf("asset-%d@vanguard", len(embedded)+1),
			ContentType: MIMEType(path),
			Video:       IsVideo(path),
		}
		byPath[path] = len(embedded)
		embedded = append(embedded, e)
		return e, true
	}

	body = imgTagPattern.ReplaceAllStringFunc(body, func(tag string) string {
		src := imgTagPattern.FindStringSubmatch(tag)[1]
		e, ok := attach(src)
		if !ok {
			return tag
		}
		return strings.Replace(tag, `src="`+src+`"`, `src="cid:`+e.ContentID+`"`, 1)
	})

	body = videoTagPattern.ReplaceAllStringFunc(body, func(tag string) string {
		src := videoTagPattern.FindStringSubmatch(tag)[1]
		e, ok := attach(src)
		if !ok {
			return tag
		}
		return "<p><strong>Video Evidence:</strong> " + html.EscapeString(e.Filename) + " (attached)</p>"
	})

	return body, embedded
}
