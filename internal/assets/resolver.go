// Package assets resolves evidence references to local files and applies
// the inlining and content-ID policies used by the report renderers.
package assets

import (
	"encoding/base64"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
)

// DefaultInlineThreshold is the largest image inlined as a data URI
const DefaultInlineThreshold int64 = 2 * 1024 * 1024

// Config configures a Resolver
type Config struct {
	// Scheme is the private local-asset URL scheme, e.g. "vanguard"
	Scheme string
	// InlineThreshold is the maximum size in bytes inlined as a data URI
	InlineThreshold int64
}

// Resolver maps evidence references to local files
type Resolver struct {
	prefix    string
	threshold int64
}

// NewResolver creates a resolver. Zero values fall back to the vanguard
// scheme and the 2 MiB threshold.
func NewResolver(cfg Config) *Resolver {
	if cfg.Scheme == "" {
		cfg.Scheme = "vanguard"
	}
	if cfg.InlineThreshold <= 0 {
		cfg.InlineThreshold = DefaultInlineThreshold
	}
	return &Resolver{
		prefix:    strings.ToLower(cfg.Scheme) + "://",
		threshold: cfg.InlineThreshold,
	}
}

// Threshold returns the inlining threshold in bytes
func (r *Resolver) Threshold() int64 {
	return r.threshold
}

var windowsDrive = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

// LocalPath resolves ref to an absolute local path. It recognises, in order,
// the private asset scheme, file:// URLs and bare absolute paths. Anything
// else is unresolvable.
func (r *Resolver) LocalPath(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}

	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, r.prefix):
		return r.schemePath(ref[len(r.prefix):])
	case strings.HasPrefix(lower, "file://"):
		return filePath(ref)
	case windowsDrive.MatchString(ref), strings.HasPrefix(ref, "/"):
		return ref, true
	}
	return "", false
}

// schemePath decodes the part after "<scheme>://". The assets host carries
// the whole absolute path URL-encoded as its first path segment.
func (r *Resolver) schemePath(rest string) (string, bool) {
	host, p, _ := strings.Cut(rest, "/")

	var decoded string
	var err error
	if strings.EqualFold(host, "assets") {
		decoded, err = url.PathUnescape(strings.TrimLeft(p, "/"))
	} else {
		decoded, err = url.PathUnescape("/" + p)
	}
	if err != nil || decoded == "" {
		return "", false
	}
	return decoded, true
}

func filePath(ref string) (string, bool) {
	var p string
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	} else {
		unescaped, err := url.PathUnescape(ref[len("file://"):])
		if err != nil {
			return "", false
		}
		p = unescaped
	}

	// file:///C:/x parses to /C:/x
	if len(p) > 2 && p[0] == '/' && windowsDrive.MatchString(p[1:]) {
		p = p[1:]
	}
	if p == "" {
		return "", false
	}
	return filepath.FromSlash(p), true
}

// FileName returns the base name of the file ref points at, for placeholders
// and attachment lists. It is empty when ref names nothing.
func (r *Resolver) FileName(ref string) string {
	if p, ok := r.LocalPath(ref); ok {
		return path.Base(strings.ReplaceAll(p, "\\", "/"))
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.Path != "" && u.Path != "/" {
		return path.Base(u.Path)
	}
	return ref
}

// FileURL builds a file:// URL for an absolute local path
func FileURL(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// SourceKind describes how an evidence reference is emitted in HTML
type SourceKind int

const (
	// SourceDataURI is an inlined base64 data URI
	SourceDataURI SourceKind = iota
	// SourceFile is a file:// reference to an existing local file
	SourceFile
	// SourcePassthrough is a reference that is not a local file
	SourcePassthrough
	// SourceMissing is a local reference whose file does not exist
	SourceMissing
)

// Source is the resolved form of an evidence reference
type Source struct {
	Kind        SourceKind
	Value       string
	Path        string
	Size        int64
	ContentType string
}

// Source resolves ref for embedding in HTML. When inline is true, files at or
// under the threshold become data URIs; larger files and every file when
// inline is false become file:// references.
func (r *Resolver) Source(ref string, inline bool) Source {
	path, ok := r.LocalPath(ref)
	if !ok {
		return Source{Kind: SourcePassthrough, Value: ref}
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Source{Kind: SourceMissing, Value: ref, Path: path}
	}

	src := Source{
		Kind:        SourceFile,
		Value:       FileURL(path),
		Path:        path,
		Size:        info.Size(),
		ContentType: MIMEType(path),
	}

	if inline && info.Size() <= r.threshold {
		data, err := os.ReadFile(path)
		if err != nil {
			return Source{Kind: SourceMissing, Value: ref, Path: path}
		}
		src.Kind = SourceDataURI
		src.Value = DataURI(src.ContentType, data)
	}
	return src
}

// Read loads the bytes behind ref
func (r *Resolver) Read(ref string) ([]byte, string, error) {
	path, ok := r.LocalPath(ref)
	if !ok {
		return nil, "", errors.NewAssetError(ref, "evidence reference is not a local file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, errors.NewAssetError(path, "evidence file is not readable").WithCause(err)
	}
	return data, path, nil
}

// DataURI encodes data as a base64 data URI
func DataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
