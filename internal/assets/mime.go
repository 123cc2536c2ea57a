package assets

import (
	"path/filepath"
	"strings"
)

var mimeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

// MIMEType returns the content type for path based on its extension
func MIMEType(path string) string {
	if t, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "application/octet-stream"
}

// IsVideo reports whether path has a video extension
func IsVideo(path string) bool {
	return strings.HasPrefix(MIMEType(path), "video/")
}
