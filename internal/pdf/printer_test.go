package pdf

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/NikhilSetiya/vanguard-reports/internal/assets"
	"github.com/NikhilSetiya/vanguard-reports/internal/render"
	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(2, 2, color.RGBA{G: 200, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func assetURL(path string) string {
	return "vanguard://assets/" + url.PathEscape(path)
}

func sampleDocument(description string) *render.Document {
	project := &types.Project{ID: "p1", Name: "Acme Audit", Client: "Acme"}
	return &render.Document{
		Scope:   render.ScopeProject,
		Project: project,
		Findings: []types.Finding{
			{ID: "f1", Title: "SQL Injection", Severity: types.SeverityCritical, CVSSScore: "9.8", Description: description},
			{ID: "f2", Title: "Verbose Banner", Severity: types.SeverityLow},
		},
		Summary: render.Summary{
			Total: 2,
			Stats: []render.SeverityStat{
				{Severity: types.SeverityCritical, Count: 1, Percent: 50},
				{Severity: types.SeverityHigh},
				{Severity: types.SeverityMedium},
				{Severity: types.SeverityLow, Count: 1, Percent: 50},
				{Severity: types.SeverityInfo},
			},
		},
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func uncompressed() *FallbackPrinter {
	p := NewFallbackPrinter(assets.NewResolver(assets.Config{}))
	p.compress = false
	return p
}

func TestFallbackPrinter_Project(t *testing.T) {
	dir := t.TempDir()
	img := writePNG(t, dir, "login.png")

	doc := sampleDocument("Found **admin** panel.\n[image|" + assetURL(img) + "|Login screen]")
	out, err := uncompressed().Print(context.Background(), Job{Document: doc})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out), "Executive Summary")
	assert.Contains(t, string(out), "Found admin panel.")
	assert.Contains(t, string(out), "Login screen")
	assert.Contains(t, string(out), "/Subtype /Image")
}

func TestFallbackPrinter_MissingEvidenceDegrades(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o600))

	doc := sampleDocument(
		"[image|" + assetURL(filepath.Join(dir, "gone.png")) + "|Gone]" +
			"[image|" + assetURL(broken) + "|Broken]" +
			"[video|" + assetURL(filepath.Join(dir, "poc.mp4")) + "|]",
	)
	out, err := uncompressed().Print(context.Background(), Job{Document: doc})
	require.NoError(t, err)

	assert.Contains(t, string(out), "Image missing: gone.png")
	assert.Contains(t, string(out), "Image missing: broken.png")
	assert.Contains(t, string(out), "Video Evidence: poc.mp4")
	assert.NotContains(t, string(out), "%2F")
	assert.NotContains(t, string(out), "/Subtype /Image")
}

func TestFallbackPrinter_Finding(t *testing.T) {
	doc := sampleDocument("Reflected input.")
	doc.Scope = render.ScopeFinding
	doc.Findings = doc.Findings[:1]

	out, err := uncompressed().Print(context.Background(), Job{Document: doc})
	require.NoError(t, err)
	assert.Contains(t, string(out), "SECURITY FINDING INTELLIGENCE")
	assert.Contains(t, string(out), "Reflected input.")
	assert.NotContains(t, string(out), "Executive Summary")
}

func TestFallbackPrinter_Errors(t *testing.T) {
	p := uncompressed()

	_, err := p.Print(context.Background(), Job{})
	assert.Error(t, err)

	empty := sampleDocument("")
	empty.Scope = render.ScopeFinding
	empty.Findings = nil
	_, err = p.Print(context.Background(), Job{Document: empty})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Print(ctx, Job{Document: sampleDocument("")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_FallsBackWithoutBrowser(t *testing.T) {
	cfg := config.PDFConfig{ChromePath: filepath.Join(t.TempDir(), "no-such-chrome")}
	p := New(cfg, assets.NewResolver(assets.Config{}), zaptest.NewLogger(t))
	assert.Equal(t, "builtin", p.Name())
}

func TestChromePrinter_Print(t *testing.T) {
	p := NewChromePrinter(config.PDFConfig{Timeout: 30 * time.Second, NoSandbox: true}, zaptest.NewLogger(t))
	if !p.Available() {
		t.Skip("no headless browser installed")
	}

	out, err := p.Print(context.Background(), Job{HTML: "<html><body><h1>Report</h1></body></html>"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestHexColor(t *testing.T) {
	r, g, b := hexColor("EF4444")
	assert.Equal(t, []int{0xEF, 0x44, 0x44}, []int{r, g, b})

	r, g, b = hexColor("zz")
	assert.Equal(t, []int{0, 0, 0}, []int{r, g, b})
}

func TestStagePage(t *testing.T) {
	html := `<html><body><img src="file:///tmp/big.png"></body></html>`

	pageURL, cleanup, err := stagePage(html)
	require.NoError(t, err)
	assert.Regexp(t, `^file:///.+/report\.html$`, pageURL)

	path, ok := assets.NewResolver(assets.Config{}).LocalPath(pageURL)
	require.True(t, ok)
	staged, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, html, string(staged))

	cleanup()
	assert.NoDirExists(t, filepath.Dir(path))
}
