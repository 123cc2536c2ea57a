package report

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NikhilSetiya/vanguard-reports/internal/assets"
	"github.com/NikhilSetiya/vanguard-reports/internal/pdf"
	"github.com/NikhilSetiya/vanguard-reports/internal/render"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/logging"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

var fixedTime = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

// memStore is an in-memory Store
type memStore struct {
	projects []types.Project
	issues   []types.Finding
	err      error
}

func (s *memStore) GetProjectByID(_ context.Context, id string) (*types.Project, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.projects {
		if s.projects[i].ID == id {
			p := s.projects[i]
			return &p, nil
		}
	}
	return nil, errors.NewNotFoundError("project")
}

func (s *memStore) GetProjectDescendants(_ context.Context, id string) ([]string, error) {
	ids := []string{id}
	seen := map[string]bool{id: true}
	for i := 0; i < len(ids); i++ {
		for _, p := range s.projects {
			if p.ParentID != nil && *p.ParentID == ids[i] && !seen[p.ID] {
				seen[p.ID] = true
				ids = append(ids, p.ID)
			}
		}
	}
	return ids, nil
}

func (s *memStore) GetIssuesByProjectIDs(_ context.Context, ids []string) ([]types.Finding, error) {
	in := map[string]bool{}
	for _, id := range ids {
		in[id] = true
	}
	var out []types.Finding
	for _, f := range s.issues {
		if in[f.ProjectID] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *memStore) GetIssueByID(_ context.Context, id string) (*types.Finding, error) {
	for i := range s.issues {
		if s.issues[i].ID == id {
			f := s.issues[i]
			return &f, nil
		}
	}
	return nil, errors.NewNotFoundError("finding")
}

func strPtr(s string) *string { return &s }

// acmeStore holds the "Acme Audit" project with a Low finding stored before
// a Critical one.
func acmeStore() *memStore {
	return &memStore{
		projects: []types.Project{
			{ID: "acme", Name: "Acme Audit", Client: "Acme Corp"},
		},
		issues: []types.Finding{
			{ID: "b", ProjectID: "acme", Title: "Finding B", Severity: types.SeverityLow, CVSSScore: "3.0"},
			{
				ID: "a", ProjectID: "acme", Title: "Finding A", Severity: types.SeverityCritical, CVSSScore: "9.1",
				Description: "Found **admin** panel at `/admin`.",
			},
		},
	}
}

type testHarness struct {
	composer  *Composer
	renderer  *Renderer
	exporter  *Exporter
	templates *TemplateManager
}

func newHarness(t *testing.T, store Store) *testHarness {
	t.Helper()

	resolver := assets.NewResolver(assets.Config{})
	templates := NewTemplateManager(render.NewHTMLRenderer(resolver), "")
	renderer := NewRenderer(templates, render.NewDOCXRenderer(resolver), pdf.NewFallbackPrinter(resolver), nil, nil)

	composer := NewComposer(store)
	composer.now = func() time.Time { return fixedTime }

	logger, err := logging.NewLogger(&logging.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	logger.SetOutput(io.Discard)

	return &testHarness{
		composer:  composer,
		renderer:  renderer,
		exporter:  NewExporter(composer, renderer, logger),
		templates: templates,
	}
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func assetURL(path string) string {
	return "vanguard://assets/" + url.PathEscape(path)
}
