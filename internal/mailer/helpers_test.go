package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/NikhilSetiya/vanguard-reports/internal/assets"
	"github.com/NikhilSetiya/vanguard-reports/internal/pdf"
	"github.com/NikhilSetiya/vanguard-reports/internal/render"
	"github.com/NikhilSetiya/vanguard-reports/internal/report"
	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/logging"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// memStore is an in-memory Store
type memStore struct {
	mu       sync.Mutex
	projects []types.Project
	issues   []types.Finding
	settings   *types.SmtpSettings
	history    []types.EmailHistoryEntry
	historyErr error
}

func (s *memStore) GetProjectByID(_ context.Context, id string) (*types.Project, error) {
	for i := range s.projects {
		if s.projects[i].ID == id {
			p := s.projects[i]
			return &p, nil
		}
	}
	return nil, errors.NewNotFoundError("project")
}

func (s *memStore) GetProjectDescendants(_ context.Context, id string) ([]string, error) {
	return []string{id}, nil
}

func (s *memStore) GetIssuesByProjectIDs(_ context.Context, ids []string) ([]types.Finding, error) {
	var out []types.Finding
	for _, f := range s.issues {
		for _, id := range ids {
			if f.ProjectID == id {
				out = append(out, f)
			}
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

func (s *memStore) GetSmtpSettings(context.Context) (*types.SmtpSettings, error) {
	if s.settings == nil {
		return nil, errors.NewNotFoundError("smtp settings")
	}
	cp := *s.settings
	return &cp, nil
}

func (s *memStore) AddEmailHistory(_ context.Context, entry *types.EmailHistoryEntry) (*types.EmailHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	s.history = append(s.history, *entry)
	return entry, nil
}

func completeSettings() *types.SmtpSettings {
	return &types.SmtpSettings{
		Host: "smtp.example.com",
		Port: 587,
		User: "reports@example.com",
		Pass: "app-password",
		From: "team@example.com",
	}
}

func acmeStore() *memStore {
	return &memStore{
		projects: []types.Project{{ID: "acme", Name: "Acme Audit", Client: "Acme Corp"}},
		issues: []types.Finding{
			{
				ID: "a", ProjectID: "acme", Title: "Finding A", Severity: types.SeverityCritical, CVSSScore: "9.1",
				Description: "Found **admin** panel at `/admin`.",
			},
			{ID: "b", ProjectID: "acme", Title: "Finding B", Severity: types.SeverityLow, CVSSScore: "3.0"},
		},
		settings: completeSettings(),
	}
}

// mockTransport records every message handed to it
type mockTransport struct {
	mock.Mock
	mu   sync.Mutex
	sent []*EmailMessage
}

func (m *mockTransport) Send(ctx context.Context, settings *types.SmtpSettings, msg *EmailMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	args := m.Called(ctx, settings, msg)
	return args.Error(0)
}

func (m *mockTransport) last() *EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

func testEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		SendTimeout: 10 * time.Second,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		DedupWindow: 5 * time.Second,
	}
}

func newTestDispatcher(t *testing.T, store Store, transport Transport) *Dispatcher {
	t.Helper()

	resolver := assets.NewResolver(assets.Config{})
	templates := report.NewTemplateManager(render.NewHTMLRenderer(resolver), "")
	renderer := report.NewRenderer(templates, render.NewDOCXRenderer(resolver), pdf.NewFallbackPrinter(resolver), nil, nil)

	return NewDispatcher(store, renderer, resolver, transport, testEmailConfig(), nil, nil, zaptest.NewLogger(t))
}

// captureEvents points the dispatcher's event log at a buffer and returns the
// decoded entries on demand
func captureEvents(t *testing.T, d *Dispatcher) func() []map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	events, err := logging.NewLogger(&logging.Config{Level: "info", Format: "json", ServiceName: "vanguard-test"})
	require.NoError(t, err)
	events.SetOutput(&buf)
	d.events = events

	return func() []map[string]interface{} {
		var out []map[string]interface{}
		for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
			if len(line) == 0 {
				continue
			}
			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(line, &entry))
			out = append(out, entry)
		}
		return out
	}
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func assetURL(path string) string {
	return "vanguard://assets/" + url.PathEscape(path)
}

func attachmentByName(msg *EmailMessage, name string) (Attachment, bool) {
	for _, a := range msg.Attachments {
		if a.Filename == name {
			return a, true
		}
	}
	return Attachment{}, false
}
