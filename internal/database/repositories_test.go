package database

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/metrics"
	"github.com/NikhilSetiya/vanguard-reports/pkg/security"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

func strPtr(s string) *string { return &s }

func newTestStore(t *testing.T, opts Options) (*RepositoryAdapter, *DB) {
	t.Helper()
	db := newTestDB(t)
	return NewRepositoryAdapter(db, NewRepositories(db, opts)), db
}

func TestProjectRepository_GetByID(t *testing.T) {
	store, _ := newTestStore(t, Options{})
	ctx := context.Background()

	lastUpdate := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.SaveProject(ctx, &types.Project{
		ID: "acme", Name: "Acme Audit", Client: "Acme Corp", Status: "Active", LastUpdate: lastUpdate,
	}))

	project, err := store.GetProjectByID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Audit", project.Name)
	assert.Equal(t, "Acme Corp", project.Client)
	assert.Nil(t, project.ParentID)
	assert.True(t, lastUpdate.Equal(project.LastUpdate))

	_, err = store.GetProjectByID(ctx, "missing")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	assert.Error(t, store.SaveProject(ctx, &types.Project{ID: "x"}))
}

func TestProjectRepository_Descendants(t *testing.T) {
	store, _ := newTestStore(t, Options{})
	ctx := context.Background()

	//   root
	//   ├── a ── a1
	//   └── b
	// c -> d -> c forms a cycle
	for _, p := range []types.Project{
		{ID: "root", Name: "Root"},
		{ID: "a", Name: "A", ParentID: strPtr("root")},
		{ID: "b", Name: "B", ParentID: strPtr("root")},
		{ID: "a1", Name: "A1", ParentID: strPtr("a")},
		{ID: "c", Name: "C", ParentID: strPtr("d")},
		{ID: "d", Name: "D", ParentID: strPtr("c")},
	} {
		p := p
		require.NoError(t, store.SaveProject(ctx, &p))
	}

	ids, err := store.GetProjectDescendants(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "a", "b", "a1"}, ids)

	ids, err = store.GetProjectDescendants(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, ids)

	ids, err = store.GetProjectDescendants(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	ids, err = store.GetProjectDescendants(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestIssueRepository_Defaults(t *testing.T) {
	store, db := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, store.SaveProject(ctx, &types.Project{ID: "p", Name: "P"}))
	_, err := db.ExecContext(ctx, `INSERT INTO issues (id, project_id, severity, custom_fields) VALUES ('bare', 'p', 'catastrophic', 'not json')`)
	require.NoError(t, err)

	issue, err := store.GetIssueByID(ctx, "bare")
	require.NoError(t, err)
	assert.Equal(t, DefaultIssueTitle, issue.Title)
	assert.Equal(t, types.SeverityInfo, issue.Severity)
	assert.Equal(t, DefaultCVSSScore, issue.CVSSScore)
	assert.Equal(t, types.StateDraft, issue.State)
	assert.Equal(t, types.FindingTypeInternal, issue.Type)
	assert.False(t, issue.IsFixed)
	assert.Empty(t, issue.CustomFields)

	_, err = store.GetIssueByID(ctx, "missing")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestIssueRepository_SaveAndList(t *testing.T) {
	store, _ := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, store.SaveProject(ctx, &types.Project{ID: "root", Name: "Root"}))
	require.NoError(t, store.SaveProject(ctx, &types.Project{ID: "child", Name: "Child", ParentID: strPtr("root")}))
	require.NoError(t, store.SaveProject(ctx, &types.Project{ID: "other", Name: "Other"}))

	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	issues := []*types.Finding{
		{ID: "old", ProjectID: "root", Title: "Old", Severity: types.SeverityHigh, UpdatedAt: base},
		{
			ID: "new", ProjectID: "child", Title: "New", Severity: types.SeverityCritical, IsFixed: true,
			CVSSScore: "9.1", CVSSVector: "AV:N", Description: "Found **admin**",
			CustomFields: []types.CustomField{{ID: "impact", Label: "Impact", Value: "Total"}},
			UpdatedAt:    base.Add(time.Hour),
		},
		{ID: "elsewhere", ProjectID: "other", Title: "Elsewhere", UpdatedAt: base.Add(2 * time.Hour)},
	}
	for _, issue := range issues {
		require.NoError(t, store.SaveIssue(ctx, issue))
	}

	ids, err := store.GetProjectDescendants(ctx, "root")
	require.NoError(t, err)

	findings, err := store.GetIssuesByProjectIDs(ctx, ids)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "new", findings[0].ID)
	assert.Equal(t, "old", findings[1].ID)

	got := findings[0]
	assert.True(t, got.IsFixed)
	assert.Equal(t, "9.1", got.CVSSScore)
	assert.Equal(t, "Found **admin**", got.Description)
	assert.Equal(t, []types.CustomField{{ID: "impact", Label: "Impact", Value: "Total"}}, got.CustomFields)
	assert.True(t, base.Add(time.Hour).Equal(got.UpdatedAt))

	// upsert replaces in place
	issues[1].Title = "Renamed"
	require.NoError(t, store.SaveIssue(ctx, issues[1]))
	renamed, err := store.GetIssueByID(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Title)

	empty, err := store.GetIssuesByProjectIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.Error(t, store.SaveIssue(ctx, &types.Finding{Title: "orphan"}))
}

func TestSettingsRepository(t *testing.T) {
	enc := security.NewEncryptionService("test-secret")
	store, db := newTestStore(t, Options{Encryption: enc})
	ctx := context.Background()

	_, err := store.GetSmtpSettings(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	saved, err := store.SaveSmtpSettings(ctx, &types.SmtpSettings{
		Host: " smtp.example.com ", Port: 587, User: "reports@example.com", Pass: "app-password", From: "team@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", saved.Host)
	assert.Equal(t, "app-password", saved.Pass)
	assert.True(t, saved.Complete())

	var stored string
	require.NoError(t, db.GetContext(ctx, &stored, `SELECT pass FROM smtp_settings WHERE id = 1`))
	assert.True(t, security.IsSealed(stored))
	assert.NotContains(t, stored, "app-password")

	// single row
	_, err = store.SaveSmtpSettings(ctx, &types.SmtpSettings{Host: "mail.example.com", Port: 465})
	require.NoError(t, err)
	var rows int
	require.NoError(t, db.GetContext(ctx, &rows, `SELECT COUNT(*) FROM smtp_settings`))
	assert.Equal(t, 1, rows)
}

func TestHistoryRepository_Dedup(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(&metrics.Config{Namespace: "test", Enabled: true, Registry: registry})

	db := newTestDB(t)
	db.Instrument(m, nil)
	repo := NewHistoryRepository(db, 5*time.Second)
	ctx := context.Background()

	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	entry := func(at time.Time) *types.EmailHistoryEntry {
		return &types.EmailHistoryEntry{
			ProjectID: "acme", ProjectName: "Acme Audit",
			IssueID: "a", IssueTitle: "Admin panel",
			Recipient: "client@example.com", Subject: "Finding Report: Admin panel",
			Format: types.FormatPDF, SentAt: at,
		}
	}

	first, err := repo.Add(ctx, entry(base))
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, types.EmailStatusSent, first.Status)

	dup, err := repo.Add(ctx, entry(base.Add(3*time.Second)))
	require.NoError(t, err)
	assert.Nil(t, dup)

	later, err := repo.Add(ctx, entry(base.Add(10*time.Second)))
	require.NoError(t, err)
	assert.NotNil(t, later)

	// a different finding is never a duplicate
	other := entry(base.Add(11 * time.Second))
	other.IssueID = "b"
	got, err := repo.Add(ctx, other)
	require.NoError(t, err)
	assert.NotNil(t, got)

	entries, err := repo.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(`
# HELP test_email_history_deduplicated_total History entries suppressed as near duplicates
# TYPE test_email_history_deduplicated_total counter
test_email_history_deduplicated_total 1
`), "test_email_history_deduplicated_total"))

	_, err = repo.Add(ctx, &types.EmailHistoryEntry{Subject: "no recipient"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestHistoryRepository_DedupDisabled(t *testing.T) {
	db := newTestDB(t)
	repo := NewHistoryRepository(db, 0)
	ctx := context.Background()

	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		got, err := repo.Add(ctx, &types.EmailHistoryEntry{Recipient: "a@example.com", Subject: "s", SentAt: at})
		require.NoError(t, err)
		assert.NotNil(t, got)
	}
}

func TestHistoryRepository_List(t *testing.T) {
	store, _ := newTestStore(t, Options{DedupWindow: 5 * time.Second})
	ctx := context.Background()

	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		_, err := store.AddEmailHistory(ctx, &types.EmailHistoryEntry{
			Recipient: "client@example.com",
			Subject:   "Project Report: Acme",
			ProjectID: "acme",
			Format:    types.FormatDOCX,
			SentAt:    base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	page, err := store.ListEmailHistory(ctx, &Pagination{})
	require.NoError(t, err)
	require.Len(t, page, DefaultHistoryLimit)
	assert.True(t, base.Add(11*time.Minute).Equal(page[0].SentAt))
	assert.Equal(t, types.FormatDOCX, page[0].Format)
	assert.Empty(t, page[0].IssueID)

	rest, err := store.ListEmailHistory(ctx, &Pagination{Limit: 10, Offset: 10})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.True(t, base.Equal(rest[1].SentAt))
}
