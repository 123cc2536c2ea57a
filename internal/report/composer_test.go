package report

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NikhilSetiya/vanguard-reports/internal/render"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

func TestComposeProject_AcmeAudit(t *testing.T) {
	h := newHarness(t, acmeStore())

	doc, err := h.composer.ComposeProject(context.Background(), "acme")
	require.NoError(t, err)

	require.Len(t, doc.Findings, 2)
	assert.Equal(t, "Finding A", doc.Findings[0].Title)
	assert.Equal(t, "Finding B", doc.Findings[1].Title)

	assert.Equal(t, 2, doc.Summary.Total)
	assert.Equal(t, 1, doc.Summary.Count(types.SeverityCritical))
	assert.Equal(t, 0, doc.Summary.Count(types.SeverityHigh))
	assert.Equal(t, 0, doc.Summary.Count(types.SeverityMedium))
	assert.Equal(t, 1, doc.Summary.Count(types.SeverityLow))
	assert.Equal(t, 0, doc.Summary.Count(types.SeverityInfo))
	assert.Equal(t, fixedTime, doc.GeneratedAt)
}

func TestComposeProject_IncludesDescendants(t *testing.T) {
	store := &memStore{
		projects: []types.Project{
			{ID: "root", Name: "Root"},
			{ID: "child", Name: "Child", ParentID: strPtr("root")},
			{ID: "grandchild", Name: "Grandchild", ParentID: strPtr("child")},
			{ID: "other", Name: "Other"},
		},
		issues: []types.Finding{
			{ID: "1", ProjectID: "root", Title: "root finding"},
			{ID: "2", ProjectID: "grandchild", Title: "deep finding"},
			{ID: "3", ProjectID: "other", Title: "unrelated"},
		},
	}
	h := newHarness(t, store)

	doc, err := h.composer.ComposeProject(context.Background(), "root")
	require.NoError(t, err)

	var titles []string
	for _, f := range doc.Findings {
		titles = append(titles, f.Title)
	}
	assert.ElementsMatch(t, []string{"root finding", "deep finding"}, titles)
}

func TestComposeProject_Errors(t *testing.T) {
	h := newHarness(t, acmeStore())
	_, err := h.composer.ComposeProject(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
	assert.Equal(t, MsgProjectNotFound, errors.UserMessage(err))

	down := &memStore{err: errors.NewInternalError("database is closed")}
	h = newHarness(t, down)
	_, err = h.composer.ComposeProject(context.Background(), "acme")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

func TestComposeFinding(t *testing.T) {
	h := newHarness(t, acmeStore())

	doc, err := h.composer.ComposeFinding(context.Background(), "acme", "a")
	require.NoError(t, err)
	assert.Equal(t, render.ScopeFinding, doc.Scope)
	assert.Equal(t, "Finding A", doc.Finding().Title)
	assert.Equal(t, "Acme Audit", doc.Project.Name)

	_, err = h.composer.ComposeFinding(context.Background(), "acme", "zzz")
	require.Error(t, err)
	assert.Equal(t, MsgFindingNotFound, errors.UserMessage(err))
}

func TestComposeFinding_ProjectTree(t *testing.T) {
	store := acmeStore()
	store.projects = append(store.projects,
		types.Project{ID: "web", Name: "Web", ParentID: strPtr("acme")},
		types.Project{ID: "globex", Name: "Globex Review"},
	)
	store.issues = append(store.issues,
		types.Finding{ID: "w1", ProjectID: "web", Title: "Stored XSS", Severity: types.SeverityHigh},
		types.Finding{ID: "g1", ProjectID: "globex", Title: "Open bucket", Severity: types.SeverityMedium},
	)
	h := newHarness(t, store)

	tests := []struct {
		name      string
		projectID string
		issueID   string
		wantErr   bool
	}{
		{name: "own project", projectID: "acme", issueID: "a"},
		{name: "sub-project finding", projectID: "acme", issueID: "w1"},
		{name: "other project", projectID: "acme", issueID: "g1", wantErr: true},
		{name: "parent finding under child", projectID: "web", issueID: "a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := h.composer.ComposeFinding(context.Background(), tt.projectID, tt.issueID)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
				assert.Equal(t, MsgFindingNotFound, errors.UserMessage(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.issueID, doc.Finding().ID)
		})
	}
}

func TestSortBySeverity_StableDescending(t *testing.T) {
	sev := []types.Severity{
		types.SeverityLow, types.SeverityCritical, types.SeverityInfo, types.SeverityLow,
		types.SeverityHigh, types.SeverityCritical, types.SeverityMedium, types.SeverityInfo,
	}
	var findings []types.Finding
	for i, s := range sev {
		findings = append(findings, types.Finding{ID: fmt.Sprint(i), Severity: s})
	}

	SortBySeverity(findings)

	var ids []string
	for i, f := range findings {
		ids = append(ids, f.ID)
		if i > 0 {
			assert.GreaterOrEqual(t, findings[i-1].Severity.Rank(), f.Severity.Rank())
		}
	}
	// ties keep input order
	assert.Equal(t, []string{"1", "5", "4", "6", "0", "3", "2", "7"}, ids)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		findings []types.Finding
		want     map[types.Severity][2]int // count, percent
	}{
		{
			name:     "empty",
			findings: nil,
			want:     map[types.Severity][2]int{types.SeverityCritical: {0, 0}, types.SeverityInfo: {0, 0}},
		},
		{
			name: "rounded shares",
			findings: []types.Finding{
				{Severity: types.SeverityCritical},
				{Severity: types.SeverityLow},
				{Severity: types.SeverityLow},
			},
			want: map[types.Severity][2]int{types.SeverityCritical: {1, 33}, types.SeverityLow: {2, 67}},
		},
		{
			name:     "unknown severity counts as info",
			findings: []types.Finding{{Severity: "Severe"}},
			want:     map[types.Severity][2]int{types.SeverityInfo: {1, 100}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(tt.findings)
			assert.Equal(t, len(tt.findings), s.Total)
			require.Len(t, s.Stats, len(types.Severities))
			assert.Equal(t, types.SeverityCritical, s.Stats[0].Severity)
			for _, st := range s.Stats {
				if want, ok := tt.want[st.Severity]; ok {
					assert.Equal(t, want[0], st.Count, st.Severity)
					assert.Equal(t, want[1], st.Percent, st.Severity)
				}
			}
		})
	}
}
