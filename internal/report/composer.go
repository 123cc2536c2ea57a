// Package report composes project and finding documents from the store and
// exports them as PDF, DOCX or HTML.
package report

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/NikhilSetiya/vanguard-reports/internal/render"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// Messages surfaced to the caller as {error} results
const (
	MsgProjectNotFound = "Project not found."
	MsgFindingNotFound = "Finding not found."
)

// Store is the read side of the project store used for composition
type Store interface {
	GetProjectByID(ctx context.Context, id string) (*types.Project, error)
	GetProjectDescendants(ctx context.Context, id string) ([]string, error)
	GetIssuesByProjectIDs(ctx context.Context, ids []string) ([]types.Finding, error)
	GetIssueByID(ctx context.Context, id string) (*types.Finding, error)
}

// Composer assembles report documents
type Composer struct {
	store Store
	now   func() time.Time
}

// NewComposer creates a composer reading from store
func NewComposer(store Store) *Composer {
	return &Composer{store: store, now: time.Now}
}

// ComposeProject builds the project-scope document: the project, every
// finding in its descendant tree sorted by severity, and the summary.
func (c *Composer) ComposeProject(ctx context.Context, projectID string) (*render.Document, error) {
	project, err := c.project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	ids, err := c.store.GetProjectDescendants(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	findings, err := c.store.GetIssuesByProjectIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	SortBySeverity(findings)
	return &render.Document{
		Scope:       render.ScopeProject,
		Project:     project,
		Findings:    findings,
		Summary:     Summarize(findings),
		GeneratedAt: c.now(),
	}, nil
}

// ComposeFinding builds the single-finding document
func (c *Composer) ComposeFinding(ctx context.Context, projectID, issueID string) (*render.Document, error) {
	project, err := c.project(ctx, projectID)
	if err != nil {
		return nil, err
	}

	finding, err := c.store.GetIssueByID(ctx, issueID)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return nil, errors.NewConfigurationError(MsgFindingNotFound)
		}
		return nil, err
	}
	if err := c.owns(ctx, project.ID, finding); err != nil {
		return nil, err
	}

	return &render.Document{
		Scope:       render.ScopeFinding,
		Project:     project,
		Findings:    []types.Finding{*finding},
		Summary:     Summarize([]types.Finding{*finding}),
		GeneratedAt: c.now(),
	}, nil
}

// owns reports a finding filed outside the project tree as not found
func (c *Composer) owns(ctx context.Context, projectID string, finding *types.Finding) error {
	if finding.ProjectID == projectID {
		return nil
	}
	ids, err := c.store.GetProjectDescendants(ctx, projectID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == finding.ProjectID {
			return nil
		}
	}
	return errors.NewConfigurationError(MsgFindingNotFound).WithDetail("project_id", finding.ProjectID)
}

func (c *Composer) project(ctx context.Context, id string) (*types.Project, error) {
	project, err := c.store.GetProjectByID(ctx, id)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return nil, errors.NewConfigurationError(MsgProjectNotFound)
		}
		return nil, err
	}
	return project, nil
}

// SortBySeverity orders findings by severity rank, highest first. Findings of
// equal rank keep their relative order.
func SortBySeverity(findings []types.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() > findings[j].Severity.Rank()
	})
}

// Summarize counts findings per severity. Percentages are rounded shares of
// the total, with an empty report treated as a total of one.
func Summarize(findings []types.Finding) render.Summary {
	counts := make(map[types.Severity]int, len(types.Severities))
	for _, f := range findings {
		counts[types.ParseSeverity(string(f.Severity))]++
	}

	denominator := len(findings)
	if denominator == 0 {
		denominator = 1
	}

	summary := render.Summary{Total: len(findings)}
	for _, sev := range types.Severities {
		n := counts[sev]
		summary.Stats = append(summary.Stats, render.SeverityStat{
			Severity: sev,
			Count:    n,
			Percent:  int(math.Round(float64(n) / float64(denominator) * 100)),
		})
	}
	return summary
}
