package database

import (
	"context"

	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// RepositoryAdapter adapts the Repositories struct to implement the Repository interface
type RepositoryAdapter struct {
	db    *DB
	repos *Repositories
}

// NewRepositoryAdapter creates a new repository adapter
func NewRepositoryAdapter(db *DB, repos *Repositories) *RepositoryAdapter {
	return &RepositoryAdapter{
		db:    db,
		repos: repos,
	}
}

var _ Repository = (*RepositoryAdapter)(nil)

// Health checks database connectivity
func (r *RepositoryAdapter) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Project operations
func (r *RepositoryAdapter) GetProjectByID(ctx context.Context, id string) (*types.Project, error) {
	return r.repos.Projects.GetByID(ctx, id)
}

func (r *RepositoryAdapter) GetProjectDescendants(ctx context.Context, id string) ([]string, error) {
	return r.repos.Projects.Descendants(ctx, id)
}

func (r *RepositoryAdapter) SaveProject(ctx context.Context, project *types.Project) error {
	return r.repos.Projects.Save(ctx, project)
}

// Issue operations
func (r *RepositoryAdapter) GetIssuesByProjectIDs(ctx context.Context, ids []string) ([]types.Finding, error) {
	return r.repos.Issues.GetByProjectIDs(ctx, ids)
}

func (r *RepositoryAdapter) GetIssueByID(ctx context.Context, id string) (*types.Finding, error) {
	return r.repos.Issues.GetByID(ctx, id)
}

func (r *RepositoryAdapter) SaveIssue(ctx context.Context, issue *types.Finding) error {
	return r.repos.Issues.Save(ctx, issue)
}

// Settings operations
func (r *RepositoryAdapter) GetSmtpSettings(ctx context.Context) (*types.SmtpSettings, error) {
	return r.repos.Settings.Get(ctx)
}

func (r *RepositoryAdapter) SaveSmtpSettings(ctx context.Context, settings *types.SmtpSettings) (*types.SmtpSettings, error) {
	return r.repos.Settings.Save(ctx, settings)
}

// History operations
func (r *RepositoryAdapter) AddEmailHistory(ctx context.Context, entry *types.EmailHistoryEntry) (*types.EmailHistoryEntry, error) {
	return r.repos.History.Add(ctx, entry)
}

func (r *RepositoryAdapter) ListEmailHistory(ctx context.Context, pagination *Pagination) ([]*types.EmailHistoryEntry, error) {
	return r.repos.History.List(ctx, pagination)
}

// Open opens, migrates and wraps the configured store
func Open(db *DB, opts Options) (*RepositoryAdapter, error) {
	if err := Migrate(db.Config()); err != nil {
		return nil, err
	}
	return NewRepositoryAdapter(db, NewRepositories(db, opts)), nil
}
