package database

import (
	"context"

	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// Repository is the store consumed by report composition, email dispatch and
// fixture import
type Repository interface {
	// Health checks database connectivity
	Health(ctx context.Context) error

	// Project operations
	GetProjectByID(ctx context.Context, id string) (*types.Project, error)
	GetProjectDescendants(ctx context.Context, id string) ([]string, error)
	SaveProject(ctx context.Context, project *types.Project) error

	// Issue operations
	GetIssuesByProjectIDs(ctx context.Context, ids []string) ([]types.Finding, error)
	GetIssueByID(ctx context.Context, id string) (*types.Finding, error)
	SaveIssue(ctx context.Context, issue *types.Finding) error

	// SMTP settings
	GetSmtpSettings(ctx context.Context) (*types.SmtpSettings, error)
	SaveSmtpSettings(ctx context.Context, settings *types.SmtpSettings) (*types.SmtpSettings, error)

	// Email history
	AddEmailHistory(ctx context.Context, entry *types.EmailHistoryEntry) (*types.EmailHistoryEntry, error)
	ListEmailHistory(ctx context.Context, pagination *Pagination) ([]*types.EmailHistoryEntry, error)
}

// Pagination represents limit/offset paging. A non-positive limit selects
// DefaultHistoryLimit.
type Pagination struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`
}

// DefaultHistoryLimit is the page size used when none is given
const DefaultHistoryLimit = 10

func (p *Pagination) normalize() (limit, offset int) {
	if p == nil {
		return DefaultHistoryLimit, 0
	}
	limit, offset = p.Limit, p.Offset
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
