package database

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/security"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// Timestamps are stored as fixed-width UTC text so they sort lexically in
// SQLite. Postgres columns are TIMESTAMPTZ and accept the same text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Issue defaults applied when stored columns are empty
const (
	DefaultIssueTitle = "Untitled Finding"
	DefaultCVSSScore  = "0.0"
)

// ProjectRepository handles project tree queries
type ProjectRepository struct {
	db  *DB
	now func() time.Time
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db, now: time.Now}
}

type projectRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Client     string         `db:"client"`
	Status     string         `db:"status"`
	ParentID   sql.NullString `db:"parent_id"`
	LastUpdate sql.NullString `db:"last_update"`
}

func (r projectRow) toProject() *types.Project {
	p := &types.Project{
		ID:         r.ID,
		Name:       r.Name,
		Client:     r.Client,
		Status:     r.Status,
		LastUpdate: parseTime(r.LastUpdate.String),
	}
	if r.ParentID.Valid && r.ParentID.String != "" {
		parent := r.ParentID.String
		p.ParentID = &parent
	}
	return p
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*types.Project, error) {
	var row projectRow
	query := r.db.Rebind(`SELECT id, name, client, status, parent_id, last_update FROM projects WHERE id = ?`)

	err := r.db.observe(ctx, "select", "projects", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &row, query, id)
	})
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("project")
		}
		return nil, errors.NewInternalError("failed to get project by ID").WithCause(err)
	}

	return row.toProject(), nil
}

// Children returns the IDs of the direct sub-projects of id
func (r *ProjectRepository) Children(ctx context.Context, id string) ([]string, error) {
	var ids []string
	query := r.db.Rebind(`SELECT id FROM projects WHERE parent_id = ? ORDER BY id`)

	err := r.db.observe(ctx, "select", "projects", func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &ids, query, id)
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to list child projects").WithCause(err)
	}
	return ids, nil
}

// Descendants returns id followed by every transitive sub-project in
// breadth-first order. Each project appears once even when parent links form
// a cycle.
func (r *ProjectRepository) Descendants(ctx context.Context, id string) ([]string, error) {
	ids := []string{}
	if id == "" {
		return ids, nil
	}

	visited := map[string]bool{}
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == "" || visited[current] {
			continue
		}
		visited[current] = true
		ids = append(ids, current)

		children, err := r.Children(ctx, current)
		if err != nil {
			return nil, err
		}
		queue = append(queue, children...)
	}
	return ids, nil
}

// Save inserts or updates a project
func (r *ProjectRepository) Save(ctx context.Context, project *types.Project) error {
	if project == nil || strings.TrimSpace(project.Name) == "" {
		return errors.NewValidationError("project name is required")
	}
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if project.LastUpdate.IsZero() {
		project.LastUpdate = r.now()
	}

	var parent interface{}
	if project.ParentID != nil && *project.ParentID != "" {
		parent = *project.ParentID
	}

	query := r.db.Rebind(`
		INSERT INTO projects (id, name, client, status, parent_id, last_update)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			client = excluded.client,
			status = excluded.status,
			parent_id = excluded.parent_id,
			last_update = excluded.last_update`)

	err := r.db.observe(ctx, "upsert", "projects", func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query,
			project.ID, project.Name, project.Client, project.Status, parent, formatTime(project.LastUpdate))
		return err
	})
	if err != nil {
		return errors.NewInternalError("failed to save project").WithCause(err)
	}
	return nil
}

// IssueRepository handles finding queries
type IssueRepository struct {
	db  *DB
	now func() time.Time
}

// NewIssueRepository creates a new issue repository
func NewIssueRepository(db *DB) *IssueRepository {
	return &IssueRepository{db: db, now: time.Now}
}

const issueColumns = `id, project_id,
	COALESCE(title, '') AS title,
	COALESCE(severity, '') AS severity,
	COALESCE(state, '') AS state,
	is_fixed,
	COALESCE(cvss_score, '') AS cvss_score,
	COALESCE(cvss_vector, '') AS cvss_vector,
	COALESCE(affected, '') AS affected,
	COALESCE(type, '') AS type,
	COALESCE(description, '') AS description,
	custom_fields,
	updated_at`

type issueRow struct {
	ID           string         `db:"id"`
	ProjectID    string         `db:"project_id"`
	Title        string         `db:"title"`
	Severity     string         `db:"severity"`
	State        string         `db:"state"`
	IsFixed      bool           `db:"is_fixed"`
	CVSSScore    string         `db:"cvss_score"`
	CVSSVector   string         `db:"cvss_vector"`
	Affected     string         `db:"affected"`
	Type         string         `db:"type"`
	Description  string         `db:"description"`
	CustomFields sql.NullString `db:"custom_fields"`
	UpdatedAt    sql.NullString `db:"updated_at"`
}

// toFinding applies the display defaults for empty columns
func (r issueRow) toFinding() types.Finding {
	f := types.Finding{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Title:       r.Title,
		Severity:    types.ParseSeverity(r.Severity),
		State:       types.FindingState(r.State),
		IsFixed:     r.IsFixed,
		CVSSScore:   r.CVSSScore,
		CVSSVector:  r.CVSSVector,
		Affected:    r.Affected,
		Type:        types.FindingType(r.Type),
		Description: r.Description,
		UpdatedAt:   parseTime(r.UpdatedAt.String),
	}
	if strings.TrimSpace(f.Title) == "" {
		f.Title = DefaultIssueTitle
	}
	if f.State == "" {
		f.State = types.StateDraft
	}
	if f.CVSSScore == "" {
		f.CVSSScore = DefaultCVSSScore
	}
	if f.Type == "" {
		f.Type = types.FindingTypeInternal
	}
	f.CustomFields = decodeCustomFields(r.CustomFields.String)
	return f
}

// decodeCustomFields tolerates empty or malformed JSON by returning no fields
func decodeCustomFields(raw string) []types.CustomField {
	fields := []types.CustomField{}
	if strings.TrimSpace(raw) == "" {
		return fields
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return []types.CustomField{}
	}
	return fields
}

// GetByID retrieves a finding by ID
func (r *IssueRepository) GetByID(ctx context.Context, id string) (*types.Finding, error) {
	var row issueRow
	query := r.db.Rebind(`SELECT ` + issueColumns + ` FROM issues WHERE id = ?`)

	err := r.db.observe(ctx, "select", "issues", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &row, query, id)
	})
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("issue")
		}
		return nil, errors.NewInternalError("failed to get issue by ID").WithCause(err)
	}

	finding := row.toFinding()
	return &finding, nil
}

// GetByProjectIDs returns every finding of the given projects, most recently
// updated first
func (r *IssueRepository) GetByProjectIDs(ctx context.Context, ids []string) ([]types.Finding, error) {
	findings := []types.Finding{}
	if len(ids) == 0 {
		return findings, nil
	}

	query, args, err := sqlx.In(`SELECT `+issueColumns+` FROM issues WHERE project_id IN (?) ORDER BY updated_at DESC, id`, ids)
	if err != nil {
		return nil, errors.NewInternalError("failed to build issue query").WithCause(err)
	}
	query = r.db.Rebind(query)

	var rows []issueRow
	err = r.db.observe(ctx, "select", "issues", func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to list issues").WithCause(err)
	}

	for _, row := range rows {
		findings = append(findings, row.toFinding())
	}
	return findings, nil
}

// Save inserts or updates a finding
func (r *IssueRepository) Save(ctx context.Context, issue *types.Finding) error {
	if issue == nil || issue.ProjectID == "" {
		return errors.NewValidationError("issue project ID is required")
	}
	if issue.ID == "" {
		issue.ID = uuid.New().String()
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = r.now()
	}

	fields := issue.CustomFields
	if fields == nil {
		fields = []types.CustomField{}
	}
	customFields, err := json.Marshal(fields)
	if err != nil {
		return errors.NewValidationError("invalid custom fields").WithCause(err)
	}

	query := r.db.Rebind(`
		INSERT INTO issues (
			id, project_id, title, severity, state, is_fixed, cvss_score, cvss_vector,
			affected, type, description, custom_fields, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			project_id = excluded.project_id,
			title = excluded.title,
			severity = excluded.severity,
			state = excluded.state,
			is_fixed = excluded.is_fixed,
			cvss_score = excluded.cvss_score,
			cvss_vector = excluded.cvss_vector,
			affected = excluded.affected,
			type = excluded.type,
			description = excluded.description,
			custom_fields = excluded.custom_fields,
			updated_at = excluded.updated_at`)

	err = r.db.observe(ctx, "upsert", "issues", func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query,
			issue.ID, issue.ProjectID, issue.Title, string(issue.Severity), string(issue.State), issue.IsFixed,
			issue.CVSSScore, issue.CVSSVector, issue.Affected, string(issue.Type), issue.Description,
			string(customFields), formatTime(issue.UpdatedAt))
		return err
	})
	if err != nil {
		return errors.NewInternalError("failed to save issue").WithCause(err)
	}
	return nil
}

// SettingsRepository stores the single SMTP settings row
type SettingsRepository struct {
	db         *DB
	encryption *security.EncryptionService
	now        func() time.Time
}

// NewSettingsRepository creates a settings repository. When encryption is
// nil the password is stored as given.
func NewSettingsRepository(db *DB, encryption *security.EncryptionService) *SettingsRepository {
	return &SettingsRepository{db: db, encryption: encryption, now: time.Now}
}

type smtpRow struct {
	Host   string `db:"host"`
	Port   int    `db:"port"`
	User   string `db:"user_name"`
	Pass   string `db:"pass"`
	Sender string `db:"sender"`
}

// Get returns the stored settings or a not found error
func (r *SettingsRepository) Get(ctx context.Context) (*types.SmtpSettings, error) {
	var row smtpRow
	query := `SELECT host, port, user_name, pass, sender FROM smtp_settings WHERE id = 1`

	err := r.db.observe(ctx, "select", "smtp_settings", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &row, query)
	})
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("smtp settings")
		}
		return nil, errors.NewInternalError("failed to get smtp settings").WithCause(err)
	}

	pass := row.Pass
	if r.encryption != nil {
		if pass, err = r.encryption.Open(row.Pass); err != nil {
			return nil, errors.NewInternalError("failed to decrypt smtp password").WithCause(err)
		}
	}

	return &types.SmtpSettings{
		Host: row.Host,
		Port: row.Port,
		User: row.User,
		Pass: pass,
		From: row.Sender,
	}, nil
}

// Save replaces the stored settings and returns them as read back
func (r *SettingsRepository) Save(ctx context.Context, settings *types.SmtpSettings) (*types.SmtpSettings, error) {
	if settings == nil {
		return nil, errors.NewValidationError("smtp settings are required")
	}

	pass := settings.Pass
	if r.encryption != nil {
		var err error
		if pass, err = r.encryption.Seal(settings.Pass); err != nil {
			return nil, errors.NewInternalError("failed to encrypt smtp password").WithCause(err)
		}
	}

	query := r.db.Rebind(`
		INSERT INTO smtp_settings (id, host, port, user_name, pass, sender, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			host = excluded.host,
			port = excluded.port,
			user_name = excluded.user_name,
			pass = excluded.pass,
			sender = excluded.sender,
			updated_at = excluded.updated_at`)

	err := r.db.observe(ctx, "upsert", "smtp_settings", func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query,
			strings.TrimSpace(settings.Host), settings.Port, strings.TrimSpace(settings.User), pass,
			strings.TrimSpace(settings.From), formatTime(r.now()))
		return err
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to save smtp settings").WithCause(err)
	}

	return r.Get(ctx)
}

// HistoryRepository persists sent report emails
type HistoryRepository struct {
	db     *DB
	window time.Duration
	now    func() time.Time
}

// NewHistoryRepository creates a history repository. Entries matching the
// newest row with the same recipient, subject, project and issue within window
// are dropped; a zero window disables the check.
func NewHistoryRepository(db *DB, window time.Duration) *HistoryRepository {
	return &HistoryRepository{db: db, window: window, now: time.Now}
}

type historyRow struct {
	ID          string `db:"id"`
	ProjectID   string `db:"project_id"`
	ProjectName string `db:"project_name"`
	IssueID     string `db:"issue_id"`
	IssueTitle  string `db:"issue_title"`
	Recipient   string `db:"recipient"`
	Subject     string `db:"subject"`
	Format      string `db:"format"`
	Status      string `db:"status"`
	SentAt      string `db:"sent_at"`
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Add records entry unless it duplicates a row sent within the window. A
// duplicate returns nil without error.
func (r *HistoryRepository) Add(ctx context.Context, entry *types.EmailHistoryEntry) (*types.EmailHistoryEntry, error) {
	if entry == nil || strings.TrimSpace(entry.Recipient) == "" {
		return nil, errors.NewValidationError("history recipient is required")
	}

	stored := *entry
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.SentAt.IsZero() {
		stored.SentAt = r.now()
	}
	if stored.Status == "" {
		stored.Status = types.EmailStatusSent
	}

	duplicate := false
	err := r.db.observe(ctx, "insert", "email_history", func(ctx context.Context) error {
		return r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			if r.window > 0 {
				var last string
				err := tx.GetContext(ctx, &last, tx.Rebind(`
					SELECT sent_at FROM email_history
					WHERE recipient = ? AND COALESCE(subject, '') = ?
						AND COALESCE(project_id, '') = ? AND COALESCE(issue_id, '') = ?
					ORDER BY sent_at DESC LIMIT 1`),
					stored.Recipient, stored.Subject, stored.ProjectID, stored.IssueID)
				switch {
				case err == nil:
					if prev := parseTime(last); !prev.IsZero() && absDuration(stored.SentAt.Sub(prev)) < r.window {
						duplicate = true
						return nil
					}
				case !stderrors.Is(err, sql.ErrNoRows):
					return err
				}
			}

			_, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO email_history (
					id, project_id, project_name, issue_id, issue_title, recipient, subject, format, status, sent_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
				stored.ID, nullable(stored.ProjectID), nullable(stored.ProjectName), nullable(stored.IssueID),
				nullable(stored.IssueTitle), stored.Recipient, nullable(stored.Subject), nullable(string(stored.Format)),
				string(stored.Status), formatTime(stored.SentAt))
			return err
		})
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to add email history").WithCause(err)
	}

	if duplicate {
		r.db.metrics.RecordHistoryDeduplicated()
		return nil, nil
	}
	return &stored, nil
}

// List returns history entries newest first
func (r *HistoryRepository) List(ctx context.Context, pagination *Pagination) ([]*types.EmailHistoryEntry, error) {
	limit, offset := pagination.normalize()

	var rows []historyRow
	query := r.db.Rebind(`
		SELECT id,
			COALESCE(project_id, '') AS project_id,
			COALESCE(project_name, '') AS project_name,
			COALESCE(issue_id, '') AS issue_id,
			COALESCE(issue_title, '') AS issue_title,
			recipient,
			COALESCE(subject, '') AS subject,
			COALESCE(format, '') AS format,
			COALESCE(status, '') AS status,
			sent_at
		FROM email_history
		ORDER BY sent_at DESC, id
		LIMIT ? OFFSET ?`)

	err := r.db.observe(ctx, "select", "email_history", func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &rows, query, limit, offset)
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to list email history").WithCause(err)
	}

	entries := make([]*types.EmailHistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &types.EmailHistoryEntry{
			ID:          row.ID,
			ProjectID:   row.ProjectID,
			ProjectName: row.ProjectName,
			IssueID:     row.IssueID,
			IssueTitle:  row.IssueTitle,
			Recipient:   row.Recipient,
			Subject:     row.Subject,
			Format:      types.Format(row.Format),
			Status:      types.EmailStatus(row.Status),
			SentAt:      parseTime(row.SentAt),
		})
	}
	return entries, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Options configures the repository set
type Options struct {
	// Encryption seals the SMTP password at rest; nil stores it as given
	Encryption *security.EncryptionService
	// DedupWindow is the near-duplicate email history window
	DedupWindow time.Duration
}

// Repositories contains all repository instances
type Repositories struct {
	Projects *ProjectRepository
	Issues   *IssueRepository
	Settings *SettingsRepository
	History  *HistoryRepository
}

// NewRepositories creates a new repositories instance
func NewRepositories(db *DB, opts Options) *Repositories {
	return &Repositories{
		Projects: NewProjectRepository(db),
		Issues:   NewIssueRepository(db),
		Settings: NewSettingsRepository(db, opts.Encryption),
		History:  NewHistoryRepository(db, opts.DedupWindow),
	}
}
