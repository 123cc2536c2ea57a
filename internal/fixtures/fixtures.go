// Package fixtures loads projects and findings from YAML files into the store.
package fixtures

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// File is the top level of a fixture document
type File struct {
	Version  string    `yaml:"version"`
	Projects []Project `yaml:"projects"`
}

// Project is a project with the findings filed directly under it
type Project struct {
	ID         string    `yaml:"id"`
	Name       string    `yaml:"name"`
	Client     string    `yaml:"client,omitempty"`
	Status     string    `yaml:"status,omitempty"`
	ParentID   string    `yaml:"parent_id,omitempty"`
	LastUpdate time.Time `yaml:"last_update,omitempty"`
	Findings   []Finding `yaml:"findings,omitempty"`
}

// Finding mirrors types.Finding with YAML keys
type Finding struct {
	ID           string              `yaml:"id,omitempty"`
	Title        string              `yaml:"title"`
	Severity     string              `yaml:"severity,omitempty"`
	State        string              `yaml:"state,omitempty"`
	IsFixed      bool                `yaml:"is_fixed,omitempty"`
	CVSSScore    string              `yaml:"cvss_score,omitempty"`
	CVSSVector   string              `yaml:"cvss_vector,omitempty"`
	Affected     string              `yaml:"affected,omitempty"`
	Type         string              `yaml:"type,omitempty"`
	Description  string              `yaml:"description,omitempty"`
	CustomFields []types.CustomField `yaml:"custom_fields,omitempty"`
	UpdatedAt    time.Time           `yaml:"updated_at,omitempty"`
}

// Store is the write side used by Import
type Store interface {
	SaveProject(ctx context.Context, project *types.Project) error
	SaveIssue(ctx context.Context, issue *types.Finding) error
}

// Summary counts what an import wrote
type Summary struct {
	Projects int `json:"projects"`
	Findings int `json:"findings"`
}

// LoadFromFile reads and validates a fixture file
func LoadFromFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates fixture YAML. Unknown keys are rejected so
// typos do not silently drop data.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks ids, names and parent references
func (f *File) Validate() error {
	ids := make(map[string]bool, len(f.Projects))
	for i, p := range f.Projects {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("project %d: id is required", i+1)
		}
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("project %q: name is required", p.ID)
		}
		if ids[p.ID] {
			return fmt.Errorf("project %q: duplicate id", p.ID)
		}
		ids[p.ID] = true
	}
	for _, p := range f.Projects {
		if p.ParentID != "" && !ids[p.ParentID] {
			return fmt.Errorf("project %q: unknown parent %q", p.ID, p.ParentID)
		}
		for j, fd := range p.Findings {
			if strings.TrimSpace(fd.Title) == "" {
				return fmt.Errorf("project %q finding %d: title is required", p.ID, j+1)
			}
		}
	}
	return nil
}

// Import writes every project, parents first, then their findings. Records
// are upserted, so importing the same file twice is harmless.
func Import(ctx context.Context, store Store, f *File) (*Summary, error) {
	summary := &Summary{}
	now := time.Now().UTC()

	for _, p := range parentsFirst(f.Projects) {
		project := &types.Project{
			ID:         p.ID,
			Name:       p.Name,
			Client:     p.Client,
			Status:     p.Status,
			LastUpdate: orNow(p.LastUpdate, now),
		}
		if p.ParentID != "" {
			parent := p.ParentID
			project.ParentID = &parent
		}
		if err := store.SaveProject(ctx, project); err != nil {
			return summary, fmt.Errorf("import project %q: %w", p.ID, err)
		}
		summary.Projects++

		for _, fd := range p.Findings {
			issue := fd.toFinding(p.ID, now)
			if err := store.SaveIssue(ctx, issue); err != nil {
				return summary, fmt.Errorf("import finding %q: %w", issue.Title, err)
			}
			summary.Findings++
		}
	}
	return summary, nil
}

func (fd Finding) toFinding(projectID string, now time.Time) *types.Finding {
	id := fd.ID
	if id == "" {
		id = uuid.NewString()
	}
	state := types.FindingState(fd.State)
	if state == "" {
		state = types.StateDraft
	}
	kind := types.FindingType(fd.Type)
	if kind == "" {
		kind = types.FindingTypeInternal
	}
	return &types.Finding{
		ID:           id,
		ProjectID:    projectID,
		Title:        fd.Title,
		Severity:     types.ParseSeverity(fd.Severity),
		State:        state,
		IsFixed:      fd.IsFixed,
		CVSSScore:    fd.CVSSScore,
		CVSSVector:   fd.CVSSVector,
		Affected:     fd.Affected,
		Type:         kind,
		Description:  fd.Description,
		CustomFields: fd.CustomFields,
		UpdatedAt:    orNow(fd.UpdatedAt, now),
	}
}

// parentsFirst orders projects so every parent precedes its children.
// Validate has already ensured parents exist; cycles keep file order.
func parentsFirst(projects []Project) []Project {
	byID := make(map[string]Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	out := make([]Project, 0, len(projects))
	done := make(map[string]bool, len(projects))
	visiting := make(map[string]bool)

	var visit func(p Project)
	visit = func(p Project) {
		if done[p.ID] || visiting[p.ID] {
			return
		}
		visiting[p.ID] = true
		if parent, ok := byID[p.ParentID]; ok {
			visit(parent)
		}
		visiting[p.ID] = false
		done[p.ID] = true
		out = append(out, p)
	}
	for _, p := range projects {
		visit(p)
	}
	return out
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
