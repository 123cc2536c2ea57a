// Package render turns composed report documents and rich-text values into
// HTML fragments and DOCX files.
package render

import (
	"time"

	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// Scope identifies what a report document covers
type Scope string

const (
	ScopeProject Scope = "project"
	ScopeFinding Scope = "finding"
)

// SeverityStat is one row of the severity summary
type SeverityStat struct {
	Severity types.Severity `json:"severity"`
	Count    int            `json:"count"`
	Percent  int            `json:"percent"`
}

// Summary holds per-severity counts, ordered Critical first
type Summary struct {
	Total int            `json:"total"`
	Stats []SeverityStat `json:"stats"`
}

// Count returns the number of findings with the given severity
func (s Summary) Count(sev types.Severity) int {
	for _, st := range s.Stats {
		if st.Severity == sev {
			return st.Count
		}
	}
	return 0
}

// Document is an ephemeral composed report
type Document struct {
	Scope       Scope
	Project     *types.Project
	Findings    []types.Finding
	Summary     Summary
	GeneratedAt time.Time
}

// Finding returns the single finding of a finding-scope document
func (d *Document) Finding() *types.Finding {
	if len(d.Findings) == 0 {
		return nil
	}
	return &d.Findings[0]
}

// Title returns the project name or finding title
func (d *Document) Title() string {
	if d.Scope == ScopeFinding {
		if f := d.Finding(); f != nil {
			return FindingTitle(f)
		}
		return "Untitled Finding"
	}
	if d.Project != nil && d.Project.Name != "" {
		return d.Project.Name
	}
	return "Untitled Project"
}

// FindingTitle returns the display title of a finding
func FindingTitle(f *types.Finding) string {
	if f.Title == "" {
		return "Untitled Finding"
	}
	return f.Title
}

// AffectedAsset returns the affected asset or the default scope label
func AffectedAsset(f *types.Finding) string {
	if f.Affected == "" {
		return "General Scope"
	}
	return f.Affected
}

// CVSSLine formats "score (vector)", omitting an empty vector
func CVSSLine(f *types.Finding) string {
	score := f.CVSSScore
	if score == "" {
		score = "0.0"
	}
	if f.CVSSVector == "" {
		return score
	}
	return score + " (" + f.CVSSVector + ")"
}

// FieldLabel returns the custom field label or the default heading
func FieldLabel(cf types.CustomField) string {
	if cf.Label == "" {
		return "Detail"
	}
	return cf.Label
}
