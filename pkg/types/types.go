package types

import (
	"strings"
	"time"
)

// Severity is the ordered risk classification of a finding
type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Severities lists every severity from highest to lowest rank
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

// ParseSeverity normalizes a stored severity label. Unknown labels map to Info.
func ParseSeverity(s string) Severity {
	for _, sev := range Severities {
		if strings.EqualFold(strings.TrimSpace(s), string(sev)) {
			return sev
		}
	}
	return SeverityInfo
}

// Rank returns the sort rank: Critical=4 > High=3 > Medium=2 > Low=1 > Info=0
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Class returns the lowercase CSS class used for badges and summary cards
func (s Severity) Class() string {
	return strings.ToLower(string(ParseSeverity(string(s))))
}

// Color returns the hex color (without #) used for severity highlights
func (s Severity) Color() string {
	switch ParseSeverity(string(s)) {
	case SeverityCritical:
		return "EF4444"
	case SeverityHigh:
		return "F97316"
	case SeverityMedium:
		return "EAB308"
	case SeverityLow:
		return "3B82F6"
	default:
		return "94A3B8"
	}
}

// FindingState is the lifecycle state of a finding, independent of severity
type FindingState string

const (
	StateOpen       FindingState = "Open"
	StateInProgress FindingState = "In Progress"
	StateFixed      FindingState = "Fixed"
	StateDraft      FindingState = "Draft"
	StatePublished  FindingState = "Published"
	StateQA         FindingState = "QA"
	StateClosed     FindingState = "Closed"
)

// FindingType is the domain classification of a finding
type FindingType string

const (
	FindingTypeInternal FindingType = "Internal"
	FindingTypeExternal FindingType = "External"
)

// Format is an output document format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatHTML Format = "html"
)

// ParseFormat returns the format for s, defaulting to PDF when s is empty.
// The boolean is false for unsupported formats.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPDF:
		return FormatPDF, true
	case FormatDOCX:
		return FormatDOCX, true
	case FormatHTML:
		return FormatHTML, true
	}
	return "", false
}

// CustomField is an author-defined report section
type CustomField struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// Finding represents a single security issue within a project
type Finding struct {
	ID           string        `json:"id" db:"id"`
	ProjectID    string        `json:"project_id" db:"project_id"`
	Title        string        `json:"title" db:"title"`
	Severity     Severity      `json:"severity" db:"severity"`
	State        FindingState  `json:"state" db:"state"`
	IsFixed      bool          `json:"is_fixed" db:"is_fixed"`
	CVSSScore    string        `json:"cvss_score" db:"cvss_score"`
	CVSSVector   string        `json:"cvss_vector" db:"cvss_vector"`
	Affected     string        `json:"affected" db:"affected"`
	Type         FindingType   `json:"type" db:"type"`
	Description  string        `json:"description" db:"description"`
	CustomFields []CustomField `json:"custom_fields"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// Project is a node in the project tree
type Project struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Client     string    `json:"client" db:"client"`
	Status     string    `json:"status" db:"status"`
	ParentID   *string   `json:"parent_id,omitempty" db:"parent_id"`
	LastUpdate time.Time `json:"last_update" db:"last_update"`
}

// SmtpSettings holds the outgoing mail server configuration
type SmtpSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	Pass string `json:"-"`
	From string `json:"from"`
}

// Complete reports whether every field needed to send mail is populated
func (s *SmtpSettings) Complete() bool {
	return s != nil && s.Host != "" && s.Port > 0 && s.User != "" && s.Pass != "" && s.From != ""
}

// EmailStatus is the delivery status recorded in history
type EmailStatus string

const (
	EmailStatusSent EmailStatus = "sent"
)

// EmailHistoryEntry is a persisted record of a sent report email
type EmailHistoryEntry struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"project_id,omitempty"`
	ProjectName string      `json:"project_name,omitempty"`
	IssueID     string      `json:"issue_id,omitempty"`
	IssueTitle  string      `json:"issue_title,omitempty"`
	Recipient   string      `json:"recipient"`
	Subject     string      `json:"subject"`
	Format      Format      `json:"format"`
	Status      EmailStatus `json:"status"`
	SentAt      time.Time   `json:"sent_at"`
}
