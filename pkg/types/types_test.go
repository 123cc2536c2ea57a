package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"Critical", SeverityCritical},
		{"high", SeverityHigh},
		{" MEDIUM ", SeverityMedium},
		{"Low", SeverityLow},
		{"", SeverityInfo},
		{"catastrophic", SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSeverity(tt.in))
		})
	}
}

func TestSeverity_Rank(t *testing.T) {
	assert.Equal(t, 4, SeverityCritical.Rank())
	assert.Equal(t, 3, SeverityHigh.Rank())
	assert.Equal(t, 2, SeverityMedium.Rank())
	assert.Equal(t, 1, SeverityLow.Rank())
	assert.Equal(t, 0, SeverityInfo.Rank())
	assert.Equal(t, 0, Severity("bogus").Rank())
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("")
	assert.True(t, ok)
	assert.Equal(t, FormatPDF, f)

	f, ok = ParseFormat("DOCX")
	assert.True(t, ok)
	assert.Equal(t, FormatDOCX, f)

	_, ok = ParseFormat("odt")
	assert.False(t, ok)
}

func TestSmtpSettings_Complete(t *testing.T) {
	s := &SmtpSettings{Host: "smtp.example.com", Port: 587, User: "u", Pass: "p", From: "u@example.com"}
	assert.True(t, s.Complete())

	s.Pass = ""
	assert.False(t, s.Complete())

	var nilSettings *SmtpSettings
	assert.False(t, nilSettings.Complete())
}

func TestFinding_LookupAndUpdate(t *testing.T) {
	f := &Finding{
		Description: "desc",
		CustomFields: []CustomField{
			{ID: "impact", Label: "Impact", Value: "high"},
		},
	}

	v, ok := f.Lookup(DescriptionTarget())
	assert.True(t, ok)
	assert.Equal(t, "desc", v)

	assert.True(t, f.Update(CustomFieldTarget("impact"), "total"))
	v, ok = f.Lookup(CustomFieldTarget("impact"))
	assert.True(t, ok)
	assert.Equal(t, "total", v)

	assert.False(t, f.Update(CustomFieldTarget("missing"), "x"))
	_, ok = f.Lookup(CustomFieldTarget("missing"))
	assert.False(t, ok)
}

func TestMoveCustomField(t *testing.T) {
	fields := []CustomField{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	ids := func(fs []CustomField) []string {
		out := make([]string, len(fs))
		for i, f := range fs {
			out[i] = f.ID
		}
		return out
	}

	assert.Equal(t, []string{"b", "c", "a", "d"}, ids(MoveCustomField(fields, 0, 2)))
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(MoveCustomField(fields, 3, 0)))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(MoveCustomField(fields, 5, 0)))
	// input is never mutated
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(fields))
}
