package logging

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// bufferLogger returns a JSON logger writing to the returned buffer
func bufferLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewLogger(&Config{Level: level, Format: "json", ServiceName: "vanguard", Version: "1.2.0"})
	require.NoError(t, err)
	l.SetOutput(&buf)
	return l, &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "vanguard.log")

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{name: "nil config", config: nil},
		{name: "empty level and format default", config: &Config{}},
		{name: "text to stdout", config: &Config{Level: "warn", Format: "text", Output: "stdout"}},
		{name: "file output", config: &Config{Level: "debug", Output: logFile}},
		{name: "bad level", config: &Config{Level: "loud"}, wantErr: "invalid log level"},
		{name: "bad format", config: &Config{Format: "xml"}, wantErr: "unsupported log format"},
		{name: "unwritable file", config: &Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")}, wantErr: "failed to open log file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, l)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}

	info, err := os.Stat(logFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLogger_ContextIdentifiers(t *testing.T) {
	l, buf := bufferLogger(t, "info")

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "send")
	defer span.End()

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithCorrelationID(ctx, "corr-1")
	l.LogRequest(ctx, "POST", "/api/v1/email/issue", "vanguard-shell", "127.0.0.1", 200, 12*time.Millisecond)

	logged := lines(t, buf)
	require.Len(t, logged, 1)
	entry := logged[0]
	assert.Equal(t, "vanguard", entry["service"])
	assert.Equal(t, "1.2.0", entry["version"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "corr-1", entry["correlation_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
	assert.Equal(t, "HTTP request", entry["message"])
}

func TestLogger_LogRequestLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{status: 200, level: "info"},
		{status: 429, level: "warning"},
		{status: 502, level: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, buf := bufferLogger(t, "info")
			l.LogRequest(context.Background(), "GET", "/health", "", "127.0.0.1", tt.status, time.Millisecond)

			logged := lines(t, buf)
			require.Len(t, logged, 1)
			assert.Equal(t, tt.level, logged[0]["level"])
			assert.EqualValues(t, tt.status, logged[0]["http_status"])
			assert.NotContains(t, logged[0], "request_id")
		})
	}
}

func TestLogger_LogEmailEvent(t *testing.T) {
	tests := []struct {
		name      string
		event     EmailEvent
		wantLevel string
		wantMsg   string
	}{
		{
			name: "sent",
			event: EmailEvent{
				Event: "sent", Scope: "finding", Recipient: "client@example.com",
				Subject: "Finding Report: Exposed admin panel", Format: "pdf", Duration: 1500 * time.Millisecond,
			},
			wantLevel: "info",
			wantMsg:   "Email sent",
		},
		{
			name: "send failed",
			event: EmailEvent{
				Event: "send_failed", Recipient: "client@example.com", Format: "docx",
				Err: stderrors.New("535 authentication failed"),
			},
			wantLevel: "warning",
			wantMsg:   "Email send_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := bufferLogger(t, "info")
			l.LogEmailEvent(context.Background(), tt.event)

			logged := lines(t, buf)
			require.Len(t, logged, 1)
			entry := logged[0]
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, tt.wantMsg, entry["message"])
			assert.Equal(t, tt.event.Event, entry["event"])
			assert.Equal(t, tt.event.Recipient, entry["recipient"])
			assert.Equal(t, tt.event.Format, entry["format"])

			if tt.event.Err != nil {
				assert.Equal(t, tt.event.Err.Error(), entry["error"])
				assert.NotContains(t, entry, "subject", "empty fields are left out")
			} else {
				assert.Equal(t, tt.event.Subject, entry["subject"])
				assert.EqualValues(t, 1500, entry["duration_ms"])
				assert.NotContains(t, entry, "error")
			}
		})
	}
}

func TestLogger_LogReportEvent(t *testing.T) {
	l, buf := bufferLogger(t, "info")

	l.LogReportEvent(context.Background(), ReportEvent{
		Event: "generated", Scope: "project", ProjectID: "acme", Format: "pdf",
		Path: "/tmp/Acme_report.pdf", Bytes: 2048, Findings: 3,
	})
	l.LogReportEvent(context.Background(), ReportEvent{
		Event: "canceled", Scope: "project", ProjectID: "acme", Format: "docx",
	})
	l.LogReportEvent(context.Background(), ReportEvent{
		Event: "failed", ProjectID: "acme", Format: "pdf", Err: stderrors.New("print timed out"),
	})

	logged := lines(t, buf)
	require.Len(t, logged, 3)

	assert.Equal(t, "Report generated", logged[0]["message"])
	assert.EqualValues(t, 2048, logged[0]["bytes"])
	assert.EqualValues(t, 3, logged[0]["findings"])
	assert.Equal(t, "/tmp/Acme_report.pdf", logged[0]["path"])

	assert.Equal(t, "info", logged[1]["level"])
	assert.NotContains(t, logged[1], "bytes")

	assert.Equal(t, "error", logged[2]["level"])
	assert.Equal(t, "print timed out", logged[2]["error"])
}

func TestLogger_KeyValues(t *testing.T) {
	l, buf := bufferLogger(t, "debug")

	l.Info("Saved SMTP settings", "host", "smtp.example.com", "port", 587)
	l.Warn("Failed to remember recipient", "recipient", "client@example.com", "error", stderrors.New("redis down"))
	l.Debug("Dangling key", "orphan")

	logged := lines(t, buf)
	require.Len(t, logged, 3)
	assert.Equal(t, "smtp.example.com", logged[0]["host"])
	assert.EqualValues(t, 587, logged[0]["port"])
	assert.Equal(t, "redis down", logged[1]["error"])
	assert.Contains(t, logged[2], "orphan")
	assert.Nil(t, logged[2]["orphan"])
}

func TestGlobalLogger(t *testing.T) {
	prev := GetLogger()
	require.NotNil(t, prev)
	t.Cleanup(func() { SetGlobalLogger(prev) })

	l, _ := bufferLogger(t, "info")
	SetGlobalLogger(l)
	assert.Same(t, l, GetLogger())
}

func TestNewCorrelationID(t *testing.T) {
	a, b := NewCorrelationID(), NewCorrelationID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
