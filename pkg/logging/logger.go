// Package logging holds the structured loggers. Logger (logrus) records
// application events such as exported reports and sent emails; NewZapLogger
// builds the zap logger handed to the SMTP transport and the PDF printer.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// Config holds logging configuration
type Config struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	Output      string `json:"output"`
	ServiceName string `json:"service_name"`
	Version     string `json:"version"`
}

// Logger is a logrus logger that stamps every entry with the service fields
// and the identifiers carried by the context
type Logger struct {
	*logrus.Logger
	base logrus.Fields
}

type contextKey int

const (
	correlationIDKey contextKey = iota
	requestIDKey
)

// NewLogger creates a logger. A nil config logs JSON at info level to stderr,
// keeping stdout free for command output.
func NewLogger(config *Config) (*Logger, error) {
	if config == nil {
		config = &Config{Level: "info", Format: "json", ServiceName: "vanguard"}
	}

	levelName := config.Level
	if levelName == "" {
		levelName = "info"
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	formatter, err := newFormatter(config.Format)
	if err != nil {
		return nil, err
	}
	out, err := openOutput(config.Output)
	if err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(formatter)
	l.SetOutput(out)
	l.SetReportCaller(level >= logrus.DebugLevel)

	base := logrus.Fields{"service": config.ServiceName}
	if config.Version != "" {
		base["version"] = config.Version
	}
	return &Logger{Logger: l, base: base}, nil
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
				logrus.FieldKeyFunc: "function",
			},
		}, nil
	case "text":
		return &logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true}, nil
	}
	return nil, fmt.Errorf("unsupported log format: %s", format)
}

func openOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// entry starts an entry with the service fields plus the correlation, request
// and trace identifiers found in ctx
func (l *Logger) entry(ctx context.Context) *logrus.Entry {
	e := l.Logger.WithFields(l.base)
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		e = e.WithField("correlation_id", id)
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		e = e.WithField("request_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		e = e.WithFields(logrus.Fields{
			"trace_id": sc.TraceID().String(),
			"span_id":  sc.SpanID().String(),
		})
	}
	return e
}

// LogRequest logs a served HTTP request. Server errors log at error level and
// client errors at warning.
func (l *Logger) LogRequest(ctx context.Context, method, path, userAgent, clientIP string, statusCode int, duration time.Duration) {
	e := l.entry(ctx).WithFields(logrus.Fields{
		"http_method":      method,
		"http_path":        path,
		"http_status":      statusCode,
		"user_agent":       userAgent,
		"client_ip":        clientIP,
		"response_time_ms": duration.Milliseconds(),
	})
	switch {
	case statusCode >= 500:
		e.Error("HTTP request")
	case statusCode >= 400:
		e.Warn("HTTP request")
	default:
		e.Info("HTTP request")
	}
}

// ReportEvent is one outcome of a report export or preview
type ReportEvent struct {
	Event     string
	Scope     string
	ProjectID string
	Format    string
	Path      string
	Bytes     int
	Findings  int
	Err       error
}

// LogReportEvent logs ev at info level, or at error level when ev.Err is set
func (l *Logger) LogReportEvent(ctx context.Context, ev ReportEvent) {
	fields := logrus.Fields{"event": ev.Event, "project_id": ev.ProjectID}
	setString(fields, "scope", ev.Scope)
	setString(fields, "format", ev.Format)
	setString(fields, "path", ev.Path)
	if ev.Bytes > 0 {
		fields["bytes"] = ev.Bytes
		fields["findings"] = ev.Findings
	}

	e := l.entry(ctx).WithFields(fields)
	if ev.Err != nil {
		e.WithError(ev.Err).Error("Report " + ev.Event)
		return
	}
	e.Info("Report " + ev.Event)
}

// EmailEvent is one outcome of an email send
type EmailEvent struct {
	Event     string
	Scope     string
	Recipient string
	Subject   string
	Format    string
	Duration  time.Duration
	Err       error
}

// LogEmailEvent logs ev at info level, or at warning when ev.Err is set
func (l *Logger) LogEmailEvent(ctx context.Context, ev EmailEvent) {
	fields := logrus.Fields{"event": ev.Event, "recipient": ev.Recipient}
	setString(fields, "scope", ev.Scope)
	setString(fields, "subject", ev.Subject)
	setString(fields, "format", ev.Format)
	if ev.Duration > 0 {
		fields["duration_ms"] = ev.Duration.Milliseconds()
	}

	e := l.entry(ctx).WithFields(fields)
	if ev.Err != nil {
		e.WithError(ev.Err).Warn("Email " + ev.Event)
		return
	}
	e.Info("Email " + ev.Event)
}

func setString(fields logrus.Fields, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

// NewCorrelationID generates a new correlation ID
func NewCorrelationID() string {
	return uuid.New().String()
}

// WithCorrelationID adds correlation ID to context
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

var global atomic.Pointer[Logger]

// GetLogger returns the process-wide logger, creating the default one on
// first use
func GetLogger() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	l, _ := NewLogger(nil)
	global.CompareAndSwap(nil, l)
	return global.Load()
}

// SetGlobalLogger replaces the process-wide logger
func SetGlobalLogger(logger *Logger) {
	global.Store(logger)
}

// Info logs an info message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.entry(context.Background()).WithFields(pairs(keysAndValues)).Info(msg)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry(context.Background()).WithFields(pairs(keysAndValues)).Warn(msg)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.entry(context.Background()).WithFields(pairs(keysAndValues)).Error(msg)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry(context.Background()).WithFields(pairs(keysAndValues)).Debug(msg)
}

// pairs turns alternating keys and values into fields. A trailing key
// without a value is kept with a nil value.
func pairs(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		var value interface{}
		if i+1 < len(keysAndValues) {
			value = keysAndValues[i+1]
		}
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		fields[key] = value
	}
	return fields
}
