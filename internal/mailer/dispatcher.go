package mailer

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NikhilSetiya/vanguard-reports/internal/assets"
	"github.com/NikhilSetiya/vanguard-reports/internal/render"
	"github.com/NikhilSetiya/vanguard-reports/internal/report"
	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/logging"
	"github.com/NikhilSetiya/vanguard-reports/pkg/metrics"
	"github.com/NikhilSetiya/vanguard-reports/pkg/resilience"
	"github.com/NikhilSetiya/vanguard-reports/pkg/tracing"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// Messages surfaced to the caller as {error} results
const (
	MsgIncompleteSettings = "SMTP settings are incomplete. Please update email configuration."
	MsgDNSFailure         = "DNS lookup failed. Please check your internet or SMTP host."
	MsgRecipientRequired  = "Recipient email is required."
	MsgSendFailed         = "Failed to send email."
)

// Default subject prefixes and plain-text parts
const (
	FindingSubjectPrefix = "Finding Report: "
	ProjectSubjectPrefix = "Project Report: "
	FindingDefaultText   = "Finding report attached."
	ProjectDefaultText   = "Project report attached."
)

// Store is the slice of the project store the dispatcher needs
type Store interface {
	report.Store
	GetSmtpSettings(ctx context.Context) (*types.SmtpSettings, error)
	AddEmailHistory(ctx context.Context, entry *types.EmailHistoryEntry) (*types.EmailHistoryEntry, error)
}

// IssueRequest asks for one finding to be emailed
type IssueRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
	IssueID   string `json:"issueId" binding:"required"`
	To        string `json:"to"`
	Subject   string `json:"subject,omitempty"`
	Message   string `json:"message,omitempty"`
	Format    string `json:"format,omitempty"`
}

// ProjectRequest asks for a whole project report to be emailed
type ProjectRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
	To        string `json:"to"`
	Subject   string `json:"subject,omitempty"`
	Message   string `json:"message,omitempty"`
	Format    string `json:"format,omitempty"`
}

// Result is the outcome of a send. Recipient is set on success so callers can
// remember the address.
type Result struct {
	OK        bool   `json:"ok,omitempty"`
	Error     string `json:"error,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

func failed(msg string) *Result {
	return &Result{Error: msg}
}

// Dispatcher renders reports into emails, sends them with retry and records
// successful sends in the history
type Dispatcher struct {
	store     Store
	composer  *report.Composer
	renderer  *report.Renderer
	resolver  *assets.Resolver
	transport Transport
	config    config.EmailConfig
	metrics   *metrics.Metrics
	tracer    *tracing.TracingService
	logger    *zap.Logger
	events    *logging.Logger
}

// NewDispatcher creates a dispatcher. m, tracer and logger may be nil.
func NewDispatcher(store Store, renderer *report.Renderer, resolver *assets.Resolver, transport Transport, cfg config.EmailConfig, m *metrics.Metrics, tracer *tracing.TracingService, logger *zap.Logger) *Dispatcher {
	if tracer == nil {
		tracer = tracing.Noop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:     store,
		composer:  report.NewComposer(store),
		renderer:  renderer,
		resolver:  resolver,
		transport: transport,
		config:    cfg,
		metrics:   m,
		tracer:    tracer,
		logger:    logger,
		events:    logging.GetLogger(),
	}
}

// outgoing is a composed email plus the history entry to record for it
type outgoing struct {
	doc     *render.Document
	format  types.Format
	message *EmailMessage
	entry   types.EmailHistoryEntry
}

// SendIssueReport emails a single finding. PDF and DOCX carry the rendered
// document as an attachment under a summary card body; HTML sends the full
// finding page with evidence inline. Only store failures are returned as
// errors.
func (d *Dispatcher) SendIssueReport(ctx context.Context, req IssueRequest) (*Result, error) {
	f, to, settings, res, err := d.prepare(ctx, req.Format, req.To)
	if res != nil || err != nil {
		return res, err
	}

	doc, err := d.composer.ComposeFinding(ctx, req.ProjectID, req.IssueID)
	if err != nil {
		return d.configResult(err)
	}
	finding := doc.Finding()
	title := render.FindingTitle(finding)

	full, err := d.renderer.Templates().Render(doc, render.EmailOptions)
	if err != nil {
		return failed(err.Error()), nil
	}
	page := full
	if f != types.FormatHTML {
		if page, err = d.renderer.Templates().RenderEmailSummary(doc); err != nil {
			return failed(err.Error()), nil
		}
	}

	body, inline := d.resolver.PrepareEmailHTML(report.InjectNote(page, req.Message))
	attachments := FromEmbedded(inline)
	if f != types.FormatHTML {
		// the summary card has no evidence, so the finding's media rides along
		// as plain attachments
		_, evidence := d.resolver.PrepareEmailHTML(full)
		attachments = append(attachments, asFiles(evidence, inline)...)
	}

	out := &outgoing{
		doc:    doc,
		format: f,
		message: &EmailMessage{
			From:        settings.User,
			ReplyTo:     settings.From,
			To:          to,
			Subject:     orDefault(req.Subject, FindingSubjectPrefix+title),
			Text:        orDefault(req.Message, FindingDefaultText),
			HTML:        body,
			Attachments: attachments,
		},
		entry: types.EmailHistoryEntry{
			ProjectID:   doc.Project.ID,
			ProjectName: doc.Project.Name,
			IssueID:     finding.ID,
			IssueTitle:  title,
		},
	}
	return d.dispatch(ctx, settings, out)
}

// SendProjectReport emails the whole project report. The body is always the
// full report page; PDF and DOCX additionally attach the rendered document.
func (d *Dispatcher) SendProjectReport(ctx context.Context, req ProjectRequest) (*Result, error) {
	f, to, settings, res, err := d.prepare(ctx, req.Format, req.To)
	if res != nil || err != nil {
		return res, err
	}

	doc, err := d.composer.ComposeProject(ctx, req.ProjectID)
	if err != nil {
		return d.configResult(err)
	}

	page, err := d.renderer.Templates().Render(doc, render.EmailOptions)
	if err != nil {
		return failed(err.Error()), nil
	}
	body, inline := d.resolver.PrepareEmailHTML(report.InjectNote(page, req.Message))

	out := &outgoing{
		doc:    doc,
		format: f,
		message: &EmailMessage{
			From:        settings.User,
			ReplyTo:     settings.From,
			To:          to,
			Subject:     orDefault(req.Subject, ProjectSubjectPrefix+doc.Project.Name),
			Text:        orDefault(req.Message, ProjectDefaultText),
			HTML:        body,
			Attachments: FromEmbedded(inline),
		},
		entry: types.EmailHistoryEntry{
			ProjectID:   doc.Project.ID,
			ProjectName: doc.Project.Name,
		},
	}
	return d.dispatch(ctx, settings, out)
}

// prepare validates the request and loads the SMTP settings. A non-nil
// Result is a reportable failure.
func (d *Dispatcher) prepare(ctx context.Context, format, to string) (types.Format, string, *types.SmtpSettings, *Result, error) {
	f, ok := types.ParseFormat(format)
	if !ok {
		return "", "", nil, failed("Unsupported report format: " + format), nil
	}

	to = strings.TrimSpace(to)
	if to == "" {
		return "", "", nil, failed(MsgRecipientRequired), nil
	}

	settings, err := d.store.GetSmtpSettings(ctx)
	if err != nil && !errors.IsType(err, errors.ErrorTypeNotFound) {
		return "", "", nil, nil, err
	}
	if !settings.Complete() {
		return "", "", nil, failed(MsgIncompleteSettings), nil
	}
	return f, to, settings, nil, nil
}

func (d *Dispatcher) configResult(err error) (*Result, error) {
	if errors.IsType(err, errors.ErrorTypeConfiguration) {
		return failed(errors.UserMessage(err)), nil
	}
	return nil, err
}

// dispatch attaches the rendered document, sends with retry and records the
// send in the history
func (d *Dispatcher) dispatch(ctx context.Context, settings *types.SmtpSettings, out *outgoing) (*Result, error) {
	start := time.Now()
	scope := string(out.doc.Scope)
	event := logging.EmailEvent{
		Scope:     scope,
		Recipient: out.message.To,
		Subject:   out.message.Subject,
		Format:    string(out.format),
	}

	if out.format != types.FormatHTML {
		data, err := d.renderer.Render(ctx, out.doc, out.format)
		if err != nil {
			event.Event, event.Err = "render_failed", err
			d.events.LogEmailEvent(ctx, event)
			d.metrics.RecordEmail(scope, string(out.format), "error", time.Since(start))
			return failed(err.Error()), nil
		}
		doc := Attachment{
			Filename:    report.DefaultFileName(out.doc, out.format),
			ContentType: contentType(out.format),
			Data:        data,
		}
		out.message.Attachments = append([]Attachment{doc}, out.message.Attachments...)
	}

	if err := d.send(ctx, settings, out); err != nil {
		event.Event, event.Err, event.Duration = "send_failed", err, time.Since(start)
		d.events.LogEmailEvent(ctx, event)
		d.metrics.RecordEmail(scope, string(out.format), "error", time.Since(start))
		return failed(sendErrorMessage(err)), nil
	}
	d.metrics.RecordEmail(scope, string(out.format), "success", time.Since(start))
	event.Event, event.Duration = "sent", time.Since(start)
	d.events.LogEmailEvent(ctx, event)

	entry := out.entry
	entry.Recipient = out.message.To
	entry.Subject = out.message.Subject
	entry.Format = out.format
	entry.Status = types.EmailStatusSent
	if _, err := d.store.AddEmailHistory(ctx, &entry); err != nil {
		// the mail is already out, so the send still counts as delivered
		event.Event, event.Err = "history_failed", err
		d.events.LogEmailEvent(ctx, event)
	}

	return &Result{OK: true, Recipient: out.message.To}, nil
}

// send runs the transport under the overall send timeout, retrying transient
// network failures with linear backoff
func (d *Dispatcher) send(ctx context.Context, settings *types.SmtpSettings, out *outgoing) (err error) {
	if d.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.SendTimeout)
		defer cancel()
	}

	ctx, span := d.tracer.StartEmailSpan(ctx, settings.Host, settings.Port, string(out.format))
	defer func() { d.tracer.End(span, err) }()

	retrier := resilience.NewRetrier(resilience.RetryConfig{
		MaxAttempts:     d.config.MaxAttempts,
		InitialDelay:    d.config.RetryDelay,
		Backoff:         resilience.BackoffLinear,
		RetryableErrors: IsRetryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			d.logger.Warn("retrying email send",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		},
	})

	return retrier.Execute(ctx, func(ctx context.Context) error {
		err := d.transport.Send(ctx, settings, out.message)
		if err != nil {
			d.metrics.RecordEmailAttempt("error")
			return err
		}
		d.metrics.RecordEmailAttempt("success")
		return nil
	})
}

// sendErrorMessage maps a send failure to the message shown to the user
func sendErrorMessage(err error) string {
	var te *TransportError
	if stderrors.As(err, &te) {
		if te.IsDNS() {
			return MsgDNSFailure
		}
		if msg := te.Err.Error(); msg != "" {
			return msg
		}
		return MsgSendFailed
	}
	if msg := errors.UserMessage(err); msg != "" {
		return msg
	}
	return MsgSendFailed
}

// asFiles returns evidence not already embedded, as regular attachments
func asFiles(evidence, embedded []assets.Embedded) []Attachment {
	seen := make(map[string]bool, len(embedded))
	for _, e := range embedded {
		seen[e.Path] = true
	}
	var out []Attachment
	for _, a := range FromEmbedded(evidence) {
		if seen[a.Path] {
			continue
		}
		a.ContentID = ""
		out = append(out, a)
	}
	return out
}

func contentType(f types.Format) string {
	switch f {
	case types.FormatPDF:
		return "application/pdf"
	case types.FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "text/html"
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
