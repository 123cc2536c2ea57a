package mailer

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/NikhilSetiya/vanguard-reports/pkg/config"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// ImplicitTLSPort is the SMTPS port. Every other port upgrades with STARTTLS
// when the server offers it.
const ImplicitTLSPort = 465

// Transport error codes
const (
	CodeDNS          = "EDNS"
	CodeDNSTemporary = "EAI_AGAIN"
	CodeTimeout      = "ETIMEDOUT"
	CodeReset        = "ECONNRESET"
	CodeRefused      = "ECONNREFUSED"
	CodeTLS          = "ETLS"
	CodeAuth         = "EAUTH"
	CodeEnvelope     = "EENVELOPE"
	CodeSend         = "ESEND"
	CodeCanceled     = "ECANCELED"
)

var retryableCodes = map[string]bool{
	CodeDNS:          true,
	CodeDNSTemporary: true,
	CodeTimeout:      true,
	CodeReset:        true,
}

// TransportError is a classified SMTP failure
type TransportError struct {
	Code string
	Err  error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsDNS reports whether the failure was a host lookup
func (e *TransportError) IsDNS() bool {
	return e.Code == CodeDNS || e.Code == CodeDNSTemporary
}

// IsRetryable reports whether err is a transient network failure worth
// another attempt: DNS failures, timeouts and connection resets.
func IsRetryable(err error) bool {
	var te *TransportError
	if stderrors.As(err, &te) {
		return retryableCodes[te.Code]
	}
	return false
}

// Classify wraps err in a TransportError carrying its failure code.
// Errors that are already classified are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if stderrors.As(err, &te) {
		return err
	}
	return &TransportError{Code: classify(err), Err: err}
}

func classify(err error) string {
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		if dnsErr.IsTemporary || dnsErr.IsTimeout {
			return CodeDNSTemporary
		}
		return CodeDNS
	}

	if stderrors.Is(err, context.Canceled) {
		return CodeCanceled
	}
	if stderrors.Is(err, syscall.ECONNRESET) || stderrors.Is(err, syscall.EPIPE) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return CodeReset
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return CodeRefused
	}
	if stderrors.Is(err, syscall.ETIMEDOUT) || stderrors.Is(err, os.ErrDeadlineExceeded) {
		return CodeTimeout
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}

	var certErr *tls.CertificateVerificationError
	var recordErr tls.RecordHeaderError
	if stderrors.As(err, &certErr) || stderrors.As(err, &recordErr) {
		return CodeTLS
	}

	var sendErr *mail.SendError
	if stderrors.As(err, &sendErr) {
		// SendError does not unwrap its inner errors
		msg := strings.ToLower(sendErr.Error())
		switch {
		case strings.Contains(msg, "connection reset"), strings.Contains(msg, "broken pipe"):
			return CodeReset
		case strings.Contains(msg, "i/o timeout"):
			return CodeTimeout
		case sendErr.Reason == mail.ErrSMTPMailFrom || sendErr.Reason == mail.ErrSMTPRcptTo:
			return CodeEnvelope
		}
		return CodeSend
	}

	if strings.Contains(strings.ToLower(err.Error()), "auth") {
		return CodeAuth
	}
	return CodeSend
}

// Transport delivers one message using the given server settings
type Transport interface {
	Send(ctx context.Context, settings *types.SmtpSettings, msg *EmailMessage) error
}

// SMTPTransport is the go-mail backed Transport
type SMTPTransport struct {
	connectionTimeout time.Duration
	greetingTimeout   time.Duration
	socketTimeout     time.Duration
	logger            *zap.Logger
}

// NewSMTPTransport creates a transport with the configured timeouts
func NewSMTPTransport(cfg config.EmailConfig, logger *zap.Logger) *SMTPTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPTransport{
		connectionTimeout: cfg.ConnectionTimeout,
		greetingTimeout:   cfg.GreetingTimeout,
		socketTimeout:     cfg.SocketTimeout,
		logger:            logger,
	}
}

// Send dials the server, authenticates and sends msg. Failures are returned
// as *TransportError.
func (t *SMTPTransport) Send(ctx context.Context, settings *types.SmtpSettings, msg *EmailMessage) error {
	m, err := msg.Build(t.logger)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(settings.Host, t.options(settings)...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	start := time.Now()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		classified := Classify(err)
		t.logger.Warn("SMTP send failed",
			zap.String("host", settings.Host),
			zap.Int("port", settings.Port),
			zap.String("code", classified.(*TransportError).Code),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return classified
	}

	t.logger.Info("Successfully sent report email",
		zap.String("host", settings.Host),
		zap.Int("port", settings.Port),
		zap.String("to", msg.To),
		zap.Int("attachments", len(msg.Attachments)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (t *SMTPTransport) options(settings *types.SmtpSettings) []mail.Option {
	implicitTLS := settings.Port == ImplicitTLSPort

	opts := []mail.Option{
		mail.WithPort(settings.Port),
		mail.WithUsername(settings.User),
		mail.WithPassword(settings.Pass),
		mail.WithDialContextFunc(t.dialer(settings.Host, implicitTLS)),
	}
	if t.socketTimeout > 0 {
		opts = append(opts, mail.WithTimeout(t.socketTimeout))
	}

	if implicitTLS {
		// go-mail cannot see the TLS layer of a custom dialer, so it would
		// only autodiscover challenge-response mechanisms here.
		opts = append(opts, mail.WithSSL(), mail.WithSMTPAuth(mail.SMTPAuthLogin))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic), mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover))
	}
	return opts
}

// dialer bounds the TCP connect (and TLS handshake on 465) by the connection
// timeout, then gives the server greetingTimeout to send its banner.
func (t *SMTPTransport) dialer(host string, implicitTLS bool) mail.DialContextFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		nd := &net.Dialer{Timeout: t.connectionTimeout}

		var (
			conn net.Conn
			err  error
		)
		if implicitTLS {
			td := &tls.Dialer{
				NetDialer: nd,
				Config:    &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
			}
			conn, err = td.DialContext(ctx, network, address)
		} else {
			conn, err = nd.DialContext(ctx, network, address)
		}
		if err != nil {
			return nil, err
		}

		if t.greetingTimeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(t.greetingTimeout))
		}
		return conn, nil
	}
}
