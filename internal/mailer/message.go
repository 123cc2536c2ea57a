// Package mailer sends rendered reports over SMTP and records what was sent.
package mailer

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/NikhilSetiya/vanguard-reports/internal/assets"
	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
)

const (
	mailerName   = "Vanguard Reports"
	messageIDTLD = "vanguard"
)

// Attachment is a file carried by a message. Data wins over Path. A non-empty
// ContentID makes it an inline part referenced from the HTML body.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
	Path        string
	ContentID   string
}

// Inline reports whether the attachment is referenced by content-ID
func (a Attachment) Inline() bool {
	return a.ContentID != ""
}

// EmailMessage is a report email ready for a transport
type EmailMessage struct {
	From        string
	ReplyTo     string
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// FromEmbedded converts resolved email assets to attachments. Images stay
// inline under their content-ID; videos are replaced by a notice in the body
// and travel as plain attachments.
func FromEmbedded(embedded []assets.Embedded) []Attachment {
	out := make([]Attachment, 0, len(embedded))
	for _, e := range embedded {
		a := Attachment{
			Filename:    e.Filename,
			ContentType: e.ContentType,
			Path:        e.Path,
		}
		if !e.Video {
			a.ContentID = e.ContentID
		}
		out = append(out, a)
	}
	return out
}

// Build converts m into a go-mail message. Path attachments whose file has
// vanished since resolution are skipped with a warning.
func (m *EmailMessage) Build(logger *zap.Logger) (*mail.Msg, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	msg := mail.NewMsg(mail.WithNoDefaultUserAgent())
	if err := msg.From(m.From); err != nil {
		return nil, errors.NewValidationError("invalid sender address: " + m.From).WithCause(err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, errors.NewValidationError("invalid recipient address: " + m.To).WithCause(err)
	}
	if m.ReplyTo != "" && m.ReplyTo != m.From {
		if err := msg.ReplyTo(m.ReplyTo); err != nil {
			return nil, errors.NewValidationError("invalid reply-to address: " + m.ReplyTo).WithCause(err)
		}
	}

	msg.Subject(m.Subject)
	msg.SetMessageIDWithValue(fmt.Sprintf("%s@%s", uuid.NewString(), messageIDTLD))
	msg.SetDate()
	msg.SetGenHeader(mail.HeaderXMailer, mailerName)

	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	}

	for _, a := range m.Attachments {
		r, err := a.reader()
		if err != nil {
			logger.Warn("skipping unreadable attachment",
				zap.String("filename", a.Filename),
				zap.String("path", a.Path),
				zap.Error(err))
			continue
		}

		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if a.Inline() {
			opts = append(opts, mail.WithFileContentID("<"+a.ContentID+">"))
			err = msg.EmbedReader(a.Filename, r, opts...)
		} else {
			err = msg.AttachReader(a.Filename, r, opts...)
		}
		if err != nil {
			return nil, errors.NewAssetError(a.Path, "failed to attach "+a.Filename).WithCause(err)
		}
	}

	return msg, nil
}

// WriteTo renders the complete MIME message to w
func (m *EmailMessage) WriteTo(w io.Writer) (int64, error) {
	msg, err := m.Build(nil)
	if err != nil {
		return 0, err
	}
	return msg.WriteTo(w)
}

func (a Attachment) reader() (io.Reader, error) {
	if a.Data != nil {
		return bytes.NewReader(a.Data), nil
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
