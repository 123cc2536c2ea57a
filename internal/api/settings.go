package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// SettingsStore reads and writes the SMTP settings row
type SettingsStore interface {
	GetSmtpSettings(ctx context.Context) (*types.SmtpSettings, error)
	SaveSmtpSettings(ctx context.Context, settings *types.SmtpSettings) (*types.SmtpSettings, error)
}

// SettingsHandler serves the SMTP settings. The password is write-only.
type SettingsHandler struct {
	store SettingsStore
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// SMTPView is the readable form of the SMTP settings
type SMTPView struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	User        string `json:"user"`
	From        string `json:"from"`
	PasswordSet bool   `json:"password_set"`
	Complete    bool   `json:"complete"`
}

func newSMTPView(s *types.SmtpSettings) SMTPView {
	if s == nil {
		return SMTPView{}
	}
	return SMTPView{
		Host:        s.Host,
		Port:        s.Port,
		User:        s.User,
		From:        s.From,
		PasswordSet: s.Pass != "",
		Complete:    s.Complete(),
	}
}

// SMTPRequest updates the SMTP settings. An empty Pass keeps the stored one.
type SMTPRequest struct {
	Host string `json:"host" binding:"required"`
	Port int    `json:"port" binding:"required,min=1,max=65535"`
	User string `json:"user" binding:"required"`
	Pass string `json:"pass"`
	From string `json:"from" binding:"required"`
}

// GetSMTP handles GET /api/v1/settings/smtp
func (h *SettingsHandler) GetSMTP(c *gin.Context) {
	settings, err := h.store.GetSmtpSettings(c.Request.Context())
	if err != nil && !errors.IsType(err, errors.ErrorTypeNotFound) {
		ErrorResponseFromError(c, err)
		return
	}
	SuccessResponse(c, newSMTPView(settings))
}

// SaveSMTP handles PUT /api/v1/settings/smtp
func (h *SettingsHandler) SaveSMTP(c *gin.Context) {
	var req SMTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "Invalid SMTP settings: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	pass := req.Pass
	if pass == "" {
		current, err := h.store.GetSmtpSettings(ctx)
		if err != nil && !errors.IsType(err, errors.ErrorTypeNotFound) {
			ErrorResponseFromError(c, err)
			return
		}
		if current != nil {
			pass = current.Pass
		}
	}

	saved, err := h.store.SaveSmtpSettings(ctx, &types.SmtpSettings{
		Host: req.Host,
		Port: req.Port,
		User: req.User,
		Pass: pass,
		From: req.From,
	})
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}
	SuccessResponse(c, newSMTPView(saved))
}
