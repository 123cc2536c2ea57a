package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/NikhilSetiya/vanguard-reports/internal/database"
	"github.com/NikhilSetiya/vanguard-reports/internal/mailer"
	"github.com/NikhilSetiya/vanguard-reports/internal/recipients"
	"github.com/NikhilSetiya/vanguard-reports/pkg/logging"
	"github.com/NikhilSetiya/vanguard-reports/pkg/types"
)

// HistoryStore lists sent report emails
type HistoryStore interface {
	ListEmailHistory(ctx context.Context, pagination *database.Pagination) ([]*types.EmailHistoryEntry, error)
}

// EmailHandler serves report emails, the send history and recent recipients
type EmailHandler struct {
	dispatcher *mailer.Dispatcher
	history    HistoryStore
	recipients recipients.Store
	logger     *logging.Logger
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(dispatcher *mailer.Dispatcher, history HistoryStore, recent recipients.Store, logger *logging.Logger) *EmailHandler {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &EmailHandler{
		dispatcher: dispatcher,
		history:    history,
		recipients: recent,
		logger:     logger,
	}
}

// SendIssue handles POST /api/v1/email/issue
func (h *EmailHandler) SendIssue(c *gin.Context) {
	var req mailer.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.dispatcher.SendIssueReport(c.Request.Context(), req)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}
	h.remember(c.Request.Context(), result)
	SuccessResponse(c, result)
}

// SendProject handles POST /api/v1/email/project
func (h *EmailHandler) SendProject(c *gin.Context) {
	var req mailer.ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.dispatcher.SendProjectReport(c.Request.Context(), req)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}
	h.remember(c.Request.Context(), result)
	SuccessResponse(c, result)
}

// History handles GET /api/v1/email/history?limit=&offset=
func (h *EmailHandler) History(c *gin.Context) {
	var page database.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		BadRequestResponse(c, "Invalid pagination: "+err.Error())
		return
	}

	entries, err := h.history.ListEmailHistory(c.Request.Context(), &page)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}
	if entries == nil {
		entries = []*types.EmailHistoryEntry{}
	}

	limit := page.Limit
	if limit <= 0 {
		limit = database.DefaultHistoryLimit
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}

	SuccessResponseWithMeta(c, entries, &Meta{Pagination: &Pagination{
		Limit:   limit,
		Offset:  offset,
		Count:   len(entries),
		HasMore: len(entries) == limit,
	}})
}

// Recipients handles GET /api/v1/email/recipients
func (h *EmailHandler) Recipients(c *gin.Context) {
	list, err := h.recipients.List(c.Request.Context())
	if err != nil {
		h.logger.Warn("Failed to list recent recipients", "error", err)
		list = nil
	}
	if list == nil {
		list = []string{}
	}
	SuccessResponse(c, list)
}

// remember records the address of a successful send. The list is a
// convenience, so failures are only logged.
func (h *EmailHandler) remember(ctx context.Context, result *mailer.Result) {
	if result == nil || !result.OK || result.Recipient == "" || h.recipients == nil {
		return
	}
	if err := h.recipients.Remember(ctx, result.Recipient); err != nil {
		h.logger.Warn("Failed to remember recipient", "recipient", result.Recipient, "error", err)
	}
}
