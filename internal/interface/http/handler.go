package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/obara/supportdesk/internal/domain/chat"
	apperrors "github.com/obara/supportdesk/pkg/errors"
)

// Handler wires the HTTP transport to the chat domain service.
type Handler struct {
	chatSvc chat.Service
	logger  *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(chatSvc chat.Service, logger *slog.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger.With("component", "http.handler"),
	}
}

// Ask answers one user question grounded on the best matching FAQ.
func (h *Handler) Ask(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	resp, err := h.chatSvc.Ask(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, mapDomainError(err, "chat_failed"))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Summarize condenses the recent turns of a session.
func (h *Handler) Summarize(c *gin.Context) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	resp, err := h.chatSvc.Summarize(c.Request.Context(), req.SessionID)
	if err != nil {
		abortWithError(c, mapDomainError(err, "summary_failed"))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CommonFaqs returns a random sample of curated FAQ pairs.
func (h *Handler) CommonFaqs(c *gin.Context) {
	n := 0
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "n must be a non-negative integer", err))
			return
		}
		n = parsed
	}

	items, err := h.chatSvc.CommonFaqs(c.Request.Context(), n)
	if err != nil {
		abortWithError(c, mapDomainError(err, "faq_failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"faqs": items})
}

// Recompute discards the embedding cache and rebuilds it from the source.
func (h *Handler) Recompute(c *gin.Context) {
	result, err := h.chatSvc.Recompute(c.Request.Context())
	if err != nil {
		abortWithError(c, mapDomainError(err, "recompute_failed"))
		return
	}

	c.JSON(http.StatusOK, result)
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func mapDomainError(err error, fallbackCode string) *HTTPError {
	status := http.StatusInternalServerError
	code := fallbackCode
	switch {
	case apperrors.IsCode(err, apperrors.CodeInvalidInput):
		status = http.StatusBadRequest
		code = "invalid_request"
	case apperrors.IsCode(err, apperrors.CodeLLM):
		status = http.StatusBadGateway
		code = apperrors.CodeLLM
	case apperrors.IsCode(err, apperrors.CodeEmbedding):
		status = http.StatusBadGateway
		code = apperrors.CodeEmbedding
	case apperrors.IsCode(err, apperrors.CodeDataSource):
		status = http.StatusServiceUnavailable
		code = apperrors.CodeDataSource
	}
	return NewHTTPError(status, code, errMessage(err), err)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
