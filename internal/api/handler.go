package api

import (
	"net/http"

	"chat-companion/backend/internal/bot"
	"chat-companion/backend/internal/dedup"
	"chat-companion/backend/internal/models"
	apperrors "chat-companion/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Handler exposes the session engine over HTTP. Transports in front of the
// engine (chat networks, SMS gateways) are expected to call these endpoints.
type Handler struct {
	engine  *bot.Engine
	deduper dedup.Deduper
}

// NewHandler creates the HTTP handler
func NewHandler(engine *bot.Engine, deduper dedup.Deduper) *Handler {
	return &Handler{engine: engine, deduper: deduper}
}

// SendMessage relays one user message through the engine
func (h *Handler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_REQUEST", "text is required"))
		return
	}

	if req.ExternalMessageID != nil && h.deduper.Seen(c.Request.Context(), *req.ExternalMessageID) {
		c.JSON(http.StatusOK, models.SendMessageResponse{Duplicate: true})
		return
	}

	reply := h.engine.HandleMessage(c.Request.Context(), req.ExternalID, req.Text)
	c.JSON(http.StatusOK, models.SendMessageResponse{Reply: reply})
}

// TogglePremium flips the premium flag for the identified user
func (h *Handler) TogglePremium(c *gin.Context) {
	var req models.TogglePremiumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_REQUEST", "malformed request body"))
		return
	}

	status := h.engine.TogglePremium(c.Request.Context(), req.ExternalID)
	c.JSON(http.StatusOK, models.TogglePremiumResponse{Status: status})
}
