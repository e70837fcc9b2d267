package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/domain/conversation"
	"github.com/janhq/jan-widget/internal/interfaces/httpserver/requests"
	"github.com/janhq/jan-widget/internal/interfaces/httpserver/responses"
	"github.com/janhq/jan-widget/internal/utils/platformerrors"
)

// ConversationService is the part of conversation.Service the handlers use.
type ConversationService interface {
	Create(ctx context.Context, voiceOutput *bool) (conversation.Snapshot, error)
	Get(ctx context.Context, id string) (conversation.Snapshot, error)
	Submit(ctx context.Context, id, text string) (conversation.SubmitResult, error)
	SetVoiceOutput(ctx context.Context, id string, enabled bool) (conversation.Snapshot, error)
	Reset(ctx context.Context, id string) (conversation.Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// ConversationHandler exposes the conversation API.
type ConversationHandler struct {
	service ConversationService
	log     zerolog.Logger
}

// NewConversationHandler constructs the handler.
func NewConversationHandler(service ConversationService, log zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		log:     log.With().Str("handler", "conversation").Logger(),
	}
}

// Create handles POST /v1/conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	var req requests.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		platformerrors.WriteValidationError(c, "invalid request body")
		return
	}

	snap, err := h.service.Create(c.Request.Context(), req.VoiceOutput)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// Get handles GET /v1/conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	snap, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Submit handles POST /v1/conversations/:id/messages. 202 when a turn
// started, 200 with accepted=false when the submit was ignored.
func (h *ConversationHandler) Submit(c *gin.Context) {
	var req requests.SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		platformerrors.WriteValidationError(c, "invalid request body")
		return
	}

	res, err := h.service.Submit(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}

	status := http.StatusOK
	if res.Accepted {
		status = http.StatusAccepted
	}
	c.JSON(status, responses.NewSubmitResponse(res))
}

// Update handles PATCH /v1/conversations/:id
func (h *ConversationHandler) Update(c *gin.Context) {
	var req requests.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		platformerrors.WriteValidationError(c, "voice_output is required")
		return
	}

	snap, err := h.service.SetVoiceOutput(c.Request.Context(), c.Param("id"), *req.VoiceOutput)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Reset handles POST /v1/conversations/:id/reset
func (h *ConversationHandler) Reset(c *gin.Context) {
	snap, err := h.service.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Delete handles DELETE /v1/conversations/:id
func (h *ConversationHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, responses.NewDeleteResponse(id))
}
