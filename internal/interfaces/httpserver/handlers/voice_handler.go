package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/domain/voice"
	"github.com/janhq/jan-widget/internal/infrastructure/auth"
	"github.com/janhq/jan-widget/internal/interfaces/httpserver/requests"
	"github.com/janhq/jan-widget/internal/utils/platformerrors"
)

// VoiceIssuer signs real-time voice connection URLs.
type VoiceIssuer interface {
	Issue(ctx context.Context, identity string) (*voice.ConnectionGrant, error)
}

// VoiceHandler exposes voice session URLs. A nil issuer means voice
// sessions are not configured.
type VoiceHandler struct {
	issuer VoiceIssuer
	log    zerolog.Logger
}

// NewVoiceHandler constructs the handler.
func NewVoiceHandler(issuer VoiceIssuer, log zerolog.Logger) *VoiceHandler {
	return &VoiceHandler{
		issuer: issuer,
		log:    log.With().Str("handler", "voice").Logger(),
	}
}

// CreateSession handles POST /v1/voice/sessions. The authenticated subject,
// when present, takes precedence over a requested identity.
func (h *VoiceHandler) CreateSession(c *gin.Context) {
	if h.issuer == nil {
		platformerrors.WriteUnavailable(c, "voice sessions are not configured")
		return
	}

	var req requests.CreateVoiceSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		platformerrors.WriteValidationError(c, "invalid request body")
		return
	}

	identity := req.Identity
	if subject := auth.Subject(c); subject != "" {
		identity = subject
	}

	grant, err := h.issuer.Issue(c.Request.Context(), identity)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusCreated, grant)
}
