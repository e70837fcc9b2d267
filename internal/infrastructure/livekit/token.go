package livekit

import (
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/janhq/jan-widget/internal/config"
)

// TokenGenerator signs LiveKit access tokens for voice sessions.
type TokenGenerator struct {
	apiKey    string
	apiSecret string
}

// NewTokenGenerator creates a token generator from explicit credentials.
func NewTokenGenerator(apiKey, apiSecret string) *TokenGenerator {
	return &TokenGenerator{apiKey: apiKey, apiSecret: apiSecret}
}

// NewTokenGeneratorFromConfig reads LiveKit credentials from config.
func NewTokenGeneratorFromConfig(cfg *config.Config) *TokenGenerator {
	return NewTokenGenerator(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
}

// Generate signs a token that lets identity join room for ttl. The grant
// allows audio in both directions and data messages for transcripts.
func (g *TokenGenerator) Generate(room, identity string, ttl time.Duration) (string, error) {
	canPublish := true
	canSubscribe := true
	canPublishData := true

	grant := &auth.VideoGrant{
		RoomJoin:       true,
		RoomCreate:     true,
		Room:           room,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}

	return auth.NewAccessToken(g.apiKey, g.apiSecret).
		AddGrant(grant).
		SetIdentity(identity).
		SetName(identity).
		SetValidFor(ttl).
		ToJWT()
}
