package handlers

import (
	"time"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/config"
	"github.com/janhq/jan-widget/internal/domain/conversation"
	"github.com/janhq/jan-widget/internal/infrastructure/broker"
)

// Provider holds all HTTP handlers.
type Provider struct {
	Conversation *ConversationHandler
	Events       *EventsHandler
	Voice        *VoiceHandler
}

// NewProvider builds every handler.
func NewProvider(
	conversations *conversation.Service,
	events EventSource,
	issuer VoiceIssuer,
	heartbeat time.Duration,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Conversation: NewConversationHandler(conversations, log),
		Events:       NewEventsHandler(conversations, events, heartbeat, log),
		Voice:        NewVoiceHandler(issuer, log),
	}
}

// BrokerSource adapts the in-process broker to EventSource.
type BrokerSource struct {
	Broker *broker.Broker
}

// Subscribe opens a broker subscription.
func (s BrokerSource) Subscribe(conversationID string) Subscription {
	return s.Broker.Subscribe(conversationID)
}

// ProvideHandlers wires handlers from configuration.
func ProvideHandlers(cfg *config.Config, conversations *conversation.Service, b *broker.Broker, issuer VoiceIssuer, log zerolog.Logger) *Provider {
	return NewProvider(conversations, BrokerSource{Broker: b}, issuer, cfg.SSEHeartbeatInterval, log)
}

// HandlerProvider provides all HTTP handlers.
var HandlerProvider = wire.NewSet(ProvideHandlers)
