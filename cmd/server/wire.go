//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/config"
	"github.com/janhq/jan-widget/internal/interfaces/httpserver"
	"github.com/janhq/jan-widget/internal/interfaces/httpserver/handlers"
)

// ProviderSet is the wire provider set for the application.
var ProviderSet = wire.NewSet(
	// Infrastructure providers
	ProvideAuthValidator,
	ProvideBroker,
	ProvideConversationStore,
	ProvideTranscriptArchive,
	ProvideReadinessChecks,

	// Domain providers
	ProvideRunner,
	ProvideSpeakerFactory,
	ProvideConversationService,
	ProvideVoiceIssuer,

	// Interface providers
	handlers.HandlerProvider,
	httpserver.New,

	// Application
	NewApplication,
)

// CreateApplication creates the application with all dependencies wired.
func CreateApplication(
	ctx context.Context,
	cfg *config.Config,
	log zerolog.Logger,
) (*Application, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
