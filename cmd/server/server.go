package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/config"
	"github.com/janhq/jan-widget/internal/domain/conversation"
	"github.com/janhq/jan-widget/internal/domain/stream"
	"github.com/janhq/jan-widget/internal/domain/voice"
	"github.com/janhq/jan-widget/internal/infrastructure/audio"
	"github.com/janhq/jan-widget/internal/infrastructure/auth"
	"github.com/janhq/jan-widget/internal/infrastructure/broker"
	"github.com/janhq/jan-widget/internal/infrastructure/livekit"
	"github.com/janhq/jan-widget/internal/infrastructure/llmprovider"
	"github.com/janhq/jan-widget/internal/infrastructure/logger"
	"github.com/janhq/jan-widget/internal/infrastructure/metrics"
	"github.com/janhq/jan-widget/internal/infrastructure/observability"
	"github.com/janhq/jan-widget/internal/infrastructure/redact"
	"github.com/janhq/jan-widget/internal/infrastructure/store"
	"github.com/janhq/jan-widget/internal/infrastructure/transcript"
	"github.com/janhq/jan-widget/internal/infrastructure/tts"
	"github.com/janhq/jan-widget/internal/interfaces/httpserver"
	"github.com/janhq/jan-widget/internal/interfaces/httpserver/handlers"
)

const redactMaxLen = 200

// Application holds the main application components.
type Application struct {
	httpServer    *httpserver.HTTPServer
	conversations *conversation.Service
	archive       *transcript.RedisArchive
	authValidator *auth.Validator
	cfg           *config.Config
	log           zerolog.Logger
}

// NewApplication creates a new application instance.
func NewApplication(
	httpServer *httpserver.HTTPServer,
	conversations *conversation.Service,
	archive *transcript.RedisArchive,
	authValidator *auth.Validator,
	cfg *config.Config,
	log zerolog.Logger,
) *Application {
	return &Application{
		httpServer:    httpServer,
		conversations: conversations,
		archive:       archive,
		authValidator: authValidator,
		cfg:           cfg,
		log:           log,
	}
}

// Start runs the HTTP server until ctx is cancelled, then stops running
// turns and releases connections.
func (a *Application) Start(ctx context.Context) error {
	err := a.httpServer.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if serr := a.conversations.Shutdown(shutdownCtx); serr != nil {
		a.log.Warn().Err(serr).Msg("turns still running at shutdown")
	}
	a.authValidator.Close()
	if a.archive != nil {
		if cerr := a.archive.Close(); cerr != nil {
			a.log.Warn().Err(cerr).Msg("failed to close transcript archive")
		}
	}

	return err
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	app, err := buildApplication(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build application")
	}

	log.Info().
		Str("service", cfg.ServiceName).
		Int("port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Bool("tts", cfg.TTSEnabled).
		Bool("voice_sessions", cfg.VoiceSessionsEnabled()).
		Msg("starting application")

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func buildApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, error) {
	authValidator, err := ProvideAuthValidator(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	events := ProvideBroker(cfg, log)

	sessions, err := ProvideConversationStore(cfg, events, log)
	if err != nil {
		return nil, err
	}

	archive, err := ProvideTranscriptArchive(cfg, log)
	if err != nil {
		return nil, err
	}

	runner := ProvideRunner(cfg, log)
	service := ProvideConversationService(cfg, sessions, archive, runner, ProvideSpeakerFactory(cfg, events, log), events, log)

	handlerProvider := handlers.ProvideHandlers(cfg, service, events, ProvideVoiceIssuer(cfg, log), log)
	httpServer := httpserver.New(cfg, log, handlerProvider, authValidator, ProvideReadinessChecks(archive))

	return NewApplication(httpServer, service, archive, authValidator, cfg, log), nil
}

// ProvideAuthValidator provides an auth validator.
func ProvideAuthValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	return auth.NewValidator(ctx, cfg, log)
}

// ProvideBroker provides the in-process event broker.
func ProvideBroker(cfg *config.Config, log zerolog.Logger) *broker.Broker {
	return broker.New(broker.Options{
		BufferSize:           cfg.EventBufferSize,
		OnDrop:               metrics.RecordDroppedEvent,
		OnSubscribersChanged: metrics.RecordSubscribersChanged,
	}, log)
}

// ProvideConversationStore provides the bounded live conversation store.
// Removing a conversation ends its event subscriptions.
func ProvideConversationStore(cfg *config.Config, events *broker.Broker, log zerolog.Logger) (conversation.Store, error) {
	lruStore, err := store.NewLRUStore(cfg.MaxConversations, func(id string) {
		metrics.RecordConversationClosed()
		events.CloseConversation(id)
	}, log)
	if err != nil {
		return nil, err
	}
	return countedStore{LRUStore: lruStore}, nil
}

// ProvideTranscriptArchive connects to Redis when REDIS_URL is set.
func ProvideTranscriptArchive(cfg *config.Config, log zerolog.Logger) (*transcript.RedisArchive, error) {
	if cfg.RedisURL == "" {
		log.Info().Msg("REDIS_URL not set, transcripts are not archived")
		return nil, nil
	}
	return transcript.NewRedisArchive(cfg.RedisURL, cfg.TranscriptTTL, log)
}

// ProvideRunner provides the turn runner backed by the upstream chat API.
func ProvideRunner(cfg *config.Config, log zerolog.Logger) *conversation.Runner {
	return conversation.NewRunner(
		llmprovider.NewClientFromConfig(cfg, log),
		stream.Options{MaxMalformedLines: cfg.StreamMaxMalformedLines},
		metrics.NewRecorder(),
		redact.New(redact.ParseLevel(cfg.LogPIILevel), cfg.ServiceName, redactMaxLen),
		log,
	)
}

// ProvideSpeakerFactory builds per-conversation voice hooks that publish
// clips on the conversation's event feed. It returns nil when TTS is off.
func ProvideSpeakerFactory(cfg *config.Config, events *broker.Broker, log zerolog.Logger) conversation.SpeakerFactory {
	if !cfg.TTSEnabled {
		return nil
	}
	synth := tts.NewClientFromConfig(cfg, metrics.RecordTTS, log)
	hookCfg := voice.HookConfig{Voice: cfg.TTSVoice, SynthesisTimeout: cfg.TTSTimeout}
	return func(conversationID string) conversation.Speaker {
		player := audio.NewEventPlayer(conversationID, events, uuid.NewString)
		return voice.NewHook(synth, player, hookCfg, log.With().Str("conversation_id", conversationID).Logger())
	}
}

// ProvideConversationService provides the conversation service.
func ProvideConversationService(
	cfg *config.Config,
	sessions conversation.Store,
	archive *transcript.RedisArchive,
	runner *conversation.Runner,
	speakers conversation.SpeakerFactory,
	events *broker.Broker,
	log zerolog.Logger,
) *conversation.Service {
	var arch conversation.Archive
	if archive != nil {
		arch = archive
	}
	return conversation.NewService(
		sessions,
		arch,
		runner,
		speakers,
		events,
		metrics.NewRecorder(),
		conversation.ServiceConfig{VoiceOutputDefault: cfg.VoiceOutput},
		log,
	)
}

// ProvideVoiceIssuer returns nil unless LiveKit credentials are configured.
func ProvideVoiceIssuer(cfg *config.Config, log zerolog.Logger) handlers.VoiceIssuer {
	if !cfg.VoiceSessionsEnabled() {
		return nil
	}
	return voice.NewConnectionIssuer(livekit.NewTokenGeneratorFromConfig(cfg), cfg.LiveKitWsURL, cfg.LiveKitTokenTTL, log)
}

// ProvideReadinessChecks reports Redis reachability on /readyz.
func ProvideReadinessChecks(archive *transcript.RedisArchive) map[string]httpserver.ReadinessCheck {
	if archive == nil {
		return nil
	}
	return map[string]httpserver.ReadinessCheck{"redis": archive.Ping}
}

// countedStore keeps the active conversation gauge in step with creations.
// Removals are counted by the eviction callback, which also sees deletes.
type countedStore struct {
	*store.LRUStore
}

func (s countedStore) Create(ctx context.Context, sess *conversation.Session) error {
	if err := s.LRUStore.Create(ctx, sess); err != nil {
		return err
	}
	metrics.RecordConversationOpened()
	return nil
}

func loadEnvFiles() {
	paths := []string{".env", "../.env", "../../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
