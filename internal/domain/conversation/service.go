package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const archiveTimeout = 5 * time.Second

// Reasons passed to Recorder.RecordRejectedSubmit.
const (
	RejectEmpty    = "empty"
	RejectInFlight = "in_flight"
)

// SubmitResult reports whether a submit opened a turn.
type SubmitResult struct {
	Accepted     bool     `json:"accepted"`
	Conversation Snapshot `json:"conversation"`
}

// ServiceConfig holds behaviour switches for Service.
type ServiceConfig struct {
	VoiceOutputDefault bool
}

type runningTurn struct {
	turnID string
	cancel context.CancelFunc
	done   chan struct{}
}

// Service hosts many conversations and runs their turns in the background.
// Turns run on a service-scoped context: they outlive the request that
// submitted them and are cancelled by Delete or Shutdown.
type Service struct {
	store     Store
	archive   Archive
	runner    *Runner
	speakers  SpeakerFactory
	publisher Publisher
	recorder  Recorder
	cfg       ServiceConfig
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	turns  map[string]runningTurn
	wg     sync.WaitGroup
}

// NewService wires dependencies. archive, speakers, publisher and recorder may be nil.
func NewService(
	store Store,
	archive Archive,
	runner *Runner,
	speakers SpeakerFactory,
	publisher Publisher,
	recorder Recorder,
	cfg ServiceConfig,
	log zerolog.Logger,
) *Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:     store,
		archive:   archive,
		runner:    runner,
		speakers:  speakers,
		publisher: publisher,
		recorder:  recorder,
		cfg:       cfg,
		log:       log.With().Str("component", "conversation-service").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		turns:     make(map[string]runningTurn),
	}
}

// Create starts an empty conversation. voiceOutput overrides the configured default.
func (s *Service) Create(ctx context.Context, voiceOutput *bool) (Snapshot, error) {
	enabled := s.cfg.VoiceOutputDefault
	if voiceOutput != nil {
		enabled = *voiceOutput
	}

	id := NewConversationID()
	opts := []SessionOption{
		WithVoiceOutput(enabled),
		WithPublisher(s.publisher),
	}
	if s.speakers != nil {
		if speaker := s.speakers(id); speaker != nil {
			opts = append(opts, WithSpeaker(speaker))
		}
	}

	sess := NewSession(id, opts...)
	if err := s.store.Create(ctx, sess); err != nil {
		return Snapshot{}, fmt.Errorf("store conversation: %w", err)
	}

	s.log.Info().Str("conversation_id", id).Bool("voice_output", enabled).Msg("conversation created")
	return sess.Snapshot(), nil
}

// Get returns the live conversation, or its archived snapshot once evicted.
func (s *Service) Get(ctx context.Context, id string) (Snapshot, error) {
	sess, err := s.store.Get(ctx, id)
	if err == nil {
		return sess.Snapshot(), nil
	}
	if !errors.Is(err, ErrConversationNotFound) || s.archive == nil {
		return Snapshot{}, err
	}

	snap, err := s.archive.Load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return *snap, nil
}

// Submit opens a turn for text and starts streaming in the background. A
// blank text or an open turn leaves the conversation untouched and returns
// Accepted=false.
func (s *Service) Submit(ctx context.Context, id, text string) (SubmitResult, error) {
	sess, err := s.live(ctx, id)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := s.reserve(); err != nil {
		return SubmitResult{}, err
	}

	turn, ok := sess.Submit(text)
	if !ok {
		s.wg.Done()
		reason := RejectInFlight
		if strings.TrimSpace(text) == "" {
			reason = RejectEmpty
		}
		s.recorder.RecordRejectedSubmit(reason)
		s.log.Debug().Str("conversation_id", id).Str("reason", reason).Msg("submit ignored")
		return SubmitResult{Accepted: false, Conversation: sess.Snapshot()}, nil
	}

	snap := sess.Snapshot()
	s.start(sess, turn)
	return SubmitResult{Accepted: true, Conversation: snap}, nil
}

// SetVoiceOutput toggles the post-turn voice hook.
func (s *Service) SetVoiceOutput(ctx context.Context, id string, enabled bool) (Snapshot, error) {
	sess, err := s.live(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.SetVoiceOutput(enabled)
	return sess.Snapshot(), nil
}

// Reset clears the conversation's messages.
func (s *Service) Reset(ctx context.Context, id string) (Snapshot, error) {
	sess, err := s.live(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := sess.Reset(); err != nil {
		return Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Delete removes a conversation and its archived snapshot. A running turn is
// cancelled and its audio stopped; the turn's outcome is not archived.
func (s *Service) Delete(ctx context.Context, id string) error {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) && s.archive != nil {
			if _, aerr := s.archive.Load(ctx, id); aerr == nil {
				return s.purge(ctx, id)
			}
		}
		return err
	}

	s.mu.Lock()
	running, ok := s.turns[id]
	if ok {
		delete(s.turns, id)
		running.cancel()
	}
	s.mu.Unlock()

	sess.Close()
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if ok {
		select {
		case <-running.done:
		case <-ctx.Done():
		}
	}
	return s.purge(ctx, id)
}

func (s *Service) purge(ctx context.Context, id string) error {
	if s.archive != nil {
		if err := s.archive.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete archived conversation: %w", err)
		}
	}
	s.log.Info().Str("conversation_id", id).Msg("conversation deleted")
	return nil
}

// Shutdown cancels running turns and waits for them to complete.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) live(ctx context.Context, id string) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err == nil {
		return sess, nil
	}
	if errors.Is(err, ErrConversationNotFound) && s.archive != nil {
		if _, aerr := s.archive.Load(ctx, id); aerr == nil {
			return nil, ErrReadOnly
		}
	}
	return nil, err
}

// reserve counts a turn against Shutdown's wait before the session is touched.
func (s *Service) reserve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return ErrServiceClosed
	}
	s.wg.Add(1)
	return nil
}

// start runs turn in the background. The caller must hold a reservation.
func (s *Service) start(sess *Session, turn Turn) {
	turnCtx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.turns[sess.ID()] = runningTurn{turnID: turn.ID, cancel: cancel, done: done}
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(done)
		defer cancel()

		s.runner.Run(turnCtx, sess, turn)

		// Delete drops the entry; a deleted conversation is not archived.
		s.mu.Lock()
		running, ok := s.turns[sess.ID()]
		owned := ok && running.turnID == turn.ID
		if owned {
			delete(s.turns, sess.ID())
		}
		s.mu.Unlock()

		if owned {
			s.save(sess)
		}
	}()
}

func (s *Service) save(sess *Session) {
	if s.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := s.archive.Save(ctx, sess.Snapshot()); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", sess.ID()).Msg("failed to archive conversation")
	}
}
