package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	tracerName              = "jan-widget/voice"
	defaultSynthesisTimeout = 30 * time.Second
)

// HookConfig configures a Hook.
type HookConfig struct {
	Voice            string
	SynthesisTimeout time.Duration
}

// Hook speaks finished assistant replies. It satisfies conversation.Speaker:
// Speak returns immediately and every failure is only logged.
type Hook struct {
	synth  Synthesizer
	player Player
	cfg    HookConfig
	slot   Slot
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// NewHook creates a post-turn voice hook.
func NewHook(synth Synthesizer, player Player, cfg HookConfig, log zerolog.Logger) *Hook {
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = defaultSynthesisTimeout
	}
	return &Hook{
		synth:  synth,
		player: player,
		cfg:    cfg,
		log:    log.With().Str("component", "voice-hook").Logger(),
	}
}

// Speak synthesizes and plays text in the background. It does nothing when
// enabled is false or text is blank.
func (h *Hook) Speak(text string, enabled bool) {
	if !enabled || strings.TrimSpace(text) == "" {
		return
	}
	seq := h.slot.Next()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.speak(seq, text)
	}()
}

// Stop cancels the current playback and any synthesis still pending.
func (h *Hook) Stop() {
	h.slot.Stop()
}

// Wait blocks until every background Speak has returned.
func (h *Hook) Wait() {
	h.wg.Wait()
}

func (h *Hook) speak(seq uint64, text string) {
	clip, err := h.synthesize(text)
	if err != nil {
		h.log.Warn().Err(err).Uint64("seq", seq).Msg("speech synthesis failed")
		return
	}

	ctx, ok := h.slot.Acquire(seq)
	if !ok {
		h.log.Debug().Uint64("seq", seq).Msg("playback superseded before start")
		return
	}
	defer h.slot.Release(seq)

	if err := h.player.Play(ctx, clip); err != nil && !errors.Is(err, context.Canceled) {
		h.log.Warn().Err(err).Uint64("seq", seq).Msg("playback failed")
	}
}

func (h *Hook) synthesize(text string) (*Clip, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SynthesisTimeout)
	defer cancel()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "voice.synthesize")
	defer span.End()
	span.SetAttributes(
		attribute.String("voice.name", h.cfg.Voice),
		attribute.Int("voice.text_length", len(text)),
	)

	clip, err := h.synth.Synthesize(ctx, text, h.cfg.Voice)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if clip == nil || len(clip.Data) == 0 {
		span.SetStatus(codes.Error, ErrEmptyClip.Error())
		return nil, ErrEmptyClip
	}
	span.SetAttributes(attribute.String("voice.mime_type", clip.MIMEType), attribute.Int("voice.bytes", len(clip.Data)))
	return clip, nil
}
