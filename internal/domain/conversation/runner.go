package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/janhq/jan-widget/internal/domain/stream"
)

const tracerName = "jan-widget/conversation"

// Turn statuses reported to the Recorder.
const (
	TurnStatusCompleted = "completed"
	TurnStatusFailed    = "failed"
	TurnStatusCancelled = "cancelled"
)

// Outcome summarises a finished turn.
type Outcome struct {
	TurnID    string
	Succeeded bool
	Text      string
	Stats     stream.Stats
	Err       error
	Duration  time.Duration
}

// Runner drives a single turn: it opens the upstream stream, folds deltas
// into the session and completes the turn exactly once.
type Runner struct {
	streamer Streamer
	opts     stream.Options
	recorder Recorder
	redactor Redactor
	log      zerolog.Logger
}

// NewRunner creates a turn runner. recorder and redactor may be nil.
func NewRunner(streamer Streamer, opts stream.Options, recorder Recorder, redactor Redactor, log zerolog.Logger) *Runner {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if redactor == nil {
		redactor = redactAll{}
	}
	return &Runner{
		streamer: streamer,
		opts:     opts,
		recorder: recorder,
		redactor: redactor,
		log:      log.With().Str("component", "turn-runner").Logger(),
	}
}

// Run blocks until the turn has been completed on sess. Any stream error,
// including cancellation of ctx, completes the turn as failed.
func (r *Runner) Run(ctx context.Context, sess *Session, turn Turn) Outcome {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "conversation.turn",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("conversation.id", turn.ConversationID),
			attribute.String("turn.id", turn.ID),
			attribute.Int("turn.history_length", len(turn.History)),
		),
	)
	defer span.End()

	start := time.Now()
	text, stats, err := r.stream(ctx, sess, turn)
	succeeded := err == nil
	sess.Complete(turn.ID, text, succeeded)

	outcome := Outcome{
		TurnID:    turn.ID,
		Succeeded: succeeded,
		Text:      text,
		Stats:     stats,
		Err:       err,
		Duration:  time.Since(start),
	}

	status := TurnStatusCompleted
	switch {
	case errors.Is(err, context.Canceled):
		status = TurnStatusCancelled
	case err != nil:
		status = TurnStatusFailed
	}
	r.recorder.RecordTurn(status, outcome.Duration, stats)

	span.SetAttributes(
		attribute.Int("stream.deltas", stats.Deltas),
		attribute.Int("stream.malformed", stats.Malformed),
		attribute.Bool("stream.done_sentinel", stats.SawDone),
	)

	logger := r.log.With().
		Str("conversation_id", turn.ConversationID).
		Str("turn_id", turn.ID).
		Int("deltas", stats.Deltas).
		Int("malformed", stats.Malformed).
		Int("chunks", stats.Chunks).
		Dur("duration", outcome.Duration).
		Logger()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Str("status", status).Msg("turn failed")
		return outcome
	}

	if stats.Malformed > 0 {
		logger.Debug().Msg("skipped malformed stream lines")
	}
	logger.Info().
		Str("response", r.redactor.SanitizeResponse(text)).
		Bool("done_sentinel", stats.SawDone).
		Msg("turn completed")
	return outcome
}

func (r *Runner) stream(ctx context.Context, sess *Session, turn Turn) (string, stream.Stats, error) {
	r.log.Debug().
		Str("conversation_id", turn.ConversationID).
		Str("turn_id", turn.ID).
		Str("prompt", r.redactor.SanitizePrompt(lastContent(turn.History))).
		Msg("opening stream")

	body, err := r.streamer.OpenStream(ctx, turn.History)
	if err != nil {
		return "", stream.Stats{}, fmt.Errorf("open stream: %w", err)
	}
	defer body.Close()

	return stream.Fold(ctx, body, r.opts, func(accumulated string) {
		sess.OnDelta(turn.ID, accumulated)
	})
}

func lastContent(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
