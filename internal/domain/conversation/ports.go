package conversation

import (
	"context"
	"io"
	"time"

	"github.com/janhq/jan-widget/internal/domain/stream"
)

// Streamer opens the upstream chat-completion event stream for a turn. A
// non-success status or a missing body must be reported as an error.
type Streamer interface {
	OpenStream(ctx context.Context, history []Message) (io.ReadCloser, error)
}

// Store holds live conversations.
type Store interface {
	Create(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	Len() int
}

// Archive keeps snapshots of conversations after each turn so they can still
// be read once the live session is evicted. Load returns ErrConversationNotFound
// for unknown IDs. Delete of an unknown ID is not an error.
type Archive interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, id string) (*Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// SpeakerFactory builds the voice hook for a new conversation. It may return nil.
type SpeakerFactory func(conversationID string) Speaker

// Recorder receives turn-level measurements.
type Recorder interface {
	RecordTurn(status string, duration time.Duration, stats stream.Stats)
	RecordRejectedSubmit(reason string)
}

// Redactor scrubs conversation text before it reaches logs.
type Redactor interface {
	SanitizePrompt(input string) string
	SanitizeResponse(response string) string
}

type nopRecorder struct{}

func (nopRecorder) RecordTurn(string, time.Duration, stream.Stats) {}
func (nopRecorder) RecordRejectedSubmit(string)                    {}

type redactAll struct{}

func (redactAll) SanitizePrompt(string) string   { return "[REDACTED]" }
func (redactAll) SanitizeResponse(string) string { return "[REDACTED]" }
