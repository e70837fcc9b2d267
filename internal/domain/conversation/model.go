package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ApologyMessage replaces the assistant placeholder when a turn fails.
const ApologyMessage = "Sorry, I'm having trouble responding right now. Please try again."

// Message is one entry of a conversation. Role never changes after creation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Snapshot is an immutable copy of a conversation's state.
type Snapshot struct {
	ID          string    `json:"id"`
	Object      string    `json:"object"` // "conversation"
	Messages    []Message `json:"messages"`
	InFlight    bool      `json:"in_flight"`
	VoiceOutput bool      `json:"voice_output"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Turn identifies one open user-to-assistant cycle. History holds every
// message up to and including the new user message; it is what gets sent
// upstream.
type Turn struct {
	ID             string
	ConversationID string
	History        []Message
	StartedAt      time.Time
}

// NewConversationID returns a fresh public conversation ID.
func NewConversationID() string {
	return newPublicID("conv")
}

func newTurnID() string {
	return newPublicID("turn")
}

func newPublicID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func cloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	copy(out, in)
	return out
}
