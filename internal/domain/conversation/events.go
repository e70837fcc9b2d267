package conversation

// EventType names an event published to conversation subscribers.
type EventType string

const (
	EventTurnStarted   EventType = "conversation.turn_started"
	EventDelta         EventType = "conversation.delta"
	EventTurnCompleted EventType = "conversation.turn_completed"
	EventTurnFailed    EventType = "conversation.turn_failed"
	EventReset         EventType = "conversation.reset"
	EventAudioPlay     EventType = "audio.play"
	EventAudioStop     EventType = "audio.stop"
)

// Event is a single notification about a conversation.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	Data           any       `json:"data,omitempty"`
}

// TurnPayload accompanies turn_started, turn_completed and turn_failed.
type TurnPayload struct {
	TurnID       string   `json:"turn_id"`
	Conversation Snapshot `json:"conversation"`
}

// DeltaPayload carries the current content of the trailing message.
type DeltaPayload struct {
	TurnID  string `json:"turn_id"`
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// Publisher fans events out to subscribers. Publish must not block.
type Publisher interface {
	Publish(conversationID string, event Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, Event) {}
