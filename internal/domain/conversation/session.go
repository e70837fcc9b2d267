package conversation

import (
	"strings"
	"sync"
	"time"
)

// Speaker is the post-turn voice hook. Speak must return immediately; audio
// work happens on its own goroutine. Stop ends any current playback.
type Speaker interface {
	Speak(text string, enabled bool)
	Stop()
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithVoiceOutput sets the initial voice-output flag.
func WithVoiceOutput(enabled bool) SessionOption {
	return func(s *Session) {
		s.voiceOutput = enabled
	}
}

// WithSpeaker attaches the post-turn voice hook.
func WithSpeaker(speaker Speaker) SessionOption {
	return func(s *Session) {
		s.speaker = speaker
	}
}

// WithPublisher routes session events to publisher.
func WithPublisher(publisher Publisher) SessionOption {
	return func(s *Session) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// Session is the turn controller for one conversation. It owns the ordered
// message list and the in-flight flag, and lets at most one turn be open.
//
// While a turn is open the trailing message is its assistant placeholder and
// is the only message OnDelta and Complete may touch.
type Session struct {
	// pubMu is taken before mu by every mutation that publishes and held
	// until its event is out, so subscribers see events in state order.
	pubMu sync.Mutex

	mu          sync.RWMutex
	id          string
	messages    []Message
	inFlight    bool
	turnID      string
	voiceOutput bool
	createdAt   time.Time
	updatedAt   time.Time

	speaker   Speaker
	publisher Publisher
	now       func() time.Time
}

// NewSession creates an empty conversation.
func NewSession(id string, opts ...SessionOption) *Session {
	s := &Session{
		id:        id,
		publisher: nopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.createdAt = s.now()
	s.updatedAt = s.createdAt
	return s
}

// ID returns the conversation ID.
func (s *Session) ID() string {
	return s.id
}

// InFlight reports whether a turn is open.
func (s *Session) InFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Submit opens a turn for text. It is a no-op returning false when text is
// blank or a turn is already open. On success the user message and an empty
// assistant placeholder have both been appended before Submit returns.
func (s *Session) Submit(text string) (Turn, bool) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, false
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return Turn{}, false
	}

	now := s.now()
	s.messages = append(s.messages, Message{Role: RoleUser, Content: text})
	s.inFlight = true
	history := cloneMessages(s.messages)
	s.messages = append(s.messages, Message{Role: RoleAssistant})

	turn := Turn{
		ID:             newTurnID(),
		ConversationID: s.id,
		History:        history,
		StartedAt:      now,
	}
	s.turnID = turn.ID
	s.updatedAt = now
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(EventTurnStarted, TurnPayload{TurnID: turn.ID, Conversation: snap})
	return turn, true
}

// OnDelta sets the placeholder of the open turn to accumulated. Updates for
// any other turn are dropped and reported as false.
func (s *Session) OnDelta(turnID, accumulated string) bool {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	if !s.inFlight || s.turnID != turnID {
		s.mu.Unlock()
		return false
	}
	idx := len(s.messages) - 1
	s.messages[idx].Content = accumulated
	s.updatedAt = s.now()
	s.mu.Unlock()

	s.publish(EventDelta, DeltaPayload{TurnID: turnID, Index: idx, Content: accumulated})
	return true
}

// Complete closes the open turn. On failure the placeholder's content is
// replaced by ApologyMessage, discarding any partial text. On success the
// voice hook receives finalText. Completing any other turn is a no-op
// reported as false.
func (s *Session) Complete(turnID, finalText string, succeeded bool) bool {
	s.pubMu.Lock()
	s.mu.Lock()
	if !s.inFlight || s.turnID != turnID {
		s.mu.Unlock()
		s.pubMu.Unlock()
		return false
	}

	idx := len(s.messages) - 1
	if succeeded {
		s.messages[idx].Content = finalText
	} else {
		s.messages[idx].Content = ApologyMessage
	}
	s.inFlight = false
	s.turnID = ""
	s.updatedAt = s.now()
	voice := s.voiceOutput
	snap := s.snapshotLocked()
	s.mu.Unlock()

	eventType := EventTurnCompleted
	if !succeeded {
		eventType = EventTurnFailed
	}
	s.publish(eventType, TurnPayload{TurnID: turnID, Conversation: snap})
	s.pubMu.Unlock()

	if succeeded && s.speaker != nil {
		s.speaker.Speak(finalText, voice)
	}
	return true
}

// Reset clears the message list. It is refused while a turn is open.
func (s *Session) Reset() error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	s.messages = nil
	s.updatedAt = s.now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(EventReset, snap)
	return nil
}

// SetVoiceOutput toggles the post-turn voice hook for future turns.
func (s *Session) SetVoiceOutput(enabled bool) {
	s.mu.Lock()
	s.voiceOutput = enabled
	s.updatedAt = s.now()
	s.mu.Unlock()
}

// Close stops any audio still playing for this conversation.
func (s *Session) Close() {
	if s.speaker != nil {
		s.speaker.Stop()
	}
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:          s.id,
		Object:      "conversation",
		Messages:    cloneMessages(s.messages),
		InFlight:    s.inFlight,
		VoiceOutput: s.voiceOutput,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
}

func (s *Session) publish(eventType EventType, data any) {
	s.publisher.Publish(s.id, Event{Type: eventType, ConversationID: s.id, Data: data})
}
