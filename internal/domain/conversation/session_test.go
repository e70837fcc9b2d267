package conversation_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-widget/internal/domain/conversation"
)

type spokenLine struct {
	text    string
	enabled bool
}

type recordingSpeaker struct {
	mu      sync.Mutex
	spoken  []spokenLine
	stopped int
}

func (s *recordingSpeaker) Speak(text string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, spokenLine{text: text, enabled: enabled})
}

func (s *recordingSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
}

func (s *recordingSpeaker) lines() []spokenLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]spokenLine(nil), s.spoken...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []conversation.Event
}

func (p *recordingPublisher) Publish(_ string, event conversation.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []conversation.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]conversation.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func TestSession_SubmitAppendsUserAndPlaceholder(t *testing.T) {
	sess := conversation.NewSession("conv_test")

	turn, ok := sess.Submit("What services do you offer?")
	require.True(t, ok)

	snap := sess.Snapshot()
	assert.True(t, snap.InFlight)
	assert.Equal(t, []conversation.Message{
		{Role: conversation.RoleUser, Content: "What services do you offer?"},
		{Role: conversation.RoleAssistant, Content: ""},
	}, snap.Messages)

	assert.NotEmpty(t, turn.ID)
	assert.Equal(t, "conv_test", turn.ConversationID)
	assert.Equal(t, []conversation.Message{
		{Role: conversation.RoleUser, Content: "What services do you offer?"},
	}, turn.History)
}

func TestSession_SubmitRejectedWhileInFlight(t *testing.T) {
	sess := conversation.NewSession("conv_test")
	_, ok := sess.Submit("first")
	require.True(t, ok)

	_, ok = sess.Submit("second")

	assert.False(t, ok)
	assert.Len(t, sess.Snapshot().Messages, 2)
}

func TestSession_SubmitRejectsBlankText(t *testing.T) {
	sess := conversation.NewSession("conv_test")

	for _, text := range []string{"", "   ", "\n\t"} {
		_, ok := sess.Submit(text)
		assert.False(t, ok, "%q", text)
	}
	assert.Empty(t, sess.Snapshot().Messages)
	assert.False(t, sess.InFlight())
}

func TestSession_DeltasUpdateTrailingMessage(t *testing.T) {
	sess := conversation.NewSession("conv_test")
	turn, _ := sess.Submit("hi")

	assert.True(t, sess.OnDelta(turn.ID, "We "))
	assert.True(t, sess.OnDelta(turn.ID, "We offer cloud consulting."))
	assert.True(t, sess.Complete(turn.ID, "We offer cloud consulting.", true))

	snap := sess.Snapshot()
	assert.False(t, snap.InFlight)
	assert.Equal(t, []conversation.Message{
		{Role: conversation.RoleUser, Content: "hi"},
		{Role: conversation.RoleAssistant, Content: "We offer cloud consulting."},
	}, snap.Messages)
}

func TestSession_FailureReplacesPartialText(t *testing.T) {
	sess := conversation.NewSession("conv_test")
	turn, _ := sess.Submit("hi")
	sess.OnDelta(turn.ID, "Hel")
	sess.OnDelta(turn.ID, "Hello")

	require.True(t, sess.Complete(turn.ID, "Hello", false))

	snap := sess.Snapshot()
	assert.False(t, snap.InFlight)
	assert.Equal(t, conversation.ApologyMessage, snap.Messages[1].Content)
}

func TestSession_StaleTurnCannotMutate(t *testing.T) {
	sess := conversation.NewSession("conv_test")
	first, _ := sess.Submit("one")
	require.True(t, sess.Complete(first.ID, "uno", true))
	second, _ := sess.Submit("two")

	assert.False(t, sess.OnDelta(first.ID, "late"))
	assert.False(t, sess.Complete(first.ID, "late", false))

	snap := sess.Snapshot()
	assert.True(t, snap.InFlight)
	assert.Equal(t, "uno", snap.Messages[1].Content)
	assert.Equal(t, "", snap.Messages[3].Content)
	assert.True(t, sess.Complete(second.ID, "dos", true))
}

func TestSession_CompleteInvokesSpeakerOnSuccessOnly(t *testing.T) {
	speaker := &recordingSpeaker{}
	sess := conversation.NewSession("conv_test",
		conversation.WithSpeaker(speaker),
		conversation.WithVoiceOutput(true),
	)

	turn, _ := sess.Submit("one")
	sess.Complete(turn.ID, "spoken", true)
	turn, _ = sess.Submit("two")
	sess.Complete(turn.ID, "", false)

	assert.Equal(t, []spokenLine{{text: "spoken", enabled: true}}, speaker.lines())
}

func TestSession_VoiceOutputDoesNotChangeMessages(t *testing.T) {
	run := func(voice bool) conversation.Snapshot {
		sess := conversation.NewSession("conv_test",
			conversation.WithSpeaker(&recordingSpeaker{}),
			conversation.WithVoiceOutput(voice),
		)
		turn, _ := sess.Submit("What services do you offer?")
		sess.OnDelta(turn.ID, "We ")
		sess.OnDelta(turn.ID, "We offer cloud consulting.")
		sess.Complete(turn.ID, "We offer cloud consulting.", true)
		return sess.Snapshot()
	}

	withVoice := run(true)
	withoutVoice := run(false)

	assert.Equal(t, withoutVoice.Messages, withVoice.Messages)
	assert.Equal(t, withoutVoice.InFlight, withVoice.InFlight)
}

func TestSession_ResetRefusedWhileInFlight(t *testing.T) {
	sess := conversation.NewSession("conv_test")
	turn, _ := sess.Submit("hi")

	assert.ErrorIs(t, sess.Reset(), conversation.ErrTurnInFlight)

	sess.Complete(turn.ID, "hello", true)
	require.NoError(t, sess.Reset())
	assert.Empty(t, sess.Snapshot().Messages)
}

func TestSession_PublishesEventsInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sess := conversation.NewSession("conv_test",
		conversation.WithPublisher(pub),
		conversation.WithClock(func() time.Time { return clock }),
	)

	turn, _ := sess.Submit("hi")
	sess.OnDelta(turn.ID, "a")
	sess.Complete(turn.ID, "a", true)
	turn, _ = sess.Submit("again")
	sess.Complete(turn.ID, "", false)
	require.NoError(t, sess.Reset())

	assert.Equal(t, []conversation.EventType{
		conversation.EventTurnStarted,
		conversation.EventDelta,
		conversation.EventTurnCompleted,
		conversation.EventTurnStarted,
		conversation.EventTurnFailed,
		conversation.EventReset,
	}, pub.types())

	delta := pub.events[1].Data.(conversation.DeltaPayload)
	assert.Equal(t, 1, delta.Index)
	assert.Equal(t, "a", delta.Content)
	assert.Equal(t, clock, sess.Snapshot().CreatedAt)
}

// PublisherFunc adapts a function to conversation.Publisher.
type PublisherFunc func(conversationID string, event conversation.Event)

func (f PublisherFunc) Publish(conversationID string, event conversation.Event) {
	f(conversationID, event)
}

func TestSession_NextTurnStartsAfterCompletionIsPublished(t *testing.T) {
	var (
		mu    sync.Mutex
		types []conversation.EventType
	)
	pub := PublisherFunc(func(_ string, event conversation.Event) {
		if event.Type == conversation.EventTurnCompleted {
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		types = append(types, event.Type)
		mu.Unlock()
	})
	sess := conversation.NewSession("conv_test", conversation.WithPublisher(pub))

	first, ok := sess.Submit("one")
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.Complete(first.ID, "uno", true)
	}()

	require.Eventually(t, func() bool { return !sess.InFlight() }, time.Second, time.Millisecond)
	_, ok = sess.Submit("two")
	require.True(t, ok)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []conversation.EventType{
		conversation.EventTurnStarted,
		conversation.EventTurnCompleted,
		conversation.EventTurnStarted,
	}, types)
}
