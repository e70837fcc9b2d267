package broker_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-widget/internal/domain/conversation"
	"github.com/janhq/jan-widget/internal/infrastructure/broker"
)

func event(t conversation.EventType) conversation.Event {
	return conversation.Event{Type: t, ConversationID: "conv_a"}
}

func TestBroker_DeliversToConversationSubscribers(t *testing.T) {
	b := broker.New(broker.Options{BufferSize: 4}, zerolog.Nop())
	subA := b.Subscribe("conv_a")
	subB := b.Subscribe("conv_b")
	defer subA.Close()
	defer subB.Close()

	b.Publish("conv_a", event(conversation.EventTurnStarted))
	b.Publish("conv_a", event(conversation.EventDelta))

	require.Len(t, subA.Events(), 2)
	assert.Equal(t, conversation.EventTurnStarted, (<-subA.Events()).Type)
	assert.Equal(t, conversation.EventDelta, (<-subA.Events()).Type)
	assert.Len(t, subB.Events(), 0)
}

func TestBroker_DropsWhenSubscriberIsFull(t *testing.T) {
	drops := 0
	b := broker.New(broker.Options{BufferSize: 1, OnDrop: func() { drops++ }}, zerolog.Nop())
	sub := b.Subscribe("conv_a")
	defer sub.Close()

	b.Publish("conv_a", event(conversation.EventDelta))
	b.Publish("conv_a", event(conversation.EventDelta))
	b.Publish("conv_a", event(conversation.EventTurnCompleted))

	assert.Equal(t, 2, drops)
	assert.Equal(t, conversation.EventDelta, (<-sub.Events()).Type)
}

func TestBroker_CloseUnregisters(t *testing.T) {
	count := 0
	b := broker.New(broker.Options{OnSubscribersChanged: func(d int) { count += d }}, zerolog.Nop())
	sub := b.Subscribe("conv_a")
	other := b.Subscribe("conv_a")
	assert.Equal(t, 2, b.Subscribers("conv_a"))
	assert.Equal(t, 2, count)

	sub.Close()
	sub.Close()
	assert.Equal(t, 1, b.Subscribers("conv_a"))
	assert.Equal(t, 1, count)

	_, open := <-sub.Events()
	assert.False(t, open)

	b.CloseConversation("conv_a")
	assert.Equal(t, 0, b.Subscribers("conv_a"))
	assert.Equal(t, 0, count)
	_, open = <-other.Events()
	assert.False(t, open)

	b.Publish("conv_a", event(conversation.EventReset))
}
