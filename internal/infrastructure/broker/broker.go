package broker

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/domain/conversation"
)

// Broker fans conversation events out to in-process subscribers. Each
// subscriber has a buffered channel; when it is full the event is dropped
// for that subscriber so publishers never block.
type Broker struct {
	mu       sync.RWMutex
	subs     map[string]map[*Subscription]struct{}
	buffer   int
	onDrop   func()
	onChange func(delta int)
	log      zerolog.Logger
}

// Subscription receives events for one conversation.
type Subscription struct {
	conversationID string
	events         chan conversation.Event
	broker         *Broker
	once           sync.Once
}

// Options tune a Broker. Hooks may be nil.
type Options struct {
	BufferSize int
	// OnDrop is called once per dropped event.
	OnDrop func()
	// OnSubscribersChanged receives +1 and -1 as subscriptions open and close.
	OnSubscribersChanged func(delta int)
}

// New creates a broker.
func New(opts Options, log zerolog.Logger) *Broker {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	if opts.OnDrop == nil {
		opts.OnDrop = func() {}
	}
	if opts.OnSubscribersChanged == nil {
		opts.OnSubscribersChanged = func(int) {}
	}
	return &Broker{
		subs:     make(map[string]map[*Subscription]struct{}),
		buffer:   opts.BufferSize,
		onDrop:   opts.OnDrop,
		onChange: opts.OnSubscribersChanged,
		log:      log.With().Str("component", "event-broker").Logger(),
	}
}

// Subscribe registers a subscriber for conversationID.
func (b *Broker) Subscribe(conversationID string) *Subscription {
	sub := &Subscription{
		conversationID: conversationID,
		events:         make(chan conversation.Event, b.buffer),
		broker:         b,
	}

	b.mu.Lock()
	set, ok := b.subs[conversationID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[conversationID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	b.onChange(1)
	return sub
}

// Publish delivers event to every subscriber of conversationID.
func (b *Broker) Publish(conversationID string, event conversation.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[conversationID] {
		select {
		case sub.events <- event:
		default:
			b.onDrop()
			b.log.Warn().
				Str("conversation_id", conversationID).
				Str("event", string(event.Type)).
				Msg("subscriber buffer full, dropping event")
		}
	}
}

// CloseConversation closes every subscription of conversationID.
func (b *Broker) CloseConversation(conversationID string) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs[conversationID]))
	for sub := range b.subs[conversationID] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// Subscribers returns the number of subscribers of conversationID.
func (b *Broker) Subscribers(conversationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[conversationID])
}

// Events returns the delivery channel. It is closed by Close.
func (s *Subscription) Events() <-chan conversation.Event {
	return s.events
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		b := s.broker
		b.mu.Lock()
		if set, ok := b.subs[s.conversationID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(b.subs, s.conversationID)
			}
		}
		close(s.events)
		b.mu.Unlock()
		b.onChange(-1)
	})
}

var _ conversation.Publisher = (*Broker)(nil)
