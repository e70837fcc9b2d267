package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/domain/conversation"
)

// LRUStore keeps at most a fixed number of live conversations. Adding past
// capacity evicts the least recently used one and closes it.
type LRUStore struct {
	cache   *lru.Cache
	onEvict func(id string)
	log     zerolog.Logger
}

// NewLRUStore creates a bounded conversation store. onEvict may be nil.
func NewLRUStore(size int, onEvict func(id string), log zerolog.Logger) (*LRUStore, error) {
	s := &LRUStore{
		onEvict: onEvict,
		log:     log.With().Str("component", "conversation-store").Logger(),
	}
	cache, err := lru.NewWithEvict(size, s.evicted)
	if err != nil {
		return nil, fmt.Errorf("create conversation cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// Create stores a new conversation.
func (s *LRUStore) Create(_ context.Context, sess *conversation.Session) error {
	if ok, _ := s.cache.ContainsOrAdd(sess.ID(), sess); ok {
		return conversation.ErrConversationExists
	}
	return nil
}

// Get returns a live conversation and marks it recently used.
func (s *LRUStore) Get(_ context.Context, id string) (*conversation.Session, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, conversation.ErrConversationNotFound
	}
	return v.(*conversation.Session), nil
}

// Delete removes a conversation.
func (s *LRUStore) Delete(_ context.Context, id string) error {
	if !s.cache.Remove(id) {
		return conversation.ErrConversationNotFound
	}
	return nil
}

// Len returns the number of live conversations.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}

func (s *LRUStore) evicted(key, value interface{}) {
	id, _ := key.(string)
	if sess, ok := value.(*conversation.Session); ok {
		if sess.InFlight() {
			s.log.Warn().Str("conversation_id", id).Msg("evicting conversation with a turn in flight")
		}
		sess.Close()
	}
	if s.onEvict != nil {
		s.onEvict(id)
	}
}

var _ conversation.Store = (*LRUStore)(nil)
