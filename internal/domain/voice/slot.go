package voice

import (
	"context"
	"sync"
)

// Slot holds the current playback handle. Every Speak call reserves a
// sequence number up front; a playback may only start if no later sequence
// has started, and starting one cancels whatever was playing.
type Slot struct {
	mu      sync.Mutex
	issued  uint64
	current uint64
	floor   uint64
	cancel  context.CancelFunc
}

// Next reserves a sequence number.
func (s *Slot) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Acquire cancels the current playback and hands seq a fresh playback
// context. It returns false when a later sequence already played or when seq
// was reserved before the last Stop.
func (s *Slot) Acquire(seq uint64) (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.current || seq <= s.floor {
		return nil, false
	}
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.current = seq
	s.cancel = cancel
	return ctx, true
}

// Release ends seq's playback if it is still current.
func (s *Slot) Release(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == seq && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Stop cancels the current playback and discards every pending reservation.
func (s *Slot) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.floor = s.issued
}

// Playing reports whether a playback currently holds the slot.
func (s *Slot) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
