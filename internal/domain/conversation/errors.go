package conversation

import "errors"

var (
	// ErrConversationNotFound is returned when no live or archived conversation matches an ID.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrConversationExists is returned when creating a conversation whose ID is taken.
	ErrConversationExists = errors.New("conversation already exists")
	// ErrTurnInFlight is returned by operations that cannot run while a turn is open.
	ErrTurnInFlight = errors.New("a turn is already in flight")
	// ErrReadOnly is returned when mutating a conversation only available from the archive.
	ErrReadOnly = errors.New("conversation is archived and read-only")
	// ErrServiceClosed is returned when a turn is submitted after Shutdown.
	ErrServiceClosed = errors.New("conversation service is shutting down")
)
