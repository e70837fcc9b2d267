package audio

import (
	"context"

	"github.com/janhq/jan-widget/internal/domain/conversation"
	"github.com/janhq/jan-widget/internal/domain/voice"
)

// PlayPayload is the data of an audio.play event.
type PlayPayload struct {
	ClipID   string `json:"clip_id"`
	MIMEType string `json:"mime_type"`
	DataURI  string `json:"data_uri"`
}

// StopPayload is the data of an audio.stop event.
type StopPayload struct {
	ClipID string `json:"clip_id"`
}

// EventPlayer plays clips by handing them to the conversation's event
// subscribers. Play holds the playback slot until it is superseded or
// stopped, then tells subscribers to stop.
type EventPlayer struct {
	conversationID string
	publisher      conversation.Publisher
	newID          func() string
}

// NewEventPlayer creates a player bound to one conversation.
func NewEventPlayer(conversationID string, publisher conversation.Publisher, newID func() string) *EventPlayer {
	return &EventPlayer{conversationID: conversationID, publisher: publisher, newID: newID}
}

func (p *EventPlayer) Play(ctx context.Context, clip *voice.Clip) error {
	id := p.newID()
	p.publisher.Publish(p.conversationID, conversation.Event{
		Type:           conversation.EventAudioPlay,
		ConversationID: p.conversationID,
		Data: PlayPayload{
			ClipID:   id,
			MIMEType: clip.MIMEType,
			DataURI:  clip.DataURI(),
		},
	})

	<-ctx.Done()
	p.publisher.Publish(p.conversationID, conversation.Event{
		Type:           conversation.EventAudioStop,
		ConversationID: p.conversationID,
		Data:           StopPayload{ClipID: id},
	})
	return ctx.Err()
}

var _ voice.Player = (*EventPlayer)(nil)
