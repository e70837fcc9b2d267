package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/domain/conversation"
	"github.com/janhq/jan-widget/internal/utils/platformerrors"
)

// Subscription is a live feed of conversation events.
type Subscription interface {
	Events() <-chan conversation.Event
	Close()
}

// EventSource opens subscriptions.
type EventSource interface {
	Subscribe(conversationID string) Subscription
}

// SnapshotGetter looks up the conversation before subscribing.
type SnapshotGetter interface {
	Get(ctx context.Context, id string) (conversation.Snapshot, error)
}

// EventsHandler streams conversation events as Server-Sent Events.
type EventsHandler struct {
	conversations SnapshotGetter
	source        EventSource
	heartbeat     time.Duration
	log           zerolog.Logger
}

// NewEventsHandler constructs the handler.
func NewEventsHandler(conversations SnapshotGetter, source EventSource, heartbeat time.Duration, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		conversations: conversations,
		source:        source,
		heartbeat:     heartbeat,
		log:           log.With().Str("handler", "events").Logger(),
	}
}

// Stream handles GET /v1/conversations/:id/events. The first event is a
// conversation.snapshot with the current state. Closing the connection only
// ends the subscription; a running turn keeps going.
func (h *EventsHandler) Stream(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.conversations.Get(c.Request.Context(), id)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}

	sub := h.source.Subscribe(id)
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if err := writeEvent(c, "conversation.snapshot", snap); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeEvent(c, string(event.Type), event); err != nil {
				h.log.Debug().Err(err).Str("conversation_id", id).Msg("event stream write failed")
				return
			}
		}
	}
}

func writeEvent(c *gin.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
