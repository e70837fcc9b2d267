package responses

import (
	"github.com/janhq/jan-widget/internal/domain/conversation"
)

// SubmitResponse reports whether a submit opened a turn.
type SubmitResponse struct {
	Accepted     bool                  `json:"accepted"`
	Conversation conversation.Snapshot `json:"conversation"`
}

// DeleteResponse confirms a deleted conversation.
type DeleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// NewSubmitResponse maps the domain result.
func NewSubmitResponse(res conversation.SubmitResult) SubmitResponse {
	return SubmitResponse{Accepted: res.Accepted, Conversation: res.Conversation}
}

// NewDeleteResponse builds the delete confirmation.
func NewDeleteResponse(id string) DeleteResponse {
	return DeleteResponse{ID: id, Object: "conversation.deleted", Deleted: true}
}
