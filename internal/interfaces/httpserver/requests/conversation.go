package requests

// CreateConversationRequest is the body of POST /v1/conversations. It may be empty.
type CreateConversationRequest struct {
	VoiceOutput *bool `json:"voice_output"`
}

// SubmitMessageRequest is the body of POST /v1/conversations/:id/messages.
// Blank content is not a validation error; the submit is simply not accepted.
type SubmitMessageRequest struct {
	Content string `json:"content"`
}

// UpdateConversationRequest is the body of PATCH /v1/conversations/:id.
type UpdateConversationRequest struct {
	VoiceOutput *bool `json:"voice_output" binding:"required"`
}

// CreateVoiceSessionRequest is the optional body of POST /v1/voice/sessions.
type CreateVoiceSessionRequest struct {
	Identity string `json:"identity" binding:"omitempty,max=128"`
}
