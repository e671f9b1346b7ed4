package dto

// AskAIRequest is the contract of the AI dispatch gateway. BypassContext
// skips prompt-library injection; teacher meta-operations set it implicitly.
type AskAIRequest struct {
	Prompt        string `json:"prompt" validate:"required,min=1,max=8000"`
	RoomCode      string `json:"roomCode" validate:"required,len=4,numeric"`
	Language      string `json:"language" validate:"required,oneof=he en"`
	BypassContext bool   `json:"bypassContext"`
}

// AskAIResponse carries the normalized upstream reply.
type AskAIResponse struct {
	Result string `json:"result"`
	Model  string `json:"model"`
}
