package dto

// AnonymousSessionRequest mints a session identity. Name is optional display
// metadata carried in the token.
type AnonymousSessionRequest struct {
	Name string `json:"name" validate:"omitempty,max=255"`
}

// AnonymousSessionResponse carries the minted identity and its bearer token.
type AnonymousSessionResponse struct {
	UID       string `json:"uid"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}
