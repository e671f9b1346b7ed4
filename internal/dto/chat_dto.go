package dto

import (
	"time"

	"github.com/kita-live/kita-api/internal/models"
)

// SendMessageRequest posts a chat message into a room. RecipientUID makes
// the message private between sender, recipient and teacher.
type SendMessageRequest struct {
	Content      string `json:"content" validate:"required,min=1,max=4000"`
	Sender       string `json:"sender" validate:"required,min=1,max=255"`
	RecipientUID string `json:"recipient_uid" validate:"omitempty,max=64"`
}

// MessageResponse is the serialized representation of a chat message.
type MessageResponse struct {
	ID           uint      `json:"id"`
	RoomCode     string    `json:"room_code"`
	Sender       string    `json:"sender"`
	SenderUID    string    `json:"sender_uid"`
	Content      string    `json:"content"`
	IsTeacher    bool      `json:"is_teacher"`
	IsPrivate    bool      `json:"is_private,omitempty"`
	RecipientUID string    `json:"recipient_uid,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewMessageResponse converts a message model into a DTO.
func NewMessageResponse(message models.RoomMessage) MessageResponse {
	return MessageResponse{
		ID:           message.ID,
		RoomCode:     message.RoomCode,
		Sender:       message.Sender,
		SenderUID:    message.SenderUID,
		Content:      message.Content,
		IsTeacher:    message.IsTeacher,
		IsPrivate:    message.IsPrivate,
		RecipientUID: message.RecipientUID,
		Timestamp:    message.Timestamp,
	}
}

// NewMessageResponseSlice converts a slice of message models into DTOs.
func NewMessageResponseSlice(messages []models.RoomMessage) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}
