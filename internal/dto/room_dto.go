package dto

import (
	"time"

	"github.com/kita-live/kita-api/internal/models"
)

// RoomResponse is the serialized room document sent to clients and carried
// inside realtime snapshot events.
type RoomResponse struct {
	Code         string              `json:"room_code"`
	TeacherUID   string              `json:"teacher_uid"`
	Settings     models.RoomSettings `json:"settings"`
	CreatedAt    time.Time           `json:"created_at"`
	LastActivity time.Time           `json:"last_activity"`
}

// NewRoomResponse converts a room model into its wire representation.
func NewRoomResponse(room models.Room) RoomResponse {
	return RoomResponse{
		Code:         room.Code,
		TeacherUID:   room.TeacherUID,
		Settings:     room.Settings.Data(),
		CreatedAt:    room.CreatedAt,
		LastActivity: room.LastActivity,
	}
}

// SendCommandRequest is a teacher broadcast instruction. Payload shape is
// intentionally opaque to the server.
type SendCommandRequest struct {
	Command string                 `json:"command" validate:"required,min=1,max=64"`
	Payload map[string]interface{} `json:"payload"`
}

// SwitchModelRequest selects the AI model for a room.
type SwitchModelRequest struct {
	Model string `json:"model" validate:"required,oneof=chatgpt claude gemini"`
}

// SetActivePromptRequest points the room at a teacher prompt, or clears it
// when PromptID is empty.
type SetActivePromptRequest struct {
	PromptID string `json:"prompt_id" validate:"omitempty,max=64"`
}

// JoinRoomRequest is a student joining a room.
type JoinRoomRequest struct {
	StudentID string `json:"student_id" validate:"required,min=1,max=64"`
	Name      string `json:"name" validate:"required,min=1,max=255"`
}

// StudentResponse is one roster entry.
type StudentResponse struct {
	UID      string    `json:"uid"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// NewStudentResponseSlice converts roster models into DTOs.
func NewStudentResponseSlice(students []models.RoomStudent) []StudentResponse {
	out := make([]StudentResponse, 0, len(students))
	for _, student := range students {
		out = append(out, StudentResponse{UID: student.UID, Name: student.Name, JoinedAt: student.JoinedAt})
	}
	return out
}
