package dto

import (
	"time"

	"github.com/kita-live/kita-api/internal/models"
)

// SavePromptRequest creates or updates a prompt-library entry.
type SavePromptRequest struct {
	Title  string `json:"title" validate:"required,min=1,max=255"`
	Prompt string `json:"prompt" validate:"required,min=1,max=8000"`
}

// PromptResponse is one prompt-library entry.
type PromptResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPromptResponse converts a prompt model into a DTO.
func NewPromptResponse(model models.TeacherPrompt) PromptResponse {
	return PromptResponse{
		ID:        model.ID,
		Title:     model.Title,
		Prompt:    model.Prompt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewPromptResponseSlice converts prompt models into DTOs.
func NewPromptResponseSlice(items []models.TeacherPrompt) []PromptResponse {
	out := make([]PromptResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewPromptResponse(item))
	}
	return out
}

// SaveLinkRequest creates or updates a content shortcut.
type SaveLinkRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"omitempty,max=1024"`
	Icon        string `json:"icon" validate:"omitempty,max=64"`
	URL         string `json:"url" validate:"required,url,max=2048"`
}

// LinkResponse is one content shortcut.
type LinkResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewLinkResponse converts a link model into a DTO.
func NewLinkResponse(model models.TeacherLink) LinkResponse {
	return LinkResponse{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		Icon:        model.Icon,
		URL:         model.URL,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewLinkResponseSlice converts link models into DTOs.
func NewLinkResponseSlice(items []models.TeacherLink) []LinkResponse {
	out := make([]LinkResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewLinkResponse(item))
	}
	return out
}
