package dto

import (
	"encoding/json"
	"time"

	"github.com/kita-live/kita-api/internal/models"
)

// StartPollRequest begins a new poll in a room.
type StartPollRequest struct {
	Type     string `json:"type" validate:"required,oneof=yes_no multiple_choice open_text"`
	Question string `json:"question" validate:"omitempty,max=2000"`
}

// SubmitAnswerRequest is a student's poll answer. Answer is a 1-based option
// index for discrete polls or free text for open polls; the aggregator picks
// the interpretation from the active poll's type.
type SubmitAnswerRequest struct {
	RoomCode   string          `json:"roomCode" validate:"required,len=4,numeric"`
	StudentID  string          `json:"studentId" validate:"required,min=1,max=64"`
	PlayerName string          `json:"playerName" validate:"required,min=1,max=255"`
	Answer     json.RawMessage `json:"answer" validate:"required"`
}

// PollResultsResponse is the teacher-facing aggregation of the current poll.
type PollResultsResponse struct {
	PollID   string          `json:"poll_id"`
	Type     models.PollType `json:"type"`
	Question string          `json:"question"`
	IsActive bool            `json:"is_active"`
	// Discrete polls: votes per 1-based option index.
	Counts map[int]int `json:"counts,omitempty"`
	Total  int         `json:"total"`
	// Open-text polls: latest answer and revision count per display name.
	Answers []OpenAnswerSummary `json:"answers,omitempty"`
}

// OpenAnswerSummary summarizes one learner's open-text progression: the
// latest answer plus how many versions they submitted.
type OpenAnswerSummary struct {
	Name     string   `json:"name"`
	Latest   string   `json:"latest"`
	Versions int      `json:"versions"`
	History  []string `json:"history"`
}

// HistoryEntryResponse is one archived poll.
type HistoryEntryResponse struct {
	PollID   string      `json:"id"`
	Poll     models.Poll `json:"poll"`
	ClosedAt time.Time   `json:"closedAt"`
}

// NewHistoryEntryResponseSlice converts archive models into DTOs.
func NewHistoryEntryResponseSlice(entries []models.QuestionHistory) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, HistoryEntryResponse{
			PollID:   entry.PollID,
			Poll:     entry.Poll.Data(),
			ClosedAt: entry.ClosedAt,
		})
	}
	return out
}
