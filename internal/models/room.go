package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// AIModel identifies which upstream language model a room routes questions to.
type AIModel string

// Supported AI models. Unrecognized stored values fall back to DefaultAIModel
// at dispatch time rather than failing the request.
const (
	AIModelChatGPT AIModel = "chatgpt"
	AIModelClaude  AIModel = "claude"
	AIModelGemini  AIModel = "gemini"
)

// DefaultAIModel is the fallback used when a room carries an unknown model value.
const DefaultAIModel = AIModelGemini

// ValidAIModel reports whether the value belongs to the closed model enum.
func ValidAIModel(value AIModel) bool {
	switch value {
	case AIModelChatGPT, AIModelClaude, AIModelGemini:
		return true
	}
	return false
}

// PollType describes how student responses to a poll are collected and merged.
type PollType string

const (
	PollTypeYesNo          PollType = "yes_no"
	PollTypeMultipleChoice PollType = "multiple_choice"
	PollTypeOpenText       PollType = "open_text"
)

// OptionCount returns the number of discrete choices for the poll type.
// Open-text polls have no discrete options.
func (t PollType) OptionCount() int {
	switch t {
	case PollTypeYesNo:
		return 2
	case PollTypeMultipleChoice:
		return 4
	default:
		return 0
	}
}

// ValidPollType reports whether the value belongs to the closed poll-type enum.
func ValidPollType(value PollType) bool {
	switch value {
	case PollTypeYesNo, PollTypeMultipleChoice, PollTypeOpenText:
		return true
	}
	return false
}

// CommandLoadContent instructs student clients to point their content
// viewport at the payload URL.
const CommandLoadContent = "LOAD_CONTENT"

// Command is a one-shot broadcast instruction stored on the room. Payload
// shape is a client concern; the server only guarantees presence and a fresh
// timestamp.
type Command struct {
	Command   string                 `json:"command"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// URL extracts the payload url for LOAD_CONTENT commands, empty otherwise.
func (c Command) URL() string {
	if c.Command != CommandLoadContent {
		return ""
	}
	if raw, ok := c.Payload["url"]; ok {
		if url, ok := raw.(string); ok {
			return url
		}
	}
	return ""
}

// PollResponse is one entry in a poll's responses map. Discrete polls store
// a single 1-based option index per student, last write wins. Open-text
// polls keep every submitted answer in order. On the wire the value is
// either a bare integer or a string array, matching the stored document
// format.
type PollResponse struct {
	Choice  int
	Answers []string
}

// MarshalJSON renders the response in its stored shape.
func (r PollResponse) MarshalJSON() ([]byte, error) {
	if r.Answers != nil {
		return json.Marshal(r.Answers)
	}
	return json.Marshal(r.Choice)
}

// UnmarshalJSON accepts either shape. Unknown shapes are rejected so a
// malformed entry cannot masquerade as a vote.
func (r *PollResponse) UnmarshalJSON(data []byte) error {
	var answers []string
	if err := json.Unmarshal(data, &answers); err == nil {
		r.Answers = answers
		r.Choice = 0
		return nil
	}

	var choice int
	if err := json.Unmarshal(data, &choice); err == nil {
		r.Choice = choice
		r.Answers = nil
		return nil
	}

	return fmt.Errorf("poll response must be an option index or an answer list")
}

// Poll is the live question embedded in a room's settings. At most one poll
// may be active per room; starting a new one archives the previous active
// poll first.
type Poll struct {
	ID        string                  `json:"id"`
	Type      PollType                `json:"type"`
	Question  string                  `json:"question"`
	Options   int                     `json:"options"`
	IsActive  bool                    `json:"isActive"`
	CreatedAt time.Time               `json:"createdAt"`
	Responses map[string]PollResponse `json:"responses"`
}

// RoomSettings is the nested settings record of a room document. Field names
// are part of the stored contract and mirror what clients subscribe to.
type RoomSettings struct {
	AIActive         bool       `json:"ai_active"`
	AIModel          AIModel    `json:"ai_model"`
	CurrentCommand   *Command   `json:"current_command"`
	CurrentPoll      *Poll      `json:"currentPoll"`
	ActivePromptID   string     `json:"active_prompt_id,omitempty"`
	LastPollActivity *time.Time `json:"last_poll_activity,omitempty"`
}

// DefaultRoomSettings returns the settings a freshly created room starts with.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		AIActive: false,
		AIModel:  DefaultAIModel,
		CurrentPoll: &Poll{
			IsActive: false,
		},
	}
}

// Room is a single classroom session keyed by a 4-digit numeric code. The
// settings column holds the nested document mutated throughout the lesson.
type Room struct {
	Code         string                           `gorm:"primaryKey;size:8" json:"room_code"`
	TeacherUID   string                           `gorm:"size:64;index;not null" json:"teacher_uid"`
	Settings     datatypes.JSONType[RoomSettings] `gorm:"type:json" json:"settings"`
	CreatedAt    time.Time                        `json:"created_at"`
	LastActivity time.Time                        `gorm:"index" json:"last_activity"`
}

// RoomStudent is a roster entry created when a learner joins. The uid is a
// session-scoped identifier, not a durable identity.
type RoomStudent struct {
	UID      string    `gorm:"primaryKey;size:64" json:"uid"`
	RoomCode string    `gorm:"primaryKey;size:8;index" json:"room_code"`
	Name     string    `gorm:"size:255;not null" json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}
